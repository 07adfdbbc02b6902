package ranking

import (
	"math"

	"github.com/aidline/dispatch/core/geo"
	"github.com/aidline/dispatch/core/model"
)

// SentinelDistanceKm is assigned when either endpoint lacks coordinates.
// Distance is informational for the oracle, so a missing requester location
// degrades to this sentinel instead of failing the pool build.
const SentinelDistanceKm = 9999

// BuildPool turns the eligible volunteer set into an unordered candidate
// pool. Volunteers without usable coordinates are skipped entirely: they
// cannot be distance-annotated and are never surfaced. Distance never gates
// a candidate that has coordinates.
func BuildPool(requester *model.Location, volunteers []model.Volunteer) []model.Candidate {
	pool := make([]model.Candidate, 0, len(volunteers))
	for _, v := range volunteers {
		if v.Location == nil {
			continue
		}
		dist := float64(SentinelDistanceKm)
		if requester != nil {
			dist = roundCm(geo.DistanceKm(requester.Lat, requester.Lng, v.Location.Lat, v.Location.Lng))
		}
		pool = append(pool, model.Candidate{
			VolunteerID: v.ID,
			DistanceKm:  dist,
			Profile: model.CandidateProfile{
				Username:   v.Username,
				Skills:     v.Skills,
				Experience: v.Experience,
				Languages:  v.Languages,
				Notes:      v.Notes,
			},
		})
	}
	return pool
}

// roundCm rounds to two decimal places, the precision surfaced to the oracle.
func roundCm(km float64) float64 {
	return math.Round(km*100) / 100
}
