package model

import "time"

// RankedEntry is one oracle-ordered candidate. Index 0 is the best match.
type RankedEntry struct {
	VolunteerID string  `json:"volunteerId"`
	Score       float64 `json:"score"`
	DistanceKm  float64 `json:"distanceKm"`
	Reason      string  `json:"reason"`
}

// RankedList is the oracle's total order over one request's candidate pool.
// It is written exactly once per request and never mutated afterwards; the
// dispatch engine only reads it.
type RankedList struct {
	RequestID string        `json:"requestId"`
	Entries   []RankedEntry `json:"ranked"`
	CreatedAt time.Time     `json:"createdAt"`
}

// VolunteerAt returns the volunteer ID at index i, or "" when i is out of
// range.
func (l RankedList) VolunteerAt(i int) string {
	if i < 0 || i >= len(l.Entries) {
		return ""
	}
	return l.Entries[i].VolunteerID
}
