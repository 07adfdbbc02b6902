package model

// VolunteerStatusApproved is the only volunteer status eligible for dispatch.
const VolunteerStatusApproved = "approved"

// Volunteer is a registered helper. Sign-up and approval are handled outside
// this service; the dispatcher only reads approved volunteers.
type Volunteer struct {
	ID              string    `json:"id"`
	Username        string    `json:"username,omitempty"`
	IsVolunteer     bool      `json:"isVolunteer"`
	VolunteerStatus string    `json:"volunteerStatus,omitempty"`
	Location        *Location `json:"location,omitempty"`

	// Profile attributes are carried verbatim into the candidate pool for
	// the oracle to weigh. The dispatcher never interprets them.
	Skills     string `json:"skills,omitempty"`
	Experience string `json:"experience,omitempty"`
	Languages  string `json:"languages,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Eligible reports whether the volunteer may appear in a candidate pool.
func (v Volunteer) Eligible() bool {
	return v.IsVolunteer && v.VolunteerStatus == VolunteerStatusApproved
}

// CandidateProfile is the opaque attribute bag forwarded to the oracle.
type CandidateProfile struct {
	Username   string `json:"username,omitempty"`
	Skills     string `json:"skills,omitempty"`
	Experience string `json:"experience,omitempty"`
	Languages  string `json:"languages,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Candidate is one scored-but-unranked pool entry.
type Candidate struct {
	VolunteerID string           `json:"volunteerId"`
	DistanceKm  float64          `json:"distanceKm"`
	Profile     CandidateProfile `json:"profile"`
}
