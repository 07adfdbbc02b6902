package model

import "time"

// Status is the lifecycle state of a help request.
type Status string

const (
	// StatusOpen means the request has been created and not yet ranked.
	StatusOpen Status = "open"
	// StatusProcessing means an initiator holds the claim and the ranking
	// pipeline is running.
	StatusProcessing Status = "processing"
	// StatusAwaitingVolunteer means a ranked list exists and the current
	// candidate has been asked to respond.
	StatusAwaitingVolunteer Status = "awaiting_volunteer"
	// StatusAssigned is terminal: the current candidate accepted.
	StatusAssigned Status = "assigned"
	// StatusNoVolunteers is terminal: the pool was empty or every ranked
	// candidate declined.
	StatusNoVolunteers Status = "no_volunteers"
)

// Terminal reports whether no further lifecycle transition is defined.
func (s Status) Terminal() bool {
	return s == StatusAssigned || s == StatusNoVolunteers
}

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusProcessing, StatusAwaitingVolunteer, StatusAssigned, StatusNoVolunteers:
		return true
	}
	return false
}

// Response values recorded in the audit fields.
const (
	ResponseDeclined = "declined"
	ResponseAccepted = "accepted"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HelpRequest is the dispatchable unit: one person asking for help, matched
// to one volunteer at a time. Lifecycle fields are written only by the
// dispatch engine, inside store transactions.
type HelpRequest struct {
	ID      string    `json:"requestId"`
	OwnerID string    `json:"ownerId"`
	// Location is optional; a request without coordinates is still
	// dispatchable, candidates just get the sentinel distance.
	Location *Location `json:"location,omitempty"`
	// Resume is the requester's free-form profile, passed verbatim to the
	// ranking oracle as context. The engine never interprets it.
	Resume map[string]any `json:"resume,omitempty"`

	Status                Status `json:"status"`
	CurrentVolunteerID    string `json:"currentVolunteerId,omitempty"`
	CurrentVolunteerIndex int    `json:"currentVolunteerIndex"`

	// ProcessingAt is set when an initiator claims the request. It lets a
	// later initiation reclaim a request whose pipeline died mid-flight.
	ProcessingAt *time.Time `json:"processingAt,omitempty"`

	LastResponse    string     `json:"lastResponse,omitempty"`
	LastResponderID string     `json:"lastResponderId,omitempty"`
	LastRespondedAt *time.Time `json:"lastRespondedAt,omitempty"`
}
