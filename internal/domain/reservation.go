// Package domain defines the reservation record and the status-merge rules
// shared by the repository, the call initiator, and the session relay.
package domain

import "time"

// Status is the lifecycle state of a reservation call.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusNotReached Status = "not-reached"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusError, StatusNotReached:
		return true
	}
	return false
}

// Terminal reports whether s is a final outcome. Only an explicit retry
// moves a reservation out of a terminal status.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// Reservation is a single reservation request and the running outcome of
// its call. Confirmed-* fields start empty and are only ever filled in by
// status updates, never cleared.
type Reservation struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	PhoneNumber         string    `json:"phoneNumber"`
	PartySize           int       `json:"partySize"`
	Date                string    `json:"date"`
	Time                string    `json:"time"`
	SpecialRequests     string    `json:"specialRequests,omitempty"`
	Status              Status    `json:"status"`
	StatusMessage       string    `json:"statusMessage,omitempty"`
	StatusDetails       string    `json:"statusDetails,omitempty"`
	FinalDateTime       string    `json:"finalDateTime,omitempty"`
	PersonName          string    `json:"personName,omitempty"`
	ConfirmedPartySize  int       `json:"confirmedPartySize,omitempty"`
	SpecialInstructions string    `json:"specialInstructions,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// NewReservation carries the client-supplied fields for creation.
type NewReservation struct {
	Name            string `json:"name"`
	PhoneNumber     string `json:"phoneNumber"`
	PartySize       int    `json:"partySize"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// StatusUpdate is a single status event. Status always wins; every other
// field is merged only when non-empty.
type StatusUpdate struct {
	ID                  string `json:"id"`
	Status              Status `json:"status"`
	StatusMessage       string `json:"statusMessage,omitempty"`
	StatusDetails       string `json:"statusDetails,omitempty"`
	FinalDateTime       string `json:"finalDateTime,omitempty"`
	PersonName          string `json:"personName,omitempty"`
	ConfirmedPartySize  int    `json:"confirmedPartySize,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}
