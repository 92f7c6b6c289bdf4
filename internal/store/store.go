// Package store provides the reservation repository, backed by either an
// in-memory map or SQLite.
package store

import "github.com/soyeahso/tablecall/internal/domain"

// DefaultListLimit bounds ListRecent when the caller passes no limit.
const DefaultListLimit = 10

// ReservationStore is the reservation repository. Get and MergeStatus
// return (nil, nil) when the ID is unknown; absence is not an error.
// Operations on the same ID are linearizable.
type ReservationStore interface {
	Create(in domain.NewReservation) (*domain.Reservation, error)
	Get(id string) (*domain.Reservation, error)
	MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error)
	ListRecent(limit int) ([]domain.Reservation, error)
}
