package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/tablecall/internal/domain"
)

// MemoryStore is the in-memory reservation repository. All state is
// process-local and lost on restart. A single mutex serializes every
// operation, which makes merges on the same ID linearizable.
type MemoryStore struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
	seq          map[string]uint64 // creation order, tie-break for ListRecent
	nextSeq      uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reservations: make(map[string]*domain.Reservation),
		seq:          make(map[string]uint64),
	}
}

// Create allocates a fresh ID and stores a pending reservation with all
// confirmed fields empty.
func (m *MemoryStore) Create(in domain.NewReservation) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &domain.Reservation{
		ID:              uuid.New().String(),
		Name:            in.Name,
		PhoneNumber:     in.PhoneNumber,
		PartySize:       in.PartySize,
		Date:            in.Date,
		Time:            in.Time,
		SpecialRequests: in.SpecialRequests,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
	}
	m.reservations[r.ID] = r
	m.nextSeq++
	m.seq[r.ID] = m.nextSeq

	out := *r
	return &out, nil
}

// Get returns a copy of the reservation, or (nil, nil) when absent.
func (m *MemoryStore) Get(id string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

// MergeStatus applies a status event to the stored record and returns the
// merged result, or (nil, nil) when the ID is unknown.
func (m *MemoryStore) MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[update.ID]
	if !ok {
		return nil, nil
	}
	merged := domain.ApplyStatusUpdate(*r, update)
	m.reservations[update.ID] = &merged

	out := merged
	return &out, nil
}

// ListRecent returns up to limit reservations, newest first.
func (m *MemoryStore) ListRecent(limit int) ([]domain.Reservation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return m.seq[all[i].ID] > m.seq[all[j].ID]
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
