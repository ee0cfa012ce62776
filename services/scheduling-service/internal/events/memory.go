package events

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository backed by a map.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]Event
	now    func() time.Time
}

func NewMemoryRepository(seed ...Event) *MemoryRepository {
	r := &MemoryRepository{events: map[string]Event{}, now: time.Now}
	for _, e := range seed {
		r.events[e.ID] = e
	}
	return r
}

func (r *MemoryRepository) Create(ctx context.Context, ownerID string, in Input) (Event, error) {
	in, err := in.Normalize()
	if err != nil {
		return Event{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	e := Event{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Name:            in.Name,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		IsActive:        in.Active(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.events[e.ID] = e
	return e, nil
}

func (r *MemoryRepository) Update(ctx context.Context, ownerID, eventID string, in Input) (Event, error) {
	in, err := in.Normalize()
	if err != nil {
		return Event{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok || e.OwnerID != ownerID {
		return Event{}, ErrNotFound
	}
	e.Name = in.Name
	e.Description = in.Description
	e.DurationMinutes = in.DurationMinutes
	e.IsActive = in.Active()
	e.UpdatedAt = r.now().UTC()
	r.events[eventID] = e
	return e, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ownerID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok || e.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.events, eventID)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, eventID string) (Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[eventID]
	if !ok || e.OwnerID != ownerID {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepository) List(ctx context.Context, ownerID string) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	for _, e := range r.events {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a == b {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	return out, nil
}
