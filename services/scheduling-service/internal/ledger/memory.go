package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

// MemoryStore is a Store kept in process memory. The overlap check and insert
// run under one lock.
type MemoryStore struct {
	mu       sync.Mutex
	bookings map[string]Booking
}

func NewMemoryStore(seed ...Booking) *MemoryStore {
	s := &MemoryStore{bookings: map[string]Booking{}}
	for _, b := range seed {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *MemoryStore) ListConfirmed(ctx context.Context, ownerID string, window timerange.Range) ([]Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Booking
	for _, b := range s.bookings {
		if b.OwnerID == ownerID && b.Status == StatusConfirmed && b.Interval.Overlaps(window) {
			out = append(out, b)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, b Booking, buffer time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Status == StatusConfirmed {
		for _, existing := range s.bookings {
			if existing.OwnerID == b.OwnerID && existing.Status == StatusConfirmed && existing.Interval.Widen(buffer).Overlaps(b.Interval) {
				return ErrConflict
			}
		}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, bookingID string) (Booking, error) {
	if err := ctx.Err(); err != nil {
		return Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingID]
	if !ok || b.OwnerID != ownerID {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) List(ctx context.Context, ownerID string, window timerange.Range, limit int) ([]Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Booking
	for _, b := range s.bookings {
		if b.OwnerID != ownerID {
			continue
		}
		if !window.IsZero() && !b.Interval.Overlaps(window) {
			continue
		}
		out = append(out, b)
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, ownerID, bookingID string, at time.Time) (Booking, bool, error) {
	if err := ctx.Err(); err != nil {
		return Booking{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingID]
	if !ok || b.OwnerID != ownerID {
		return Booking{}, false, ErrNotFound
	}
	if b.Status == StatusCancelled {
		return b, false, nil
	}
	at = at.UTC()
	b.Status = StatusCancelled
	b.CancelledAt = &at
	s.bookings[bookingID] = b
	return b, true, nil
}

func sortByStart(bs []Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Interval.Start().Equal(bs[j].Interval.Start()) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].Interval.Start().Before(bs[j].Interval.Start())
	})
}
