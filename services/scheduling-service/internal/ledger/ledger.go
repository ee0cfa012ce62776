// Package ledger holds committed bookings and projects them into busy time.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

var (
	// ErrConflict is returned by Store.Insert when a confirmed booking for the
	// same owner overlaps the new interval or sits closer than the buffer.
	ErrConflict = errors.New("booking overlaps an existing confirmed booking")
	ErrNotFound = errors.New("booking not found")
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type Visitor struct {
	Name  string
	Email string
	Notes string
}

type Booking struct {
	ID          string
	OwnerID     string
	EventID     string
	Interval    timerange.Range
	Status      Status
	Visitor     Visitor
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Store is the persistence behind the ledger. Insert must reject b when a
// confirmed booking of the same owner is less than buffer away from it, and
// the check and the write must be atomic with respect to concurrent inserts
// for that owner.
type Store interface {
	ListConfirmed(ctx context.Context, ownerID string, window timerange.Range) ([]Booking, error)
	Insert(ctx context.Context, b Booking, buffer time.Duration) error
	Get(ctx context.Context, ownerID, bookingID string) (Booking, error)
	List(ctx context.Context, ownerID string, window timerange.Range, limit int) ([]Booking, error)
	// Cancel marks the booking cancelled. changed is false when it already was.
	Cancel(ctx context.Context, ownerID, bookingID string, at time.Time) (b Booking, changed bool, err error)
}

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Store() Store { return l.store }

// BusyRanges returns the merged intervals of confirmed bookings for ownerID
// that intersect window. Intervals are not clipped to the window.
func (l *Ledger) BusyRanges(ctx context.Context, ownerID string, window timerange.Range) ([]timerange.Range, error) {
	bookings, err := l.store.ListConfirmed(ctx, ownerID, window)
	if err != nil {
		return nil, err
	}
	ranges := make([]timerange.Range, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != StatusConfirmed || !b.Interval.Overlaps(window) {
			continue
		}
		ranges = append(ranges, b.Interval)
	}
	return timerange.MergeOverlapping(ranges), nil
}
