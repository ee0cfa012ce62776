package slots

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

// Monday 2026-03-02.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func mondayNineToTen(t *testing.T) availability.Weekly {
	t.Helper()
	w, err := availability.New("owner-1", "UTC", []availability.Rule{
		{Day: time.Monday, Start: 9 * 60, End: 10 * 60},
	})
	if err != nil {
		t.Fatalf("availability.New: %v", err)
	}
	return w
}

func dayWindow() timerange.Range {
	return timerange.MustNew(monday, monday.Add(24*time.Hour))
}

func TestResolveConflictScenario(t *testing.T) {
	store := ledger.NewMemoryStore()
	l := ledger.New(store)
	r := NewResolver(Policy{})
	q := Query{OwnerID: "owner-1", Window: dayWindow(), Duration: 30 * time.Minute, Step: 30 * time.Minute}

	got, err := r.Resolve(context.Background(), mondayNineToTen(t), l, q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || !got[0].Start.Equal(at(9, 0)) || !got[1].Start.Equal(at(9, 30)) || !got[1].End.Equal(at(10, 0)) {
		t.Fatalf("got %v", got)
	}

	err = store.Insert(context.Background(), ledger.Booking{
		ID: "b1", OwnerID: "owner-1", EventID: "e1",
		Interval: timerange.MustNew(at(9, 0), at(9, 30)), Status: ledger.StatusConfirmed,
	}, 0)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err = r.Resolve(context.Background(), mondayNineToTen(t), l, q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || !got[0].Start.Equal(at(9, 30)) || !got[0].End.Equal(at(10, 0)) {
		t.Fatalf("got %v", got)
	}
}

func TestResolveDefaultsStepToDuration(t *testing.T) {
	got, err := NewResolver(Policy{}).Resolve(context.Background(), mondayNineToTen(t), ledger.New(ledger.NewMemoryStore()),
		Query{OwnerID: "owner-1", Window: dayWindow(), Duration: 20 * time.Minute})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// 09:00, 09:20, 09:40.
	if len(got) != 3 || !got[2].Start.Equal(at(9, 40)) {
		t.Fatalf("got %v", got)
	}
}

func TestResolveFinerStep(t *testing.T) {
	got, err := NewResolver(Policy{}).Resolve(context.Background(), mondayNineToTen(t), ledger.New(ledger.NewMemoryStore()),
		Query{OwnerID: "owner-1", Window: dayWindow(), Duration: 30 * time.Minute, Step: 15 * time.Minute})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// 09:00, 09:15, 09:30.
	if len(got) != 3 || !got[2].Start.Equal(at(9, 30)) {
		t.Fatalf("got %v", got)
	}
}

func TestCandidatesBoundary(t *testing.T) {
	exact := []timerange.Range{timerange.MustNew(at(9, 0), at(9, 30))}
	got := Candidates(exact, 30*time.Minute, 30*time.Minute)
	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) {
		t.Fatalf("exact fit: got %v", got)
	}
	short := []timerange.Range{timerange.MustNew(at(9, 0), at(9, 29))}
	if got := Candidates(short, 30*time.Minute, 30*time.Minute); len(got) != 0 {
		t.Fatalf("short range: got %v", got)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	store := ledger.NewMemoryStore(ledger.Booking{
		ID: "b1", OwnerID: "owner-1", Interval: timerange.MustNew(at(9, 10), at(9, 25)), Status: ledger.StatusConfirmed,
	})
	r := NewResolver(Policy{})
	q := Query{OwnerID: "owner-1", Window: dayWindow(), Duration: 15 * time.Minute, Step: 5 * time.Minute}
	first, err := r.Resolve(context.Background(), mondayNineToTen(t), ledger.New(store), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), mondayNineToTen(t), ledger.New(store), q)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestResolveAppliesPolicy(t *testing.T) {
	store := ledger.NewMemoryStore(ledger.Booking{
		ID: "b1", OwnerID: "owner-1", Interval: timerange.MustNew(at(9, 30), at(9, 45)), Status: ledger.StatusConfirmed,
	})
	r := NewResolver(Policy{MinLeadTime: 10 * time.Minute, Buffer: 15 * time.Minute})
	got, err := r.Resolve(context.Background(), mondayNineToTen(t), ledger.New(store), Query{
		OwnerID:  "owner-1",
		Window:   dayWindow(),
		Duration: 15 * time.Minute,
		Step:     15 * time.Minute,
		Now:      at(8, 55),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// The buffer leaves only 09:00-09:15 free and the 09:05 lead cutoff drops it.
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}

	got, err = NewResolver(Policy{MaxHorizon: time.Hour}).Resolve(context.Background(), mondayNineToTen(t), ledger.New(ledger.NewMemoryStore()), Query{
		OwnerID:  "owner-1",
		Window:   dayWindow(),
		Duration: 15 * time.Minute,
		Now:      at(8, 20),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Horizon ends at 09:20.
	if len(got) != 2 || !got[1].Start.Equal(at(9, 15)) {
		t.Fatalf("got %v", got)
	}
}

func TestResolveEmptyAvailability(t *testing.T) {
	w, err := availability.New("owner-1", "UTC", nil)
	if err != nil {
		t.Fatalf("availability.New: %v", err)
	}
	got, err := NewResolver(Policy{}).Resolve(context.Background(), w, ledger.New(ledger.NewMemoryStore()),
		Query{OwnerID: "owner-1", Window: dayWindow(), Duration: time.Minute})
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v %v", got, err)
	}
}

type failingBusy struct{ err error }

func (f failingBusy) BusyRanges(context.Context, string, timerange.Range) ([]timerange.Range, error) {
	return nil, f.err
}

func TestResolvePropagatesStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewResolver(Policy{}).Resolve(context.Background(), mondayNineToTen(t), failingBusy{err: boom},
		Query{OwnerID: "owner-1", Window: dayWindow(), Duration: 30 * time.Minute})
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestResolveRejectsBadQuery(t *testing.T) {
	_, err := NewResolver(Policy{}).Resolve(context.Background(), mondayNineToTen(t), failingBusy{},
		Query{OwnerID: "owner-1", Window: dayWindow()})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSlotInKeepsInstant(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	s := Slot{Start: at(9, 0), End: at(9, 30)}
	local := s.In(loc)
	if !local.Start.Equal(s.Start) || local.Start.Hour() != 14 || local.Start.Minute() != 30 {
		t.Fatalf("got %s", local.Start)
	}
}
