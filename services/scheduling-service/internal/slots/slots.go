// Package slots turns availability and busy time into offerable slots.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelx "github.com/ak-ash93/scheduled/libs/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

var ErrInvalidQuery = errors.New("invalid slot query")

// Slot is a candidate booking interval. Instants are absolute; use In only for
// display.
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) In(loc *time.Location) Slot {
	return Slot{Start: s.Start.In(loc), End: s.End.In(loc)}
}

func (s Slot) Range() timerange.Range {
	return timerange.MustNew(s.Start, s.End)
}

// BusySource supplies merged busy ranges for an owner. *ledger.Ledger
// implements it.
type BusySource interface {
	BusyRanges(ctx context.Context, ownerID string, window timerange.Range) ([]timerange.Range, error)
}

// Policy carries owner-independent booking rules. The zero value imposes no
// lead time, horizon or buffer.
type Policy struct {
	MinLeadTime time.Duration
	MaxHorizon  time.Duration
	Buffer      time.Duration
}

type Query struct {
	OwnerID  string
	Window   timerange.Range
	Duration time.Duration
	// Step between candidate starts. Zero means Duration.
	Step time.Duration
	// Now anchors MinLeadTime and MaxHorizon. Zero disables both.
	Now time.Time
}

type Resolver struct {
	policy Policy
	tracer trace.Tracer
}

func NewResolver(p Policy) *Resolver {
	return &Resolver{policy: p, tracer: otelx.Tracer("scheduling/slots")}
}

func (r *Resolver) Policy() Policy { return r.policy }

// Resolve lists the slots of q.Duration that fit inside availability minus
// busy time within q.Window, sorted by start. An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, weekly availability.Weekly, busy BusySource, q Query) ([]Slot, error) {
	if q.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidQuery)
	}
	if q.Step < 0 {
		return nil, fmt.Errorf("%w: step must not be negative", ErrInvalidQuery)
	}
	if q.Window.IsZero() {
		return nil, fmt.Errorf("%w: window is required", ErrInvalidQuery)
	}
	step := q.Step
	if step == 0 {
		step = q.Duration
	}

	ctx, span := r.tracer.Start(ctx, "slots.resolve", trace.WithAttributes(
		attribute.String("owner.id", q.OwnerID),
		attribute.Int64("slot.duration_minutes", int64(q.Duration/time.Minute)),
	))
	defer span.End()

	available := weekly.Resolve(q.Window)
	if len(available) == 0 {
		span.SetAttributes(attribute.Int("slot.count", 0))
		return nil, nil
	}

	busyWindow := q.Window.Widen(r.policy.Buffer)
	taken, err := busy.BusyRanges(ctx, q.OwnerID, busyWindow)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "busy ranges")
		return nil, err
	}
	if r.policy.Buffer > 0 {
		widened := make([]timerange.Range, 0, len(taken))
		for _, b := range taken {
			widened = append(widened, b.Widen(r.policy.Buffer))
		}
		taken = timerange.MergeOverlapping(widened)
	}

	free := timerange.SubtractAll(available, taken)
	out := r.filter(Candidates(free, q.Duration, step), q.Now)
	span.SetAttributes(attribute.Int("slot.count", len(out)))
	return out, nil
}

func (r *Resolver) filter(in []Slot, now time.Time) []Slot {
	if now.IsZero() || (r.policy.MinLeadTime <= 0 && r.policy.MaxHorizon <= 0) {
		return in
	}
	earliest := now.Add(r.policy.MinLeadTime)
	out := in[:0]
	for _, s := range in {
		if s.Start.Before(earliest) {
			continue
		}
		if r.policy.MaxHorizon > 0 && s.Start.After(now.Add(r.policy.MaxHorizon)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Candidates walks each free range in step increments and keeps every start
// whose slot ends no later than the range end.
func Candidates(free []timerange.Range, duration, step time.Duration) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	var out []Slot
	for _, f := range free {
		for t := f.Start(); !t.Add(duration).After(f.End()); t = t.Add(step) {
			out = append(out, Slot{Start: t, End: t.Add(duration)})
		}
	}
	return out
}
