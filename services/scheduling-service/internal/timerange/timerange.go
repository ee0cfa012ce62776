// Package timerange implements half-open intervals over absolute instants and
// the small algebra the slot resolver is built on.
package timerange

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidRange = errors.New("invalid time range")

// Range is the half-open interval [start, end). The zero value is empty and
// is never returned by New.
type Range struct {
	start time.Time
	end   time.Time
}

// New returns [start, end) or ErrInvalidRange when start is not before end.
func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return Range{start: start.UTC(), end: end.UTC()}, nil
}

// MustNew is New for ranges known to be well formed.
func MustNew(start, end time.Time) Range {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Range) Start() time.Time { return r.start }
func (r Range) End() time.Time   { return r.end }

func (r Range) Duration() time.Duration { return r.end.Sub(r.start) }

func (r Range) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return !o.start.Before(r.start) && !o.end.After(r.end)
}

// Overlaps reports whether the two ranges share at least one instant.
func (r Range) Overlaps(o Range) bool {
	return r.start.Before(o.end) && o.start.Before(r.end)
}

func (r Range) Equal(o Range) bool {
	return r.start.Equal(o.start) && r.end.Equal(o.end)
}

func (r Range) String() string {
	return "[" + r.start.Format(time.RFC3339) + ", " + r.end.Format(time.RFC3339) + ")"
}

// Intersect returns the overlap of a and b. ok is false when they share no
// instant.
func Intersect(a, b Range) (Range, bool) {
	start := a.start
	if b.start.After(start) {
		start = b.start
	}
	end := a.end
	if b.end.Before(end) {
		end = b.end
	}
	if !start.Before(end) {
		return Range{}, false
	}
	return Range{start: start, end: end}, true
}

// Subtract removes every busy range from a. busy must be sorted and disjoint,
// as returned by MergeOverlapping. The result is sorted and disjoint and every
// element lies inside a.
func Subtract(a Range, busy []Range) []Range {
	var out []Range
	cursor := a.start
	for _, b := range busy {
		if !b.end.After(cursor) {
			continue
		}
		if !b.start.Before(a.end) {
			break
		}
		if b.start.After(cursor) {
			out = append(out, Range{start: cursor, end: b.start})
		}
		cursor = b.end
		if !cursor.Before(a.end) {
			return out
		}
	}
	if cursor.Before(a.end) {
		out = append(out, Range{start: cursor, end: a.end})
	}
	return out
}

// SubtractAll applies Subtract to each range of available, which must itself
// be sorted and disjoint.
func SubtractAll(available, busy []Range) []Range {
	var out []Range
	for _, a := range available {
		out = append(out, Subtract(a, busy)...)
	}
	return out
}

// MergeOverlapping sorts ranges by start and coalesces any that overlap or
// touch. The input slice is not modified.
func MergeOverlapping(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start.Equal(sorted[j].start) {
			return sorted[i].end.Before(sorted[j].end)
		}
		return sorted[i].start.Before(sorted[j].start)
	})

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if !r.start.After(last.end) {
			if r.end.After(last.end) {
				last.end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Widen extends r by d on both sides.
func (r Range) Widen(d time.Duration) Range {
	if d <= 0 {
		return r
	}
	return Range{start: r.start.Add(-d), end: r.end.Add(d)}
}
