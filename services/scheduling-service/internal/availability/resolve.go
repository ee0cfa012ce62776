package availability

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

var rruleDays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Resolve returns the absolute ranges inside window during which the owner is
// available, sorted and disjoint. Each rule is converted per calendar day in
// the owner's zone, so offsets follow DST transitions. A rule whose start or
// end falls into a spring-forward gap is skipped for that day. An ambiguous
// fall-back wall time resolves to its earlier instant.
func (w Weekly) Resolve(window timerange.Range) []timerange.Range {
	if w.loc == nil || len(w.rules) == 0 || window.IsZero() {
		return nil
	}

	days, err := w.days(window)
	if err != nil {
		return nil
	}

	var out []timerange.Range
	for _, day := range days {
		for _, rule := range w.rules {
			if rule.Day != day.Weekday() {
				continue
			}
			start, ok := localInstant(day, rule.Start, w.loc)
			if !ok {
				continue
			}
			end, ok := localInstant(day, rule.End, w.loc)
			if !ok {
				continue
			}
			r, err := timerange.New(start, end)
			if err != nil {
				continue
			}
			if clipped, ok := timerange.Intersect(r, window); ok {
				out = append(out, clipped)
			}
		}
	}
	return timerange.MergeOverlapping(out)
}

// days lists local noon of every calendar day touched by window whose weekday
// carries at least one rule.
func (w Weekly) days(window timerange.Range) ([]time.Time, error) {
	first := window.Start().In(w.loc)
	last := window.End().Add(-time.Nanosecond).In(w.loc)

	seen := map[time.Weekday]bool{}
	var byDay []rrule.Weekday
	for _, r := range w.rules {
		if !seen[r.Day] {
			seen[r.Day] = true
			byDay = append(byDay, rruleDays[r.Day])
		}
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   time.Date(first.Year(), first.Month(), first.Day(), 12, 0, 0, 0, w.loc),
		Until:     time.Date(last.Year(), last.Month(), last.Day(), 12, 0, 0, 0, w.loc),
		Byweekday: byDay,
	})
	if err != nil {
		return nil, err
	}
	return rule.All(), nil
}

// localInstant converts a wall-clock time on day's calendar date in loc into
// an absolute instant. ok is false when the wall time does not exist.
func localInstant(day time.Time, c Clock, loc *time.Location) (time.Time, bool) {
	y, m, d := day.Date()
	if c == EndOfDay {
		y, m, d = time.Date(y, m, d+1, 12, 0, 0, 0, loc).Date()
		c = 0
	}
	naive := time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, time.UTC)

	var best time.Time
	tried := map[int]bool{}
	for _, shift := range []time.Duration{-36 * time.Hour, -12 * time.Hour, 0, 12 * time.Hour, 36 * time.Hour} {
		_, offset := naive.Add(shift).In(loc).Zone()
		if tried[offset] {
			continue
		}
		tried[offset] = true

		candidate := naive.Add(-time.Duration(offset) * time.Second)
		local := candidate.In(loc)
		ly, lm, ld := local.Date()
		if ly != y || lm != m || ld != d || local.Hour() != c.Hour() || local.Minute() != c.Minute() {
			continue
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best, !best.IsZero()
}
