package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrEmptyWindow is returned by ParseWindow when to is not after from.
var ErrEmptyWindow = errors.New("to must be after from")

// ParseBound accepts an RFC3339 instant or a YYYY-MM-DD date, which means
// local midnight in loc.
func ParseBound(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD or RFC3339)", raw)
	}
	return d, nil
}

// ParseWindow builds the range between two bounds. An empty from is today in
// loc; an empty to is defaultDays local days after the day from falls on.
// Bounds given as dates are local midnights, so a date in to is exclusive.
func ParseWindow(from, to string, loc *time.Location, now time.Time, defaultDays int) (Range, error) {
	var start, end time.Time
	if strings.TrimSpace(from) != "" {
		t, err := ParseBound(from, loc)
		if err != nil {
			return Range{}, err
		}
		start = t
	} else {
		start = midnight(now, loc)
	}
	if strings.TrimSpace(to) != "" {
		t, err := ParseBound(to, loc)
		if err != nil {
			return Range{}, err
		}
		end = t
	} else {
		end = midnight(start, loc).AddDate(0, 0, defaultDays)
	}
	if !end.After(start) {
		return Range{}, ErrEmptyWindow
	}
	return New(start, end)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
