// Package availability models an owner's recurring weekly schedule and
// resolves it into absolute time ranges.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/validate"
)

var ErrNotFound = errors.New("schedule not found")

// Rule makes the owner available on Day between Start and End, local time.
// A rule never crosses midnight; End may be EndOfDay.
type Rule struct {
	Day   time.Weekday
	Start Clock
	End   Clock
}

func (r Rule) String() string {
	return WeekdayName(r.Day) + " " + r.Start.String() + "-" + r.End.String()
}

func (r Rule) overlaps(o Rule) bool {
	return r.Day == o.Day && r.Start < o.End && o.Start < r.End
}

// Weekly is an immutable snapshot of an owner's schedule. Mutators return a
// new value.
type Weekly struct {
	ownerID string
	zone    string
	loc     *time.Location
	rules   []Rule
}

// New validates the zone and rules. Failures are reported as *validate.Error.
func New(ownerID, zone string, rules []Rule) (Weekly, error) {
	verr := &validate.Error{}
	if strings.TrimSpace(ownerID) == "" {
		verr.Add("owner_id", "is required")
	}
	loc, err := loadZone(zone)
	if err != nil {
		verr.Add("time_zone", err.Error())
	}
	checkRules(rules, verr)
	if err := verr.OrNil(); err != nil {
		return Weekly{}, err
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sortRules(sorted)
	return Weekly{ownerID: ownerID, zone: zone, loc: loc, rules: sorted}, nil
}

func (w Weekly) OwnerID() string          { return w.ownerID }
func (w Weekly) Zone() string             { return w.zone }
func (w Weekly) Location() *time.Location { return w.loc }

func (w Weekly) Rules() []Rule {
	out := make([]Rule, len(w.rules))
	copy(out, w.rules)
	return out
}

func (w Weekly) IsZero() bool { return w.loc == nil }

// AddRule returns a copy of w with r added.
func (w Weekly) AddRule(r Rule) (Weekly, error) {
	return New(w.ownerID, w.zone, append(w.Rules(), r))
}

// ReplaceRules returns a copy of w with the rule set swapped out.
func (w Weekly) ReplaceRules(rules []Rule) (Weekly, error) {
	return New(w.ownerID, w.zone, rules)
}

// RemoveRule returns a copy of w without r. Removing an absent rule is not an
// error.
func (w Weekly) RemoveRule(r Rule) Weekly {
	out := make([]Rule, 0, len(w.rules))
	for _, existing := range w.rules {
		if existing != r {
			out = append(out, existing)
		}
	}
	w.rules = out
	return w
}

// WithZone returns a copy of w interpreted in a different zone.
func (w Weekly) WithZone(zone string) (Weekly, error) {
	return New(w.ownerID, zone, w.rules)
}

func loadZone(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, errors.New("is required")
	}
	if strings.EqualFold(zone, "local") {
		return nil, errors.New("must be an IANA zone name")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", zone)
	}
	return loc, nil
}

func checkRules(rules []Rule, verr *validate.Error) {
	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		switch {
		case r.Day < time.Sunday || r.Day > time.Saturday:
			verr.Add(field, "invalid day of week")
		case r.Start < 0 || r.Start >= EndOfDay:
			verr.Add(field, "start must be between 00:00 and 23:59")
		case r.End <= 0 || r.End > EndOfDay:
			verr.Add(field, "end must be between 00:01 and 24:00")
		case r.Start >= r.End:
			verr.Add(field, "start must be before end")
		}
	}
	for i := range rules {
		for j := i + 1; j < len(rules); j++ {
			if rules[i].overlaps(rules[j]) {
				verr.Add(fmt.Sprintf("rules[%d]", j), "overlaps "+rules[i].String())
			}
		}
	}
}

func sortRules(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Day != rules[j].Day {
			return rules[i].Day < rules[j].Day
		}
		return rules[i].Start < rules[j].Start
	})
}
