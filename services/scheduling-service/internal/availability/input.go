package availability

import (
	"fmt"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/validate"
)

// RuleInput is the wire form of a Rule.
type RuleInput struct {
	Day   string `json:"day" yaml:"day" validate:"required,oneof=mon tue wed thu fri sat sun"`
	Start string `json:"start" yaml:"start" validate:"required,clock"`
	End   string `json:"end" yaml:"end" validate:"required,clock"`
}

// ScheduleInput is the wire form of a Weekly schedule.
type ScheduleInput struct {
	TimeZone string      `json:"time_zone" yaml:"time_zone" validate:"required,timezone"`
	Rules    []RuleInput `json:"rules" yaml:"rules" validate:"dive"`
}

// Build validates in and returns the schedule for ownerID.
func (in ScheduleInput) Build(ownerID string) (Weekly, error) {
	if err := validate.Struct(in); err != nil {
		return Weekly{}, err
	}
	rules := make([]Rule, 0, len(in.Rules))
	verr := &validate.Error{}
	for i, ri := range in.Rules {
		day, err := ParseWeekday(ri.Day)
		if err != nil {
			verr.Add(fmt.Sprintf("rules[%d].day", i), err.Error())
			continue
		}
		start, err := ParseClock(ri.Start)
		if err != nil {
			verr.Add(fmt.Sprintf("rules[%d].start", i), err.Error())
			continue
		}
		end, err := ParseClock(ri.End)
		if err != nil {
			verr.Add(fmt.Sprintf("rules[%d].end", i), err.Error())
			continue
		}
		rules = append(rules, Rule{Day: day, Start: start, End: end})
	}
	if err := verr.OrNil(); err != nil {
		return Weekly{}, err
	}
	return New(ownerID, in.TimeZone, rules)
}

// Input renders w back into its wire form.
func (w Weekly) Input() ScheduleInput {
	out := ScheduleInput{TimeZone: w.zone, Rules: make([]RuleInput, 0, len(w.rules))}
	for _, r := range w.rules {
		out.Rules = append(out.Rules, RuleInput{
			Day:   WeekdayName(r.Day),
			Start: r.Start.String(),
			End:   r.End.String(),
		})
	}
	return out
}
