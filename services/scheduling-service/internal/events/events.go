// Package events defines the bookable meeting types an owner offers.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/validate"
)

var ErrNotFound = errors.New("event not found")

// MaxDurationMinutes caps a single event at twelve hours.
const MaxDurationMinutes = 12 * 60

type Event struct {
	ID              string
	OwnerID         string
	Name            string
	Description     string
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e Event) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Input is the owner-editable part of an Event.
type Input struct {
	Name            string `json:"name" validate:"required,min=5,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=720"`
	IsActive        *bool  `json:"is_active"`
}

// Normalize trims text fields and validates. IsActive defaults to true.
func (in Input) Normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.IsActive == nil {
		active := true
		in.IsActive = &active
	}
	if err := validate.Struct(in); err != nil {
		return Input{}, err
	}
	return in, nil
}

func (in Input) Active() bool {
	return in.IsActive == nil || *in.IsActive
}

// Repository persists events. Every call is scoped to the owning user; an id
// owned by someone else behaves as missing.
type Repository interface {
	Create(ctx context.Context, ownerID string, in Input) (Event, error)
	Update(ctx context.Context, ownerID, eventID string, in Input) (Event, error)
	Delete(ctx context.Context, ownerID, eventID string) error
	Get(ctx context.Context, ownerID, eventID string) (Event, error)
	List(ctx context.Context, ownerID string) ([]Event, error)
}

// FormatDuration renders minutes as "45 mins", "1 hr", "2 hrs 30 mins".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0min"
	}
	hours, mins := minutes/60, minutes%60

	minPart := fmt.Sprintf("%d %s", mins, plural(mins, "min", "mins"))
	hourPart := fmt.Sprintf("%d %s", hours, plural(hours, "hr", "hrs"))
	switch {
	case hours == 0:
		return minPart
	case mins == 0:
		return hourPart
	default:
		return hourPart + " " + minPart
	}
}

func plural(n int, one, many string) string {
	if n > 1 {
		return many
	}
	return one
}
