// Package calendar renders an owner's bookings as an iCalendar feed.
package calendar

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
)

const productID = "-//scheduled//scheduling-service//EN"

// Feed describes the calendar being exported.
type Feed struct {
	Name string
	// Titles maps event ids to display names used as the VEVENT summary.
	Titles map[string]string
	Now    time.Time
}

// Render writes one VEVENT per booking. Cancelled bookings are kept with
// STATUS:CANCELLED so subscribed clients drop them.
func (f Feed) Render(bookings []ledger.Booking) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	for _, b := range bookings {
		ev := cal.AddEvent(b.ID + "@scheduled")
		ev.SetDtStampTime(now.UTC())
		ev.SetCreatedTime(b.CreatedAt.UTC())
		ev.SetStartAt(b.Interval.Start())
		ev.SetEndAt(b.Interval.End())
		ev.SetSummary(f.summary(b))
		if desc := description(b); desc != "" {
			ev.SetDescription(desc)
		}
		if b.Status == ledger.StatusCancelled {
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		} else {
			ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
		if b.Visitor.Email != "" {
			ev.AddAttendee("mailto:" + b.Visitor.Email)
		}
	}
	return cal.Serialize()
}

func (f Feed) summary(b ledger.Booking) string {
	title := f.Titles[b.EventID]
	if title == "" {
		title = "Booking"
	}
	if b.Visitor.Name == "" {
		return title
	}
	return title + " with " + b.Visitor.Name
}

func description(b ledger.Booking) string {
	var parts []string
	if b.Visitor.Email != "" {
		parts = append(parts, "Email: "+b.Visitor.Email)
	}
	if notes := strings.TrimSpace(b.Visitor.Notes); notes != "" {
		parts = append(parts, "Notes: "+notes)
	}
	return strings.Join(parts, "\n")
}
