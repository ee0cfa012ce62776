package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
)

// Event is the envelope written to the outbox table. The Kafka topic equals
// EventType and the message key is AggregateID.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventBookingConfirmed = "scheduling.booking.confirmed.v1"
	EventBookingCancelled = "scheduling.booking.cancelled.v1"

	aggregateBooking = "booking"
)

// BookingPayload is the JSON body of both booking events.
type BookingPayload struct {
	BookingID    string `json:"booking_id"`
	OwnerID      string `json:"owner_id"`
	EventID      string `json:"event_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
}

// NewBookingEvent builds the outbox envelope for b. eventType must be one of
// the booking event constants.
func NewBookingEvent(eventType string, b ledger.Booking) (Event, error) {
	switch eventType {
	case EventBookingConfirmed, EventBookingCancelled:
	default:
		return Event{}, fmt.Errorf("outbox: %q is not a booking event", eventType)
	}
	body := BookingPayload{
		BookingID:    b.ID,
		OwnerID:      b.OwnerID,
		EventID:      b.EventID,
		StartTime:    b.Interval.Start().UTC().Format(time.RFC3339),
		EndTime:      b.Interval.End().UTC().Format(time.RFC3339),
		Status:       string(b.Status),
		VisitorName:  b.Visitor.Name,
		VisitorEmail: b.Visitor.Email,
	}
	if b.CancelledAt != nil {
		body.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
