// Package admission is the entry point for resolving and committing bookings.
package admission

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/ak-ash93/scheduled/libs/otel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/slots"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/validate"
)

// State is the lifecycle of a single booking attempt.
type State string

const (
	StateRequested State = "requested"
	StateValidated State = "validated"
	StateCommitted State = "committed"
	StateRejected  State = "rejected"
)

// ScheduleSource loads an owner's availability as an immutable snapshot.
type ScheduleSource interface {
	Load(ctx context.Context, ownerID string) (availability.Weekly, error)
}

type EventSource interface {
	Get(ctx context.Context, ownerID, eventID string) (events.Event, error)
}

type Config struct {
	Schedules ScheduleSource
	Events    EventSource
	Store     ledger.Store
	Resolver  *slots.Resolver
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	schedules ScheduleSource
	events    EventSource
	store     ledger.Store
	ledger    *ledger.Ledger
	resolver  *slots.Resolver
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	tracer    trace.Tracer
}

func NewService(cfg Config) *Service {
	if cfg.Resolver == nil {
		cfg.Resolver = slots.NewResolver(slots.Policy{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		schedules: cfg.Schedules,
		events:    cfg.Events,
		store:     cfg.Store,
		ledger:    ledger.New(cfg.Store),
		resolver:  cfg.Resolver,
		logger:    cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
		tracer:    otelx.Tracer("scheduling/admission"),
	}
}

type SlotsRequest struct {
	OwnerID string
	EventID string
	Window  timerange.Range
	// Step between candidate starts; zero uses the event duration.
	Step time.Duration
}

// ResolveSlots lists the bookable slots for an event. An inactive event or an
// owner without a schedule yields no slots.
func (s *Service) ResolveSlots(ctx context.Context, req SlotsRequest) ([]slots.Slot, error) {
	evt, err := s.events.Get(ctx, req.OwnerID, req.EventID)
	if err != nil {
		return nil, err
	}
	if !evt.IsActive {
		return nil, nil
	}
	weekly, err := s.schedules.Load(ctx, req.OwnerID)
	if errors.Is(err, availability.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, weekly, s.ledger, slots.Query{
		OwnerID:  req.OwnerID,
		Window:   req.Window,
		Duration: evt.Duration(),
		Step:     req.Step,
		Now:      s.now(),
	})
}

type Request struct {
	OwnerID string    `json:"owner_id" validate:"required"`
	EventID string    `json:"event_id" validate:"required"`
	Start   time.Time `json:"start_time" validate:"required"`
	// Step of the slot grid the start was picked from; zero uses the event
	// duration. It must match the step used when the slots were listed.
	Step    time.Duration `json:"-"`
	Visitor Visitor       `json:"visitor"`
}

type Visitor struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Notes string `json:"notes" validate:"max=2000"`
}

// Book re-resolves the owner's local day around the requested start on the
// caller's step grid and commits the slot if the start is still offered. A
// start that is off the grid, no longer free, or lost to a concurrent commit
// yields ErrSlotNoLongerAvailable; the caller decides whether to try another
// slot.
func (s *Service) Book(ctx context.Context, req Request) (ledger.Booking, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.EventID = strings.TrimSpace(req.EventID)
	req.Visitor.Name = strings.TrimSpace(req.Visitor.Name)
	req.Visitor.Email = strings.TrimSpace(req.Visitor.Email)

	ctx, span := s.tracer.Start(ctx, "admission.book", trace.WithAttributes(
		attribute.String("owner.id", req.OwnerID),
		attribute.String("event.id", req.EventID),
	))
	defer span.End()
	span.AddEvent(string(StateRequested))

	if err := validate.Struct(req); err != nil {
		return ledger.Booking{}, s.rejected(ctx, span, err)
	}
	if req.Step < 0 {
		return ledger.Booking{}, s.rejected(ctx, span, validate.Field("step_minutes", "must not be negative"))
	}

	evt, err := s.events.Get(ctx, req.OwnerID, req.EventID)
	if err != nil {
		return ledger.Booking{}, s.failed(span, err)
	}
	if !evt.IsActive {
		return ledger.Booking{}, s.rejected(ctx, span, reject(ReasonEventUnavailable, "event is not active"))
	}

	slot, err := timerange.New(req.Start, req.Start.Add(evt.Duration()))
	if err != nil {
		return ledger.Booking{}, s.rejected(ctx, span, validate.Field("start_time", err.Error()))
	}

	weekly, err := s.schedules.Load(ctx, req.OwnerID)
	if errors.Is(err, availability.ErrNotFound) {
		return ledger.Booking{}, s.rejected(ctx, span, reject(ReasonSlotNoLongerAvailable, "owner has no schedule"))
	}
	if err != nil {
		return ledger.Booking{}, s.failed(span, err)
	}

	now := s.now()
	fresh, err := s.resolver.Resolve(ctx, weekly, s.ledger, slots.Query{
		OwnerID:  req.OwnerID,
		Window:   localDays(slot, weekly.Location()),
		Duration: evt.Duration(),
		Step:     req.Step,
		Now:      now,
	})
	if err != nil {
		return ledger.Booking{}, s.failed(span, err)
	}
	if !containsStart(fresh, slot.Start()) {
		return ledger.Booking{}, s.rejected(ctx, span, reject(ReasonSlotNoLongerAvailable, ""))
	}
	span.AddEvent(string(StateValidated))

	b := ledger.Booking{
		ID:        s.newID(),
		OwnerID:   req.OwnerID,
		EventID:   evt.ID,
		Interval:  slot,
		Status:    ledger.StatusConfirmed,
		Visitor:   ledger.Visitor(req.Visitor),
		CreatedAt: now.UTC(),
	}
	if err := s.store.Insert(ctx, b, s.resolver.Policy().Buffer); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return ledger.Booking{}, s.rejected(ctx, span, reject(ReasonSlotNoLongerAvailable, "lost to a concurrent booking"))
		}
		return ledger.Booking{}, s.failed(span, err)
	}

	span.AddEvent(string(StateCommitted))
	span.SetAttributes(attribute.String("booking.id", b.ID))
	s.logger.InfoContext(ctx, "booking committed",
		"booking_id", b.ID,
		"owner_id", b.OwnerID,
		"event_id", b.EventID,
		"start_time", b.Interval.Start().Format(time.RFC3339),
	)
	return b, nil
}

// Cancel moves a confirmed booking to cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, ownerID, bookingID string) (ledger.Booking, error) {
	b, changed, err := s.store.Cancel(ctx, ownerID, bookingID, s.now())
	if err != nil {
		return ledger.Booking{}, err
	}
	if changed {
		s.logger.InfoContext(ctx, "booking cancelled", "booking_id", b.ID, "owner_id", ownerID)
	}
	return b, nil
}

// ListBookings returns the owner's bookings overlapping window, or all of them
// when window is zero.
func (s *Service) ListBookings(ctx context.Context, ownerID string, window timerange.Range, limit int) ([]ledger.Booking, error) {
	return s.store.List(ctx, ownerID, window, limit)
}

func (s *Service) rejected(ctx context.Context, span trace.Span, err error) error {
	span.AddEvent(string(StateRejected))
	span.SetAttributes(attribute.String("booking.rejection", err.Error()))
	s.logger.InfoContext(ctx, "booking rejected", "reason", err.Error())
	return err
}

func (s *Service) failed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "booking failed")
	return err
}

// localDays spans whole days of loc from the midnight before r starts to the
// midnight after it ends, so candidate starts are anchored where a day listing
// anchors them.
func localDays(r timerange.Range, loc *time.Location) timerange.Range {
	first := r.Start().In(loc)
	last := r.End().In(loc)
	from := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	to := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)
	if to.Before(r.End()) {
		to = to.AddDate(0, 0, 1)
	}
	return timerange.MustNew(from, to)
}

func containsStart(in []slots.Slot, start time.Time) bool {
	for _, sl := range in {
		if sl.Start.Equal(start) {
			return true
		}
	}
	return false
}
