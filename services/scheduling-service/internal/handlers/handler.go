// Package handlers exposes the scheduling core over HTTP.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ak-ash93/scheduled/libs/httpx"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/admission"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
)

// ScheduleStore loads and replaces owner schedules.
type ScheduleStore interface {
	Load(ctx context.Context, ownerID string) (availability.Weekly, error)
	Save(ctx context.Context, w availability.Weekly) error
}

type Config struct {
	Service   *admission.Service
	Schedules ScheduleStore
	Events    events.Repository
	Logger    *slog.Logger
	Now       func() time.Time
	// MaxWindow bounds the from/to span a single slots request may ask for.
	MaxWindow time.Duration
}

type Handler struct {
	svc       *admission.Service
	schedules ScheduleStore
	events    events.Repository
	logger    *slog.Logger
	now       func() time.Time
	maxWindow time.Duration
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = 62 * 24 * time.Hour
	}
	return &Handler{
		svc:       cfg.Service,
		schedules: cfg.Schedules,
		events:    cfg.Events,
		logger:    cfg.Logger,
		now:       cfg.Now,
		maxWindow: cfg.MaxWindow,
	}
}

// Register mounts the public routes behind public and the owner routes behind
// owner (normally RequireOwner).
func (h *Handler) Register(mux *http.ServeMux, public, owner httpx.Middleware) {
	mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(h.Slots)))
	mux.Handle("/api/v1/public/book", public(http.HandlerFunc(h.Book)))

	mux.Handle("/api/v1/schedule", owner(http.HandlerFunc(h.Schedule)))
	mux.Handle("/api/v1/events", owner(http.HandlerFunc(h.Events)))
	mux.Handle("/api/v1/bookings", owner(http.HandlerFunc(h.Bookings)))
	mux.Handle("/api/v1/bookings/cancel", owner(http.HandlerFunc(h.Cancel)))
	mux.Handle("/api/v1/bookings.ics", owner(http.HandlerFunc(h.CalendarFeed)))
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "err", err)
	http.Error(w, msg, http.StatusInternalServerError)
}
