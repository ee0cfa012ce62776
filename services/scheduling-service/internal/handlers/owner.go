package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/calendar"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

// Schedule reads (GET) or replaces (PUT) the caller's weekly availability.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	owner := ownerID(r)

	if r.Method == http.MethodGet {
		weekly, err := h.schedules.Load(r.Context(), owner)
		if errors.Is(err, availability.ErrNotFound) {
			http.Error(w, "schedule not found", http.StatusNotFound)
			return
		}
		if err != nil {
			h.internalError(w, r, "failed to load schedule", err)
			return
		}
		writeJSON(w, http.StatusOK, weekly.Input())
		return
	}

	var in availability.ScheduleInput
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	weekly, err := in.Build(owner)
	if err != nil {
		if !writeValidation(w, err) {
			h.internalError(w, r, "failed to build schedule", err)
		}
		return
	}
	if err := h.schedules.Save(r.Context(), weekly); err != nil {
		h.internalError(w, r, "failed to save schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, weekly.Input())
}

type eventItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	DurationLabel   string `json:"duration_label"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toEventItem(e events.Event) eventItem {
	return eventItem{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		DurationLabel:   events.FormatDuration(e.DurationMinutes),
		IsActive:        e.IsActive,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Events is CRUD over the caller's event definitions. PUT, DELETE and a
// single-item GET take the id as a query parameter.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete) {
		return
	}
	owner := ownerID(r)
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			e, err := h.events.Get(ctx, owner, id)
			if !h.eventErr(w, r, err) {
				writeJSON(w, http.StatusOK, toEventItem(e))
			}
			return
		}
		list, err := h.events.List(ctx, owner)
		if err != nil {
			h.internalError(w, r, "failed to list events", err)
			return
		}
		items := make([]eventItem, 0, len(list))
		for _, e := range list {
			items = append(items, toEventItem(e))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var in events.Input
		if err := decodeJSON(r, &in); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		e, err := h.events.Create(ctx, owner, in)
		if !h.eventErr(w, r, err) {
			writeJSON(w, http.StatusCreated, toEventItem(e))
		}

	case http.MethodPut:
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		var in events.Input
		if err := decodeJSON(r, &in); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		e, err := h.events.Update(ctx, owner, id, in)
		if !h.eventErr(w, r, err) {
			writeJSON(w, http.StatusOK, toEventItem(e))
		}

	case http.MethodDelete:
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if !h.eventErr(w, r, h.events.Delete(ctx, owner, id)) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// eventErr writes the response for a non-nil err and reports whether it did.
func (h *Handler) eventErr(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case writeValidation(w, err):
	case errors.Is(err, events.ErrNotFound):
		http.Error(w, "event not found", http.StatusNotFound)
	default:
		h.internalError(w, r, "event storage error", err)
	}
	return true
}

// Bookings lists the caller's bookings, optionally within from/to.
func (h *Handler) Bookings(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	loc, err := loadZone(r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", 50, 1, 500)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var window timerange.Range
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" {
		window, err = parseWindow(r, loc, h.now(), 7, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	list, err := h.svc.ListBookings(r.Context(), ownerID(r), window, limit)
	if err != nil {
		h.internalError(w, r, "failed to list bookings", err)
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, toBookingItem(b, loc))
	}
	writeJSON(w, http.StatusOK, items)
}

type cancelRequest struct {
	BookingID string `json:"booking_id"`
}

// Cancel cancels one of the caller's bookings. Repeating it is a no-op. The
// response renders instants in the optional tz query parameter.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	loc, err := loadZone(r.URL.Query().Get("tz"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.svc.Cancel(r.Context(), ownerID(r), req.BookingID)
	if errors.Is(err, ledger.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(b, loc))
}

// CalendarFeed exports the caller's recent bookings as text/calendar.
func (h *Handler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	owner := ownerID(r)
	list, err := h.svc.ListBookings(r.Context(), owner, timerange.Range{}, 500)
	if err != nil {
		h.internalError(w, r, "failed to list bookings", err)
		return
	}
	evts, err := h.events.List(r.Context(), owner)
	if err != nil {
		h.internalError(w, r, "failed to list events", err)
		return
	}
	titles := make(map[string]string, len(evts))
	for _, e := range evts {
		titles[e.ID] = e.Name
	}

	body := calendar.Feed{Name: "Bookings", Titles: titles, Now: h.now()}.Render(list)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
