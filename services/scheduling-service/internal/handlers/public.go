package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/admission"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/slots"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	TimeZone string     `json:"time_zone"`
	Slots    []slotItem `json:"slots"`
}

// Slots lists bookable slots. Instants are rendered in the visitor's tz.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("owner_id"))
	eventID := strings.TrimSpace(q.Get("event_id"))
	if ownerID == "" || eventID == "" {
		http.Error(w, "owner_id and event_id are required", http.StatusBadRequest)
		return
	}
	loc, err := loadZone(q.Get("tz"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	window, err := parseWindow(r, loc, h.now(), 7, h.maxWindow)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stepMins, err := intParam(r, "step_minutes", 0, 1, 720)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found, err := h.svc.ResolveSlots(r.Context(), admission.SlotsRequest{
		OwnerID: ownerID,
		EventID: eventID,
		Window:  window,
		Step:    time.Duration(stepMins) * time.Minute,
	})
	switch {
	case errors.Is(err, events.ErrNotFound):
		http.Error(w, "event not found", http.StatusNotFound)
		return
	case errors.Is(err, slots.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.internalError(w, r, "failed to resolve slots", err)
		return
	}

	resp := slotsResponse{TimeZone: loc.String(), Slots: make([]slotItem, 0, len(found))}
	for _, s := range found {
		s = s.In(loc)
		resp.Slots = append(resp.Slots, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type bookRequest struct {
	OwnerID   string `json:"owner_id"`
	EventID   string `json:"event_id"`
	StartTime string `json:"start_time"`
	TimeZone  string `json:"time_zone"`
	// StepMinutes repeats the step_minutes the slots were listed with.
	StepMinutes int               `json:"step_minutes"`
	Visitor     admission.Visitor `json:"visitor"`
}

// Book commits a visitor's chosen slot.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"start_time": "must be an RFC3339 timestamp"},
		})
		return
	}
	if req.StepMinutes < 0 || req.StepMinutes > 720 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"step_minutes": "must be between 0 and 720"},
		})
		return
	}
	loc, err := loadZone(req.TimeZone)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.svc.Book(r.Context(), admission.Request{
		OwnerID: req.OwnerID,
		EventID: req.EventID,
		Start:   start,
		Step:    time.Duration(req.StepMinutes) * time.Minute,
		Visitor: req.Visitor,
	})
	if err != nil {
		switch {
		case writeValidation(w, err):
		case errors.Is(err, admission.ErrSlotNoLongerAvailable):
			writeError(w, http.StatusConflict, string(admission.ReasonSlotNoLongerAvailable))
		case errors.Is(err, admission.ErrEventUnavailable):
			writeError(w, http.StatusUnprocessableEntity, string(admission.ReasonEventUnavailable))
		case errors.Is(err, events.ErrNotFound):
			http.Error(w, "event not found", http.StatusNotFound)
		default:
			h.internalError(w, r, "failed to book slot", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toBookingItem(b, loc))
}
