package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/validate"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeValidation reports a *validate.Error as 400 with per-field messages.
func writeValidation(w http.ResponseWriter, err error) bool {
	var ve *validate.Error
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Fields: ve.Fields})
	return true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func loadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("invalid tz %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid tz %q", name)
	}
	return loc, nil
}

// parseWindow reads the from and to query parameters in loc and caps the span
// at maxSpan when it is positive.
func parseWindow(r *http.Request, loc *time.Location, now time.Time, defaultDays int, maxSpan time.Duration) (timerange.Range, error) {
	q := r.URL.Query()
	window, err := timerange.ParseWindow(q.Get("from"), q.Get("to"), loc, now, defaultDays)
	if err != nil {
		return timerange.Range{}, err
	}
	if maxSpan > 0 && window.Duration() > maxSpan {
		return timerange.Range{}, fmt.Errorf("window must not exceed %d days", int(maxSpan/(24*time.Hour)))
	}
	return window, nil
}

func intParam(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, min, max)
	}
	return n, nil
}

type bookingItem struct {
	BookingID    string `json:"booking_id"`
	EventID      string `json:"event_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email"`
	VisitorNotes string `json:"visitor_notes,omitempty"`
	CreatedAt    string `json:"created_at"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
}

func toBookingItem(b ledger.Booking, loc *time.Location) bookingItem {
	item := bookingItem{
		BookingID:    b.ID,
		EventID:      b.EventID,
		StartTime:    b.Interval.Start().In(loc).Format(time.RFC3339),
		EndTime:      b.Interval.End().In(loc).Format(time.RFC3339),
		Status:       string(b.Status),
		VisitorName:  b.Visitor.Name,
		VisitorEmail: b.Visitor.Email,
		VisitorNotes: b.Visitor.Notes,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}
