package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/ak-ash93/scheduled/libs/auth"
	"github.com/ak-ash93/scheduled/libs/httpx"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/admission"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
)

const secret = "test-secret"

// Monday 2026-03-02, before the working day starts.
var testNow = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

type memorySchedules struct {
	mu sync.Mutex
	m  map[string]availability.Weekly
}

func (s *memorySchedules) Load(_ context.Context, ownerID string) (availability.Weekly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.m[ownerID]
	if !ok {
		return availability.Weekly{}, availability.ErrNotFound
	}
	return w, nil
}

func (s *memorySchedules) Save(_ context.Context, w availability.Weekly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[w.OwnerID()] = w
	return nil
}

type testServer struct {
	handler http.Handler
	events  *events.MemoryRepository
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schedules := &memorySchedules{m: map[string]availability.Weekly{}}
	evts := events.NewMemoryRepository(events.Event{
		ID: "evt-30", OwnerID: "owner-1", Name: "Half hour chat", DurationMinutes: 30, IsActive: true,
	})
	svc := admission.NewService(admission.Config{
		Schedules: schedules,
		Events:    evts,
		Store:     ledger.NewMemoryStore(),
		Logger:    logger,
		Now:       func() time.Time { return testNow },
	})
	h := New(Config{Service: svc, Schedules: schedules, Events: evts, Logger: logger, Now: func() time.Time { return testNow }})

	mux := http.NewServeMux()
	noop := func(next http.Handler) http.Handler { return next }
	h.Register(mux, noop, RequireOwner(&auth.Verifier{Secret: secret, Now: func() time.Time { return testNow }}))
	return testServer{handler: httpx.Chain(mux, httpx.WithRequestID), events: evts}
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{Sub: sub, Iat: testNow.Unix(), Exp: testNow.Add(time.Hour).Unix()}, secret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	return tok
}

func (s testServer) do(t *testing.T, method, target, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+bearer(t, owner))
	}
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func putSchedule(t *testing.T, s testServer) {
	t.Helper()
	rw := s.do(t, http.MethodPut, "/api/v1/schedule", "owner-1", availability.ScheduleInput{
		TimeZone: "UTC",
		Rules:    []availability.RuleInput{{Day: "mon", Start: "09:00", End: "10:00"}},
	})
	if rw.Code != http.StatusOK {
		t.Fatalf("PUT schedule: %d %s", rw.Code, rw.Body.String())
	}
}

func slotsFor(t *testing.T, s testServer, query string) slotsResponse {
	t.Helper()
	rw := s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=owner-1&event_id=evt-30"+query, "", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("GET slots: %d %s", rw.Code, rw.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func bookBody(start string) map[string]any {
	return map[string]any{
		"owner_id":   "owner-1",
		"event_id":   "evt-30",
		"start_time": start,
		"visitor":    map[string]string{"name": "Grace", "email": "grace@example.com"},
	}
}

func TestOwnerRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	if rw := s.do(t, http.MethodGet, "/api/v1/schedule", "", nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer badtoken")
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rw.Code)
	}
}

func TestScheduleValidation(t *testing.T) {
	s := newTestServer(t)
	rw := s.do(t, http.MethodPut, "/api/v1/schedule", "owner-1", availability.ScheduleInput{
		TimeZone: "UTC",
		Rules: []availability.RuleInput{
			{Day: "mon", Start: "09:00", End: "12:00"},
			{Day: "mon", Start: "11:00", End: "13:00"},
		},
	})
	if rw.Code != http.StatusBadRequest || !strings.Contains(rw.Body.String(), "rules[1]") {
		t.Fatalf("expected overlap validation error, got %d %s", rw.Code, rw.Body.String())
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/schedule", "owner-1", nil); rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before save, got %d", rw.Code)
	}
	putSchedule(t, s)
	rw = s.do(t, http.MethodGet, "/api/v1/schedule", "owner-1", nil)
	if rw.Code != http.StatusOK || !strings.Contains(rw.Body.String(), `"start":"09:00"`) {
		t.Fatalf("GET schedule: %d %s", rw.Code, rw.Body.String())
	}
}

func TestSlotsBookAndConflict(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)

	resp := slotsFor(t, s, "&from=2026-03-02&to=2026-03-03&step_minutes=30")
	if len(resp.Slots) != 2 || resp.Slots[0].StartTime != "2026-03-02T09:00:00Z" {
		t.Fatalf("slots before booking: %+v", resp)
	}

	rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T09:00:00Z"))
	if rw.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rw.Code, rw.Body.String())
	}
	var created bookingItem
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil || created.Status != "confirmed" {
		t.Fatalf("book response: %+v %v", created, err)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T09:00:00Z"))
	if rw.Code != http.StatusConflict || !strings.Contains(rw.Body.String(), "slot_no_longer_available") {
		t.Fatalf("second book: %d %s", rw.Code, rw.Body.String())
	}

	resp = slotsFor(t, s, "&from=2026-03-02&to=2026-03-03")
	if len(resp.Slots) != 1 || resp.Slots[0].StartTime != "2026-03-02T09:30:00Z" {
		t.Fatalf("slots after booking: %+v", resp)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/bookings/cancel", "owner-1", map[string]string{"booking_id": created.BookingID})
	if rw.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rw.Code, rw.Body.String())
	}
	rw = s.do(t, http.MethodPost, "/api/v1/bookings/cancel", "owner-1", map[string]string{"booking_id": created.BookingID})
	if rw.Code != http.StatusOK || !strings.Contains(rw.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("repeat cancel: %d %s", rw.Code, rw.Body.String())
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/bookings/cancel", "owner-2", map[string]string{"booking_id": created.BookingID}); rw.Code != http.StatusNotFound {
		t.Fatalf("foreign cancel: expected 404, got %d", rw.Code)
	}
}

func TestSlotsRenderInVisitorZone(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)
	resp := slotsFor(t, s, "&from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z&tz=Asia/Tokyo")
	if resp.TimeZone != "Asia/Tokyo" || len(resp.Slots) != 2 || resp.Slots[0].StartTime != "2026-03-02T18:00:00+09:00" {
		t.Fatalf("got %+v", resp)
	}
}

func TestSlotsBadInput(t *testing.T) {
	s := newTestServer(t)
	cases := []string{
		"/api/v1/public/slots?owner_id=owner-1",
		"/api/v1/public/slots?owner_id=owner-1&event_id=evt-30&tz=Mars/Base",
		"/api/v1/public/slots?owner_id=owner-1&event_id=evt-30&from=2026-03-05&to=2026-03-02",
		"/api/v1/public/slots?owner_id=owner-1&event_id=evt-30&from=2026-01-01&to=2026-06-01",
		"/api/v1/public/slots?owner_id=owner-1&event_id=evt-30&step_minutes=0",
	}
	for _, target := range cases {
		if rw := s.do(t, http.MethodGet, target, "", nil); rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rw.Code)
		}
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/public/slots?owner_id=owner-1&event_id=missing", "", nil); rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown event, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/public/slots", "", nil); rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

func TestBookRejections(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)

	inactive := false
	e, err := s.events.Create(context.Background(), "owner-1", events.Input{Name: "Paused event", DurationMinutes: 30, IsActive: &inactive})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	body := bookBody("2026-03-02T09:00:00Z")
	body["event_id"] = e.ID
	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", body); rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inactive event: expected 422, got %d %s", rw.Code, rw.Body.String())
	}

	body = bookBody("2026-03-02T09:00:00Z")
	body["visitor"] = map[string]string{"name": "", "email": "nope"}
	rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", body)
	if rw.Code != http.StatusBadRequest || !strings.Contains(rw.Body.String(), `"visitor.email"`) {
		t.Fatalf("bad visitor: %d %s", rw.Code, rw.Body.String())
	}

	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("tomorrow")); rw.Code != http.StatusBadRequest {
		t.Fatalf("bad start: expected 400, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T12:00:00Z")); rw.Code != http.StatusConflict {
		t.Fatalf("outside availability: expected 409, got %d", rw.Code)
	}
}

func TestEventsCRUD(t *testing.T) {
	s := newTestServer(t)

	rw := s.do(t, http.MethodPost, "/api/v1/events", "owner-1", map[string]any{"name": "abc", "duration_minutes": 30})
	if rw.Code != http.StatusBadRequest || !strings.Contains(rw.Body.String(), `"name"`) {
		t.Fatalf("short name: %d %s", rw.Code, rw.Body.String())
	}

	rw = s.do(t, http.MethodPost, "/api/v1/events", "owner-1", map[string]any{"name": "Deep dive", "duration_minutes": 90})
	if rw.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rw.Code, rw.Body.String())
	}
	var created eventItem
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.DurationLabel != "1 hr 30 mins" || !created.IsActive {
		t.Fatalf("created: %+v", created)
	}

	rw = s.do(t, http.MethodGet, "/api/v1/events", "owner-1", nil)
	var list []eventItem
	if err := json.Unmarshal(rw.Body.Bytes(), &list); err != nil || len(list) != 2 || list[0].Name != "Deep dive" {
		t.Fatalf("list: %+v %v", list, err)
	}

	if rw := s.do(t, http.MethodPut, "/api/v1/events?id="+created.ID, "owner-2", map[string]any{"name": "Stolen event", "duration_minutes": 10}); rw.Code != http.StatusNotFound {
		t.Fatalf("foreign update: expected 404, got %d", rw.Code)
	}
	rw = s.do(t, http.MethodPut, "/api/v1/events?id="+created.ID, "owner-1", map[string]any{"name": "Deep dive v2", "duration_minutes": 60, "is_active": false})
	if rw.Code != http.StatusOK || !strings.Contains(rw.Body.String(), `"duration_label":"1 hr"`) {
		t.Fatalf("update: %d %s", rw.Code, rw.Body.String())
	}
	if rw := s.do(t, http.MethodDelete, "/api/v1/events?id="+created.ID, "owner-1", nil); rw.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodDelete, "/api/v1/events?id="+created.ID, "owner-1", nil); rw.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rw.Code)
	}
}

func TestBookHonoursListedStep(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)

	resp := slotsFor(t, s, "&from=2026-03-02&to=2026-03-03&step_minutes=15")
	if len(resp.Slots) != 3 || resp.Slots[1].StartTime != "2026-03-02T09:15:00Z" {
		t.Fatalf("15m slots: %+v", resp)
	}

	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T09:07:00Z")); rw.Code != http.StatusConflict {
		t.Fatalf("off-grid start: expected 409, got %d %s", rw.Code, rw.Body.String())
	}

	body := bookBody("2026-03-02T09:15:00Z")
	body["step_minutes"] = -5
	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", body); rw.Code != http.StatusBadRequest || !strings.Contains(rw.Body.String(), "step_minutes") {
		t.Fatalf("negative step: %d %s", rw.Code, rw.Body.String())
	}

	body["step_minutes"] = 15
	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", body); rw.Code != http.StatusCreated {
		t.Fatalf("book on 15m grid: %d %s", rw.Code, rw.Body.String())
	}
}

func TestCancelRendersInRequestedZone(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)
	rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T09:00:00Z"))
	var created bookingItem
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("book: %d %s", rw.Code, rw.Body.String())
	}

	cancel := map[string]string{"booking_id": created.BookingID}
	if rw := s.do(t, http.MethodPost, "/api/v1/bookings/cancel?tz=Mars/Olympus", "owner-1", cancel); rw.Code != http.StatusBadRequest {
		t.Fatalf("unknown tz: expected 400, got %d", rw.Code)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/bookings/cancel?tz=Europe/Berlin", "owner-1", cancel)
	var cancelled bookingItem
	if err := json.Unmarshal(rw.Body.Bytes(), &cancelled); err != nil || rw.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rw.Code, rw.Body.String())
	}
	if cancelled.StartTime != "2026-03-02T10:00:00+01:00" || cancelled.Status != "cancelled" {
		t.Fatalf("cancel in Berlin: %+v", cancelled)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/bookings/cancel", "owner-1", cancel)
	if !strings.Contains(rw.Body.String(), `"start_time":"2026-03-02T09:00:00Z"`) {
		t.Fatalf("cancel without tz should render UTC: %s", rw.Body.String())
	}
}

func TestBookingsListAndCalendarFeed(t *testing.T) {
	s := newTestServer(t)
	putSchedule(t, s)
	if rw := s.do(t, http.MethodPost, "/api/v1/public/book", "", bookBody("2026-03-02T09:30:00Z")); rw.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rw.Code, rw.Body.String())
	}

	rw := s.do(t, http.MethodGet, "/api/v1/bookings?from=2026-03-02&to=2026-03-03&tz=Europe/Berlin", "owner-1", nil)
	var items []bookingItem
	if err := json.Unmarshal(rw.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("bookings: %s %v", rw.Body.String(), err)
	}
	if items[0].StartTime != "2026-03-02T10:30:00+01:00" {
		t.Fatalf("start in Berlin: %s", items[0].StartTime)
	}
	rw = s.do(t, http.MethodGet, "/api/v1/bookings", "owner-2", nil)
	if strings.TrimSpace(rw.Body.String()) != "[]" {
		t.Fatalf("other owner sees bookings: %s", rw.Body.String())
	}

	rw = s.do(t, http.MethodGet, "/api/v1/bookings.ics", "owner-1", nil)
	if rw.Code != http.StatusOK || !strings.HasPrefix(rw.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("ics: %d %s", rw.Code, rw.Header().Get("Content-Type"))
	}
	if !strings.Contains(rw.Body.String(), "SUMMARY:Half hour chat with Grace") {
		t.Fatalf("ics body: %s", rw.Body.String())
	}
}
