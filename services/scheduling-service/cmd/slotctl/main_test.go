package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

const sample = `
time_zone: UTC
rules:
  - day: mon
    start: "09:00"
    end: "10:00"
bookings:
  - start: "2026-03-02T09:00:00Z"
    end: "2026-03-02T09:30:00Z"
`

func TestRunSubtractsBookings(t *testing.T) {
	f, err := parseFile([]byte(sample))
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	var out bytes.Buffer
	opts := options{from: "2026-03-02", to: "2026-03-03", duration: 30 * time.Minute}
	if err := run(context.Background(), &out, f, opts, time.Time{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || lines[0] != "Mon 2026-03-02  09:30 - 10:00 UTC" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunPrintsInRequestedZone(t *testing.T) {
	f, err := parseFile([]byte(sample))
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	var out bytes.Buffer
	opts := options{from: "2026-03-02", to: "2026-03-03", duration: 15 * time.Minute, step: 30 * time.Minute, tz: "Asia/Tokyo"}
	if err := run(context.Background(), &out, f, opts, time.Time{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Mon 2026-03-02  18:30 - 18:45 JST") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestParseFileRejectsUnknownFields(t *testing.T) {
	if _, err := parseFile([]byte("time_zone: UTC\nslots: []\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestRunReportsInvalidSchedule(t *testing.T) {
	f, err := parseFile([]byte("time_zone: Nowhere/Land\nrules:\n  - day: mon\n    start: \"10:00\"\n    end: \"09:00\"\n"))
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	err = run(context.Background(), &bytes.Buffer{}, f, options{duration: time.Hour}, time.Now())
	if err == nil || !strings.Contains(err.Error(), "time_zone") {
		t.Fatalf("expected time_zone validation error, got %v", err)
	}
}

func TestExampleFileResolves(t *testing.T) {
	raw, err := os.ReadFile("example.yaml")
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	f, err := parseFile(raw)
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	var out bytes.Buffer
	opts := options{from: "2026-03-02", to: "2026-03-03", duration: time.Hour}
	if err := run(context.Background(), &out, f, opts, time.Time{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	// 09:00-10:00 EST is booked; 10-11, 11-12, then 13..17.
	if got := strings.Count(out.String(), "\n"); got != 6 {
		t.Fatalf("expected 6 slots, got %d: %q", got, out.String())
	}
	if strings.Contains(out.String(), "09:00 - 10:00") {
		t.Fatalf("booked hour still offered: %q", out.String())
	}
}

func TestRunRejectsInvertedWindow(t *testing.T) {
	f, err := parseFile([]byte(sample))
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	opts := options{from: "2026-03-03", to: "2026-03-02", duration: 30 * time.Minute}
	if err := run(context.Background(), &bytes.Buffer{}, f, opts, time.Time{}); !errors.Is(err, timerange.ErrEmptyWindow) {
		t.Fatalf("expected ErrEmptyWindow, got %v", err)
	}
	opts = options{from: "next week", duration: 30 * time.Minute}
	if err := run(context.Background(), &bytes.Buffer{}, f, opts, time.Time{}); err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("expected bound parse error, got %v", err)
	}
}

func TestRunDefaultsWindowToTodayInScheduleZone(t *testing.T) {
	f, err := parseFile([]byte(sample))
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	var out bytes.Buffer
	// Sunday evening: the default week starts at Sunday midnight and covers Monday.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := run(context.Background(), &out, f, options{duration: 30 * time.Minute}, now); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Mon 2026-03-02  09:30 - 10:00 UTC") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
