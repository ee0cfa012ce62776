// Command slotctl resolves bookable slots from a YAML schedule file without a
// database. It is meant for checking availability rules before saving them.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ak-ash93/scheduled/libs/config"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/slots"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
	"gopkg.in/yaml.v3"
)

const fileOwner = "file"

// File is the on-disk layout read by slotctl.
type File struct {
	availability.ScheduleInput `yaml:",inline"`
	Bookings                   []BusyInput `yaml:"bookings"`
}

// BusyInput is an already-booked interval, RFC3339 on both ends.
type BusyInput struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type options struct {
	from     string
	to       string
	duration time.Duration
	step     time.Duration
	tz       string
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fatal(err.Error())
	}
	var (
		file     = flag.String("file", config.String("SLOTCTL_FILE", "schedule.yaml"), "schedule file (yaml)")
		from     = flag.String("from", "", "window start, YYYY-MM-DD or RFC3339 (default today)")
		to       = flag.String("to", "", "window end, exclusive (default from + 7 days)")
		duration = flag.Duration("duration", 30*time.Minute, "slot length")
		step     = flag.Duration("step", 0, "distance between slot starts (default duration)")
		tz       = flag.String("tz", "", "zone to print slots in (default the schedule's zone)")
	)
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fatal(err.Error())
	}
	f, err := parseFile(raw)
	if err != nil {
		fatal(err.Error())
	}
	opts := options{from: *from, to: *to, duration: *duration, step: *step, tz: *tz}
	if err := run(context.Background(), os.Stdout, f, opts, time.Now()); err != nil {
		fatal(err.Error())
	}
}

func parseFile(raw []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse schedule file: %w", err)
	}
	return f, nil
}

func run(ctx context.Context, out io.Writer, f File, opts options, now time.Time) error {
	weekly, err := f.Build(fileOwner)
	if err != nil {
		return err
	}

	seed := make([]ledger.Booking, 0, len(f.Bookings))
	for i, b := range f.Bookings {
		start, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			return fmt.Errorf("bookings[%d].start: %w", i, err)
		}
		end, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			return fmt.Errorf("bookings[%d].end: %w", i, err)
		}
		r, err := timerange.New(start, end)
		if err != nil {
			return fmt.Errorf("bookings[%d]: %w", i, err)
		}
		seed = append(seed, ledger.Booking{
			ID:       fmt.Sprintf("busy-%d", i),
			OwnerID:  fileOwner,
			Interval: r,
			Status:   ledger.StatusConfirmed,
		})
	}

	loc := weekly.Location()
	if opts.tz != "" {
		if loc, err = time.LoadLocation(opts.tz); err != nil {
			return fmt.Errorf("invalid tz %q", opts.tz)
		}
	}
	window, err := timerange.ParseWindow(opts.from, opts.to, weekly.Location(), now, 7)
	if err != nil {
		return err
	}

	found, err := slots.NewResolver(slots.Policy{}).Resolve(ctx, weekly, ledger.New(ledger.NewMemoryStore(seed...)), slots.Query{
		OwnerID:  fileOwner,
		Window:   window,
		Duration: opts.duration,
		Step:     opts.step,
	})
	if err != nil {
		return err
	}
	for _, s := range found {
		s = s.In(loc)
		fmt.Fprintf(out, "%s  %s - %s\n", s.Start.Format("Mon 2006-01-02"), s.Start.Format("15:04"), s.End.Format("15:04 MST"))
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "no slots")
	}
	return nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
