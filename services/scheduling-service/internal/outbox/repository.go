package outbox

import (
	"context"
	"time"

	otelx "github.com/ak-ash93/scheduled/libs/otel"
	"github.com/jackc/pgx/v5"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
)

// Repository writes booking events into the caller's transaction and hands
// pending rows to the publisher. It holds no connection of its own.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// RecordBooking queues a booking event in tx, so the event commits or rolls
// back together with the booking row.
func (r *Repository) RecordBooking(ctx context.Context, tx pgx.Tx, eventType string, b ledger.Booking) error {
	evt, err := NewBookingEvent(eventType, b)
	if err != nil {
		return err
	}
	return r.append(ctx, tx, evt)
}

func (r *Repository) append(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

// Record is a pending outbox row. Field order matches pendingColumns.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

const pendingColumns = `id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at`

// Claim locks up to limit unpublished rows in tx. Rows locked by another
// publisher are skipped.
func (r *Repository) Claim(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+pendingColumns+`
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int64, len(records))
	for i, rcd := range records {
		ids[i] = rcd.ID
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	return err
}
