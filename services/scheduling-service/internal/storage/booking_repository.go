package storage

import (
	"context"
	"time"

	"github.com/ak-ash93/scheduled/libs/db"
	"github.com/jackc/pgx/v5"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/ledger"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/outbox"
	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/timerange"
)

const bookingColumns = `id::text, owner_id, event_id::text, start_time, end_time, status,
	visitor_name, visitor_email, visitor_notes, created_at, cancelled_at`

// BookingRepository implements ledger.Store. The bookings_no_overlap
// exclusion constraint over the buffered guard range makes Insert atomic
// against concurrent commits.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

func (r *BookingRepository) ListConfirmed(ctx context.Context, ownerID string, window timerange.Range) ([]ledger.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE owner_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, ownerID, window.Start(), window.End())
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) Insert(ctx context.Context, b ledger.Booking, buffer time.Duration) error {
	guard := bookingGuard(b.Interval, buffer)
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings
				(id, owner_id, event_id, start_time, end_time, guard, status, visitor_name, visitor_email, visitor_notes, created_at)
			VALUES ($1, $2, $3, $4, $5, tstzrange($6, $7, '[)'), $8, $9, $10, $11, $12)
		`, b.ID, b.OwnerID, b.EventID, b.Interval.Start(), b.Interval.End(), guard.Start(), guard.End(), string(b.Status),
			b.Visitor.Name, b.Visitor.Email, b.Visitor.Notes, b.CreatedAt)
		if err != nil {
			return err
		}
		return r.outbox.RecordBooking(ctx, tx, outbox.EventBookingConfirmed, b)
	})
	if IsConflict(err) {
		return ledger.ErrConflict
	}
	return err
}

// bookingGuard is the range held by bookings_no_overlap. Half the buffer goes
// on each side, so guards of the same owner intersect when the gap is below
// buffer.
func bookingGuard(interval timerange.Range, buffer time.Duration) timerange.Range {
	return interval.Widen(buffer / 2)
}

func (r *BookingRepository) Get(ctx context.Context, ownerID, bookingID string) (ledger.Booking, error) {
	if !validID(bookingID) {
		return ledger.Booking{}, ledger.ErrNotFound
	}
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND owner_id = $2
	`, bookingID, ownerID))
	if IsNotFound(err) {
		return ledger.Booking{}, ledger.ErrNotFound
	}
	return b, err
}

func (r *BookingRepository) List(ctx context.Context, ownerID string, window timerange.Range, limit int) ([]ledger.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if window.IsZero() {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE owner_id = $1
			ORDER BY start_time DESC
			LIMIT $2
		`, ownerID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE owner_id = $1
				AND start_time < $3
				AND end_time > $2
			ORDER BY start_time ASC
			LIMIT $4
		`, ownerID, window.Start(), window.End(), limit)
	}
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) Cancel(ctx context.Context, ownerID, bookingID string, at time.Time) (ledger.Booking, bool, error) {
	if !validID(bookingID) {
		return ledger.Booking{}, false, ledger.ErrNotFound
	}
	var (
		out     ledger.Booking
		changed bool
	)
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE id = $1 AND owner_id = $2
			FOR UPDATE
		`, bookingID, ownerID))
		if err != nil {
			return err
		}
		if b.Status == ledger.StatusCancelled {
			out = b
			return nil
		}

		cancelledAt := at.UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = 'cancelled', cancelled_at = $3
			WHERE id = $1 AND owner_id = $2
		`, bookingID, ownerID, cancelledAt); err != nil {
			return err
		}
		b.Status = ledger.StatusCancelled
		b.CancelledAt = &cancelledAt

		if err := r.outbox.RecordBooking(ctx, tx, outbox.EventBookingCancelled, b); err != nil {
			return err
		}
		out, changed = b, true
		return nil
	})
	if IsNotFound(err) {
		return ledger.Booking{}, false, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Booking{}, false, err
	}
	return out, changed, nil
}

func collectBookings(rows pgx.Rows) ([]ledger.Booking, error) {
	defer rows.Close()
	var out []ledger.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanBooking(row pgx.Row) (ledger.Booking, error) {
	var (
		b          ledger.Booking
		start, end time.Time
		status     string
	)
	if err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&b.EventID,
		&start,
		&end,
		&status,
		&b.Visitor.Name,
		&b.Visitor.Email,
		&b.Visitor.Notes,
		&b.CreatedAt,
		&b.CancelledAt,
	); err != nil {
		return ledger.Booking{}, err
	}
	interval, err := timerange.New(start, end)
	if err != nil {
		return ledger.Booking{}, err
	}
	b.Interval = interval
	b.Status = ledger.Status(status)
	return b, nil
}
