package storage

import (
	"context"
	"time"

	"github.com/ak-ash93/scheduled/libs/db"
	"github.com/jackc/pgx/v5"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/availability"
)

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Save replaces the owner's zone and rule set in one transaction. w has
// already been validated by availability.New.
func (r *ScheduleRepository) Save(ctx context.Context, w availability.Weekly) error {
	return r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedules (owner_id, timezone)
			VALUES ($1, $2)
			ON CONFLICT (owner_id) DO UPDATE
			SET timezone = EXCLUDED.timezone, updated_at = now()
		`, w.OwnerID(), w.Zone()); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schedule_rules WHERE owner_id = $1`, w.OwnerID()); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, rule := range w.Rules() {
			batch.Queue(`
				INSERT INTO schedule_rules (owner_id, day_of_week, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, w.OwnerID(), int16(rule.Day), int16(rule.Start), int16(rule.End))
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Load returns a consistent snapshot of the owner's schedule. A missing
// schedule is availability.ErrNotFound.
func (r *ScheduleRepository) Load(ctx context.Context, ownerID string) (availability.Weekly, error) {
	var w availability.Weekly
	err := r.pool.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var zone string
		if err := tx.QueryRow(ctx, `SELECT timezone FROM schedules WHERE owner_id = $1`, ownerID).Scan(&zone); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT day_of_week, start_minute, end_minute
			FROM schedule_rules
			WHERE owner_id = $1
			ORDER BY day_of_week, start_minute
		`, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		var rules []availability.Rule
		for rows.Next() {
			var day, start, end int16
			if err := rows.Scan(&day, &start, &end); err != nil {
				return err
			}
			rules = append(rules, availability.Rule{
				Day:   time.Weekday(day),
				Start: availability.Clock(start),
				End:   availability.Clock(end),
			})
		}
		if rows.Err() != nil {
			return rows.Err()
		}

		w, err = availability.New(ownerID, zone, rules)
		return err
	})
	if IsNotFound(err) {
		return availability.Weekly{}, availability.ErrNotFound
	}
	return w, err
}
