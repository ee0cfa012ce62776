package storage

import (
	"context"

	"github.com/ak-ash93/scheduled/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ak-ash93/scheduled/services/scheduling-service/internal/events"
)

const eventColumns = `id::text, owner_id, name, description, duration_minutes, is_active, created_at, updated_at`

// EventRepository implements events.Repository. Every statement carries the
// owner predicate.
type EventRepository struct {
	pool *db.Pool
}

func NewEventRepository(pool *db.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Create(ctx context.Context, ownerID string, in events.Input) (events.Event, error) {
	in, err := in.Normalize()
	if err != nil {
		return events.Event{}, err
	}
	return scanEvent(r.pool.QueryRow(ctx, `
		INSERT INTO events (id, owner_id, name, description, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		uuid.NewString(), ownerID, in.Name, in.Description, in.DurationMinutes, in.Active()))
}

func (r *EventRepository) Update(ctx context.Context, ownerID, eventID string, in events.Input) (events.Event, error) {
	in, err := in.Normalize()
	if err != nil {
		return events.Event{}, err
	}
	if !validID(eventID) {
		return events.Event{}, events.ErrNotFound
	}
	e, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE events
		SET name = $3, description = $4, duration_minutes = $5, is_active = $6, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+eventColumns,
		eventID, ownerID, in.Name, in.Description, in.DurationMinutes, in.Active()))
	if IsNotFound(err) {
		return events.Event{}, events.ErrNotFound
	}
	return e, err
}

func (r *EventRepository) Delete(ctx context.Context, ownerID, eventID string) error {
	if !validID(eventID) {
		return events.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND owner_id = $2`, eventID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, ownerID, eventID string) (events.Event, error) {
	if !validID(eventID) {
		return events.Event{}, events.ErrNotFound
	}
	e, err := scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1 AND owner_id = $2
	`, eventID, ownerID))
	if IsNotFound(err) {
		return events.Event{}, events.ErrNotFound
	}
	return e, err
}

func (r *EventRepository) List(ctx context.Context, ownerID string) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE owner_id = $1
		ORDER BY lower(name), id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanEvent(row pgx.Row) (events.Event, error) {
	var e events.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.DurationMinutes, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
