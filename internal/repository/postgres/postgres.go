// Package postgres implements the repository contract on PostgreSQL using pgx
// directly (no ORM).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
)

const uniqueViolation = "23505"

const eventColumns = `id, title, description, date, time, venue, organizer, capacity, registered_count, created_at`

const registrationColumns = `id, event_id, user_id, registered_at, status`

// Store persists events and registrations in PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// New constructs a Store on an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Venue, e.Organizer,
		e.Capacity, e.RegisteredCount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events ordered by date.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// ListEventsByOrganizer returns the events owned by organizer, newest first.
func (s *Store) ListEventsByOrganizer(ctx context.Context, organizer string) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer = $1 ORDER BY created_at DESC`,
		organizer,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by organizer: %w", err)
	}
	return collectEvents(rows)
}

// UpdateEvent applies the non-nil fields of upd.
func (s *Store) UpdateEvent(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`UPDATE events SET
		   title       = COALESCE($2::text, title),
		   description = COALESCE($3::text, description),
		   date        = COALESCE($4::date, date),
		   time        = COALESCE($5::text, time),
		   venue       = COALESCE($6::text, venue)
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, upd.Title, upd.Description, upd.Date, upd.Time, upd.Venue,
	))
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// GetRegistration returns a single registration or ErrNotFound.
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return r, nil
}

// ListRegistrationsByUser returns a user's registrations joined with their events.
func (s *Store) ListRegistrationsByUser(ctx context.Context, userID string) ([]model.RegistrationWithEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.registered_at, r.status,
		        e.id, e.title, e.date, e.time, e.venue
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = $1
		 ORDER BY r.registered_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by user: %w", err)
	}
	defer rows.Close()

	var out []model.RegistrationWithEvent
	for rows.Next() {
		var r model.RegistrationWithEvent
		if err := rows.Scan(
			&r.ID, &r.EventID, &r.UserID, &r.RegisteredAt, &r.Status,
			&r.Event.ID, &r.Event.Title, &r.Event.Date, &r.Event.Time, &r.Event.Venue,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRegistrationsByEvent returns all registrations for an event.
func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY registered_at DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by event: %w", err)
	}
	defer rows.Close()

	var out []model.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// WithTx runs fn inside a single transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgTx implements repository.Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// LockEvent acquires an exclusive row-level lock on the event.
//
// SELECT … FOR UPDATE blocks any concurrent transaction that locks the same
// row until this one commits or rolls back, so the capacity check and the
// increment that follows cannot interleave with another registration.
func (t *pgTx) LockEvent(ctx context.Context, eventID string) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID,
	))
	if err != nil {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

func (t *pgTx) IncrementRegistered(ctx context.Context, eventID string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET registered_count = registered_count + 1
		 WHERE id = $1 AND registered_count < capacity`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("increment registered_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return t.ledgerMiss(ctx, eventID, repository.ErrEventFull)
	}
	return nil
}

func (t *pgTx) DecrementRegistered(ctx context.Context, eventID string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET registered_count = registered_count - 1
		 WHERE id = $1 AND registered_count > 0`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("decrement registered_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return t.ledgerMiss(ctx, eventID, repository.ErrCountUnderflow)
	}
	return nil
}

// ledgerMiss tells a missing event apart from a failed bound check.
func (t *pgTx) ledgerMiss(ctx context.Context, eventID string, boundErr error) error {
	var exists bool
	if err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return boundErr
}

func (t *pgTx) CapacityRemaining(ctx context.Context, eventID string) (int, error) {
	var remaining int
	err := t.tx.QueryRow(ctx,
		`SELECT capacity - registered_count FROM events WHERE id = $1`, eventID,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("capacity remaining: %w", err)
	}
	return remaining, nil
}

func (t *pgTx) FindRegistration(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	r, err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

func (t *pgTx) CreateRegistration(ctx context.Context, eventID, userID string, at time.Time) (*model.Registration, error) {
	r := &model.Registration{
		ID:           uuid.New().String(),
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: at.UTC(),
		Status:       model.StatusActive,
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.EventID, r.UserID, r.RegisteredAt, r.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return r, nil
}

func (t *pgTx) LockRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("lock registration row: %w", err)
	}
	return r, nil
}

func (t *pgTx) CancelRegistration(ctx context.Context, id string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registrations SET status = $2 WHERE id = $1 AND status = $3`,
		id, model.StatusCancelled, model.StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) CountActiveRegistrations(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`,
		eventID, model.StatusActive,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return n, nil
}

func (t *pgTx) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Venue, &e.Organizer,
		&e.Capacity, &e.RegisteredCount, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var r model.Registration
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &r.RegisteredAt, &r.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
