// Package sqlite implements the repository contract on SQLite (modernc.org/sqlite).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
)

const dateLayout = "2006-01-02"

const eventColumns = `id, title, description, date, time, venue, organizer, capacity, registered_count, created_at`

const registrationColumns = `id, event_id, user_id, registered_at, status`

// Store persists events and registrations in SQLite.
//
// The database must be opened with database.OpenSQLite: one connection and
// immediate write transactions are what serialise the workflow here, since
// SQLite has no row locks.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// New constructs a Store on an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.Date.UTC().Format(dateLayout), e.Time, e.Venue,
		e.Organizer, e.Capacity, e.RegisteredCount, toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := getEvent(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events ordered by date.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// ListEventsByOrganizer returns the events owned by organizer, newest first.
func (s *Store) ListEventsByOrganizer(ctx context.Context, organizer string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer = ? ORDER BY created_at DESC`,
		organizer,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by organizer: %w", err)
	}
	return collectEvents(rows)
}

// UpdateEvent applies the non-nil fields of upd.
func (s *Store) UpdateEvent(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	var date *string
	if upd.Date != nil {
		d := upd.Date.UTC().Format(dateLayout)
		date = &d
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET
		   title       = COALESCE(?, title),
		   description = COALESCE(?, description),
		   date        = COALESCE(?, date),
		   time        = COALESCE(?, time),
		   venue       = COALESCE(?, venue)
		 WHERE id = ?`,
		upd.Title, upd.Description, date, upd.Time, upd.Venue, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("update event: %w", repository.ErrNotFound)
	}
	return s.GetEvent(ctx, id)
}

// GetRegistration returns a single registration or ErrNotFound.
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return r, nil
}

// ListRegistrationsByUser returns a user's registrations joined with their events.
func (s *Store) ListRegistrationsByUser(ctx context.Context, userID string) ([]model.RegistrationWithEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.event_id, r.user_id, r.registered_at, r.status,
		        e.id, e.title, e.date, e.time, e.venue
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = ?
		 ORDER BY r.registered_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by user: %w", err)
	}
	defer rows.Close()

	var out []model.RegistrationWithEvent
	for rows.Next() {
		var (
			r            model.RegistrationWithEvent
			registeredAt int64
			date         string
		)
		if err := rows.Scan(
			&r.ID, &r.EventID, &r.UserID, &registeredAt, &r.Status,
			&r.Event.ID, &r.Event.Title, &date, &r.Event.Time, &r.Event.Venue,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.RegisteredAt = fromMillis(registeredAt)
		if r.Event.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse event date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRegistrationsByEvent returns all registrations for an event.
func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = ?
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

// WithTx runs fn inside a single immediate transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqliteTx implements repository.Tx on a database/sql transaction.
type sqliteTx struct {
	tx *sql.Tx
}

// LockEvent reads the event. The write lock is already held since BEGIN.
func (t *sqliteTx) LockEvent(ctx context.Context, eventID string) (*model.Event, error) {
	e, err := getEvent(ctx, t.tx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lock event: %w", err)
	}
	return e, nil
}

func (t *sqliteTx) IncrementRegistered(ctx context.Context, eventID string) error {
	return t.bumpCount(ctx, eventID,
		`UPDATE events SET registered_count = registered_count + 1
		 WHERE id = ? AND registered_count < capacity`,
		repository.ErrEventFull,
	)
}

func (t *sqliteTx) DecrementRegistered(ctx context.Context, eventID string) error {
	return t.bumpCount(ctx, eventID,
		`UPDATE events SET registered_count = registered_count - 1
		 WHERE id = ? AND registered_count > 0`,
		repository.ErrCountUnderflow,
	)
}

func (t *sqliteTx) bumpCount(ctx context.Context, eventID, query string, boundErr error) error {
	res, err := t.tx.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("update registered_count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registered_count: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = t.tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	return boundErr
}

func (t *sqliteTx) CapacityRemaining(ctx context.Context, eventID string) (int, error) {
	var remaining int
	err := t.tx.QueryRowContext(ctx,
		`SELECT capacity - registered_count FROM events WHERE id = ?`, eventID,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("capacity remaining: %w", err)
	}
	return remaining, nil
}

func (t *sqliteTx) FindRegistration(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	r, err := scanRegistration(t.tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

func (t *sqliteTx) CreateRegistration(ctx context.Context, eventID, userID string, at time.Time) (*model.Registration, error) {
	r := &model.Registration{
		ID:           uuid.New().String(),
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: fromMillis(toMillis(at)),
		Status:       model.StatusActive,
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO registrations (`+registrationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.EventID, r.UserID, toMillis(r.RegisteredAt), string(r.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return r, nil
}

func (t *sqliteTx) LockRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(t.tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("lock registration: %w", err)
	}
	return r, nil
}

func (t *sqliteTx) CancelRegistration(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE registrations SET status = ? WHERE id = ? AND status = ?`,
		string(model.StatusCancelled), id, string(model.StatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel registration: %w", err)
	}
	return n == 1, nil
}

func (t *sqliteTx) CountActiveRegistrations(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status = ?`,
		eventID, string(model.StatusActive),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return n, nil
}

func (t *sqliteTx) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM registrations WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func getEvent(ctx context.Context, q execQuerier, id string) (*model.Event, error) {
	return scanEvent(q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	))
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e         model.Event
		date      string
		createdAt int64
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &date, &e.Time, &e.Venue, &e.Organizer,
		&e.Capacity, &e.RegisteredCount, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if e.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("parse event date %q: %w", date, err)
	}
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

func scanRegistration(row scanner) (*model.Registration, error) {
	var (
		r            model.Registration
		registeredAt int64
		status       string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &registeredAt, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	r.RegisteredAt = fromMillis(registeredAt)
	r.Status = model.RegistrationStatus(status)
	return &r, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
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

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
