// Package repository defines the storage contract for events and registrations.
// Implementations live in the postgres and sqlite subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when a registration already exists for the
// (event, user) pair, whatever its status.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrCountUnderflow is returned when a decrement would take registered_count below zero.
var ErrCountUnderflow = errors.New("registered count is already zero")

// EventStore handles event persistence outside of workflow transactions.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListEvents returns all events ordered by date ascending.
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizer string) ([]model.Event, error)
	// UpdateEvent changes descriptive fields only; capacity and
	// registered_count are never written here.
	UpdateEvent(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error)
}

// RegistrationStore handles read-only registration projections.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	// ListRegistrationsByUser returns the user's registrations with their
	// events, newest first, cancelled ones included.
	ListRegistrationsByUser(ctx context.Context, userID string) ([]model.RegistrationWithEvent, error)
	// ListRegistrationsByEvent returns the event's registrations newest first,
	// cancelled ones included.
	ListRegistrationsByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
}

// Ledger owns an event's registered_count. Its methods are only valid inside
// a transaction opened with Store.WithTx.
type Ledger interface {
	// LockEvent reads the event and serialises every other transaction that
	// locks the same event until this one ends.
	LockEvent(ctx context.Context, eventID string) (*model.Event, error)
	// IncrementRegistered adds one place, returning ErrEventFull if the
	// event is at capacity.
	IncrementRegistered(ctx context.Context, eventID string) error
	// DecrementRegistered releases one place, returning ErrCountUnderflow
	// if the count is already zero.
	DecrementRegistered(ctx context.Context, eventID string) error
	CapacityRemaining(ctx context.Context, eventID string) (int, error)
}

// RegistrationSet owns the (event, user) registrations. Its methods are only
// valid inside a transaction opened with Store.WithTx.
type RegistrationSet interface {
	// FindRegistration returns the registration for the pair in any status,
	// or ErrNotFound.
	FindRegistration(ctx context.Context, eventID, userID string) (*model.Registration, error)
	// CreateRegistration inserts an active registration, returning
	// ErrAlreadyRegistered if the pair already exists.
	CreateRegistration(ctx context.Context, eventID, userID string, at time.Time) (*model.Registration, error)
	LockRegistration(ctx context.Context, id string) (*model.Registration, error)
	// CancelRegistration moves an active registration to cancelled and
	// reports whether the transition happened.
	CancelRegistration(ctx context.Context, id string) (bool, error)
	CountActiveRegistrations(ctx context.Context, eventID string) (int, error)
}

// Tx is the unit of work used by the registration workflow.
type Tx interface {
	Ledger
	RegistrationSet
	// DeleteEvent removes the event together with its registrations.
	DeleteEvent(ctx context.Context, eventID string) error
}

// Store is the full storage collaborator.
type Store interface {
	EventStore
	RegistrationStore
	// WithTx runs fn in one transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
