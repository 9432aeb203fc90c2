// Package service implements business rules and orchestration between HTTP
// handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
)

// Operation names used for logging and metrics.
const (
	opCreateEvent  = "create_event"
	opUpdateEvent  = "update_event"
	opDeleteEvent  = "delete_event"
	opRegister     = "register"
	opCancel       = "cancel"
	opListMine     = "list_my_registrations"
	opListForEvent = "list_event_registrations"
	opAvailability = "availability"
)

var errUnauthenticated = apperr.Unauthorized("authentication required")

// base carries the collaborators shared by every service.
type base struct {
	store   repository.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func newBase(store repository.Store, logger *slog.Logger, m *metrics.Metrics) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// finish records the outcome of op and logs internal failures with their cause.
func (b base) finish(ctx context.Context, op string, err error) error {
	b.metrics.ObserveOperation(op, err)
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		b.logger.ErrorContext(ctx, "operation failed", "operation", op, "error", err)
	}
	return err
}

func requireIdentity(caller model.Identity) error {
	if caller.IsZero() {
		return errUnauthenticated
	}
	return nil
}

// translate maps repository errors onto the apperr taxonomy. notFound is the
// message used when the primary resource is missing.
func translate(err error, notFound string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrEventFull):
		return apperr.CapacityExceeded("event has reached its capacity")
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return apperr.Conflict("you are already registered for this event")
	default:
		return apperr.Internal("storage failure", err)
	}
}
