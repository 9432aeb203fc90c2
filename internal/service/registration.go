package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
)

// RegistrationService is the registration workflow. It keeps each event's
// registered count equal to its number of active registrations.
//
// Every mutation runs in one transaction that locks the event row before
// touching registrations, so for a given event the capacity check, the
// uniqueness check and the ledger update happen as one step.
type RegistrationService struct {
	base
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(store repository.Store, logger *slog.Logger, m *metrics.Metrics) *RegistrationService {
	return &RegistrationService{base: newBase(store, logger, m)}
}

// Register creates an active registration for the caller and takes one place.
//
// Checks run in this order: the event must exist, must have a free place, and
// the caller must not already hold a registration for it in any status.
func (s *RegistrationService) Register(ctx context.Context, caller model.Identity, eventID string) (reg *model.Registration, err error) {
	defer func() { err = s.finish(ctx, opRegister, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.IsFull() {
			return repository.ErrEventFull
		}
		if _, err := tx.FindRegistration(ctx, eventID, caller.UserID); err == nil {
			return repository.ErrAlreadyRegistered
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		reg, err = tx.CreateRegistration(ctx, eventID, caller.UserID, s.now())
		if err != nil {
			return err
		}
		return tx.IncrementRegistered(ctx, eventID)
	})
	if err != nil {
		return nil, translate(err, fmt.Sprintf("event not found with id of %s", eventID))
	}

	s.logger.InfoContext(ctx, "registered for event",
		"event_id", eventID, "user_id", caller.UserID, "registration_id", reg.ID)
	return reg, nil
}

// Cancel moves a registration to cancelled and releases its place.
// Only the owning user or an administrator may cancel. Cancelling an already
// cancelled registration is a no-op that returns it unchanged.
func (s *RegistrationService) Cancel(ctx context.Context, caller model.Identity, registrationID string) (reg *model.Registration, err error) {
	defer func() { err = s.finish(ctx, opCancel, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	notFound := fmt.Sprintf("registration not found with id of %s", registrationID)

	current, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, translate(err, notFound)
	}
	// Owner and event never change, so this check needs no lock.
	if !caller.CanManage(current.UserID) {
		return nil, apperr.Forbidden("not authorized to cancel this registration")
	}

	released := false
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockEvent(ctx, current.EventID); err != nil {
			return err
		}
		locked, err := tx.LockRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		changed, err := tx.CancelRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		locked.Status = model.StatusCancelled
		reg = locked
		if !changed {
			return nil
		}
		released = true
		return tx.DecrementRegistered(ctx, locked.EventID)
	})
	if err != nil {
		return nil, translate(err, notFound)
	}

	if released {
		s.logger.InfoContext(ctx, "registration cancelled",
			"registration_id", reg.ID, "event_id", reg.EventID, "by", caller.UserID)
	} else {
		s.logger.DebugContext(ctx, "registration already cancelled", "registration_id", reg.ID)
	}
	return reg, nil
}

// ListMine returns the caller's registrations, newest first, including cancelled ones.
func (s *RegistrationService) ListMine(ctx context.Context, caller model.Identity) (regs []model.RegistrationWithEvent, err error) {
	defer func() { err = s.finish(ctx, opListMine, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	regs, err = s.store.ListRegistrationsByUser(ctx, caller.UserID)
	if err != nil {
		return nil, translate(err, "registrations not found")
	}
	return regs, nil
}

// ListForEvent returns every registration of an event, newest first.
// Only the event's organizer or an administrator may list them.
func (s *RegistrationService) ListForEvent(ctx context.Context, caller model.Identity, eventID string) (regs []model.Registration, err error) {
	defer func() { err = s.finish(ctx, opListForEvent, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	notFound := fmt.Sprintf("event not found with id of %s", eventID)

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err, notFound)
	}
	if !caller.CanManage(event.Organizer) {
		return nil, apperr.Forbidden("not authorized to access this information")
	}
	regs, err = s.store.ListRegistrationsByEvent(ctx, eventID)
	if err != nil {
		return nil, translate(err, notFound)
	}
	return regs, nil
}

// CapacityRemaining returns how many places are still free on an event.
func (s *RegistrationService) CapacityRemaining(ctx context.Context, eventID string) (remaining int, err error) {
	defer func() { err = s.finish(ctx, opAvailability, err) }()
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		remaining, err = tx.CapacityRemaining(ctx, eventID)
		return err
	})
	if err != nil {
		return 0, translate(err, fmt.Sprintf("event not found with id of %s", eventID))
	}
	return remaining, nil
}
