package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
)

// maxCapacity bounds a single event's size.
const maxCapacity = 100_000

// EventService orchestrates event-related business operations.
type EventService struct {
	base
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store repository.Store, logger *slog.Logger, m *metrics.Metrics) *EventService {
	return &EventService{base: newBase(store, logger, m)}
}

// CreateEvent stores a new event organised by the caller.
func (s *EventService) CreateEvent(ctx context.Context, caller model.Identity, draft model.EventDraft) (event *model.Event, err error) {
	defer func() { err = s.finish(ctx, opCreateEvent, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if draft.Capacity <= 0 {
		return nil, apperr.Validation("capacity must be a positive integer")
	}
	if draft.Capacity > maxCapacity {
		return nil, apperr.Validation(fmt.Sprintf("capacity cannot exceed %d", maxCapacity))
	}

	event = &model.Event{
		ID:          uuid.New().String(),
		Title:       draft.Title,
		Description: strings.TrimSpace(draft.Description),
		Date:        draft.Date.UTC(),
		Time:        strings.TrimSpace(draft.Time),
		Venue:       strings.TrimSpace(draft.Venue),
		Organizer:   caller.UserID,
		Capacity:    draft.Capacity,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, translate(err, "event not found")
	}
	s.logger.InfoContext(ctx, "event created", "event_id", event.ID, "organizer", caller.UserID, "capacity", event.Capacity)
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, s.finish(ctx, "list_events", translate(err, "events not found"))
	}
	return events, nil
}

// ListMyEvents returns the events organised by the caller.
func (s *EventService) ListMyEvents(ctx context.Context, caller model.Identity) ([]model.Event, error) {
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	events, err := s.store.ListEventsByOrganizer(ctx, caller.UserID)
	if err != nil {
		return nil, s.finish(ctx, "list_my_events", translate(err, "events not found"))
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, s.finish(ctx, "get_event", translate(err, fmt.Sprintf("event not found with id of %s", id)))
	}
	return event, nil
}

// UpdateEvent changes an event's descriptive fields. Only the organizer or
// an administrator may do so.
func (s *EventService) UpdateEvent(ctx context.Context, caller model.Identity, id string, upd model.EventUpdate) (event *model.Event, err error) {
	defer func() { err = s.finish(ctx, opUpdateEvent, err) }()
	if err := requireIdentity(caller); err != nil {
		return nil, err
	}
	notFound := fmt.Sprintf("event not found with id of %s", id)

	current, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, translate(err, notFound)
	}
	if !caller.CanManage(current.Organizer) {
		return nil, apperr.Forbidden("not authorized to update this event")
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apperr.Validation("title cannot be empty")
		}
		upd.Title = &title
	}
	event, err = s.store.UpdateEvent(ctx, id, upd)
	if err != nil {
		return nil, translate(err, notFound)
	}
	return event, nil
}

// DeleteEvent removes an event. Only the organizer or an administrator may
// delete it, and not while it has active registrations; cancelled
// registrations are removed with it.
func (s *EventService) DeleteEvent(ctx context.Context, caller model.Identity, id string) (err error) {
	defer func() { err = s.finish(ctx, opDeleteEvent, err) }()
	if err := requireIdentity(caller); err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanManage(event.Organizer) {
			return apperr.Forbidden("not authorized to delete this event")
		}
		active, err := tx.CountActiveRegistrations(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperr.Conflict(fmt.Sprintf("event has %d active registrations", active))
		}
		return tx.DeleteEvent(ctx, id)
	})
	if err != nil {
		return translate(err, fmt.Sprintf("event not found with id of %s", id))
	}
	s.logger.InfoContext(ctx, "event deleted", "event_id", id, "by", caller.UserID)
	return nil
}
