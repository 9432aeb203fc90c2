package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-portal/internal/auth"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/service"
)

// EventHandler serves the /api/events routes.
type EventHandler struct {
	events        *service.EventService
	registrations *service.RegistrationService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, registrations *service.RegistrationService) *EventHandler {
	return &EventHandler{events: events, registrations: registrations}
}

// ListEvents handles GET /api/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, events)
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// Availability handles GET /api/events/{id}/availability
func (h *EventHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	remaining, err := h.registrations.CapacityRemaining(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"eventId": id, "remaining": remaining})
}

// CreateEvent handles POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	draft, errs := validateCreateEvent(req)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	event, err := h.events.CreateEvent(r.Context(), auth.IdentityFrom(r.Context()), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, event)
}

// ListMyEvents handles GET /api/events/my-events
func (h *EventHandler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListMyEvents(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, events)
}

// UpdateEvent handles PUT /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	upd, errs := validateUpdateEvent(req)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteEvent(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}
