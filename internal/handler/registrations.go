package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-portal/internal/auth"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/service"
)

// RegistrationHandler serves the /api/registrations routes.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register handles POST /api/registrations
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateRegister(req); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	reg, err := h.registrations.Register(r.Context(), auth.IdentityFrom(r.Context()), strings.TrimSpace(req.EventID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, reg)
}

// ListMine handles GET /api/registrations/my-registrations
func (h *RegistrationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListMine(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, regs)
}

// Cancel handles PUT /api/registrations/{id}/cancel
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Cancel(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, reg)
}

// ListForEvent handles GET /api/registrations/event/{eventId}
func (h *RegistrationHandler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListForEvent(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, regs)
}
