// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

const maxBodyBytes = 1 << 20

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, model.Response{Success: true, Data: data})
}

// writeList always encodes a JSON array, never null.
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeJSON(w, http.StatusOK, model.Response{Success: true, Count: &n, Data: items})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Response{Success: false, Message: msg})
}

func writeValidation(w http.ResponseWriter, errs []model.FieldError) {
	writeJSON(w, http.StatusBadRequest, model.Response{
		Success: false,
		Message: "validation failed",
		Errors:  errs,
	})
}

// writeServiceError maps a service error onto its HTTP status. Internal
// causes are logged by the service and never reach the client.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, apperr.KindOf(err).HTTPStatus(), apperr.PublicMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles GET /health
func HealthCheck(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
