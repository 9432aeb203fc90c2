package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-portal/internal/auth"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/service"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Events        *service.EventService
	Registrations *service.RegistrationService
	Tokens        *auth.TokenManager
	Store         Pinger
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	AllowedOrigin string
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.AllowedOrigin == "" {
		d.AllowedOrigin = "*"
	}

	eventHandler := NewEventHandler(d.Events, d.Registrations)
	regHandler := NewRegistrationHandler(d.Registrations)
	authn := Authenticate(d.Tokens, d.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Logger, d.Metrics))
	r.Use(CORS(d.AllowedOrigin))

	r.Get("/health", HealthCheck(d.Store, d.Logger))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.Get("/{id}", eventHandler.GetEvent)
			r.Get("/{id}/availability", eventHandler.Availability)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/", eventHandler.CreateEvent)
				r.Get("/my-events", eventHandler.ListMyEvents)
				r.Put("/{id}", eventHandler.UpdateEvent)
				r.Delete("/{id}", eventHandler.DeleteEvent)
			})
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(authn)
			r.Post("/", regHandler.Register)
			r.Get("/my-registrations", regHandler.ListMine)
			r.Put("/{id}/cancel", regHandler.Cancel)
			r.Get("/event/{eventId}", regHandler.ListForEvent)
		})
	})

	return r
}
