package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service Scheduler
	Health  *HealthHandler
	Logger  zerolog.Logger
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Now is the clock for sweeps and future-booking checks.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := cfg.Health
	if health == nil {
		health = &HealthHandler{}
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &handlers{svc: cfg.Service, logger: cfg.Logger, now: now}

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.createBooking)
		r.Get("/", h.listBookings)
		r.Post("/sweep", h.sweep)
		r.Get("/{id}", h.getBooking)
		r.Put("/{id}", h.updateBooking)
		r.Delete("/{id}", h.deleteBooking)
		r.Post("/{id}/cancel", h.cancelBooking)
	})

	r.Route("/practitioners", func(r chi.Router) {
		r.Post("/", h.createPractitioner)
		r.Get("/{id}", h.getPractitioner)
		r.Delete("/{id}", h.deletePractitioner)
		r.Get("/{id}/availability", h.availability)
		r.Get("/{id}/future-bookings", h.practitionerFutureBookings)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.createClient)
		r.Get("/{id}", h.getClient)
		r.Delete("/{id}", h.deleteClient)
		r.Get("/{id}/future-bookings", h.clientFutureBookings)
	})

	r.Post("/accounts/{id}/roles/{role}/revoke", h.revokeRole)

	return r
}
