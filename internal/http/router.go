package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harborview/reservations/internal/idempotency"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/rateLimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	if rl != nil {
		r.Use(RateLimitMiddleware(rl))
	}
	// the provider webhook signs its own deliveries; only guest-facing
	// mutations require an Idempotency-Key
	r.Group(func(g chi.Router) {
		g.Use(IdempotencyMiddleware(idemp))
		g.Post("/v1/reservations", h.CreateReservation)
		g.Post("/v1/reservations/{id}/modify", h.ModifyReservation)
		g.Post("/v1/reservations/{id}/modify/confirm", h.ConfirmModification)
		g.Post("/v1/reservations/{id}/modify/abandon", h.AbandonModification)
		g.Post("/v1/reservations/{id}/cancel", h.CancelReservation)
		g.Post("/v1/reservations/{id}/check-in", h.CheckIn)
		g.Post("/v1/reservations/{id}/check-out", h.CheckOut)
	})

	r.Get("/v1/reservations/{id}", h.GetReservation)
	r.Post("/v1/payments/callback", h.PaymentCallback)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
