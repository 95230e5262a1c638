package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"apptbook/backend/internal/metrics"
)

// RouterDeps collects everything NewRouter wires together.
type RouterDeps struct {
	Appointments   *AppointmentsHandler
	HealthCheck    func(ctx context.Context) error
	Limiter        *RateLimiter
	MetricsHandler http.Handler
	Metrics        metrics.Recorder
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the full route tree. Middleware order: recovery first so
// a panic anywhere below still produces a response, then logging, then the
// request deadline, then rate limiting. /healthz and /metrics sit outside
// the rate limit so probes and scrapes are never throttled.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(deps.Logger))
	r.Use(LoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(TimeoutMiddleware(deps.RequestTimeout))

	r.Get("/healthz", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware())
		}

		r.Route("/appointment", func(r chi.Router) {
			r.Get("/freeSlots", deps.Appointments.FreeSlots)
			r.Post("/bookSlots", deps.Appointments.BookSlots)
			r.Get("/getEvents", deps.Appointments.GetEvents)
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
