/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zerolog access log, request-scoped logger in context
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the estimator UI

ROUTE GROUPS:
  /healthz              Liveness
  /api/estimates/*      Compute and browse estimates
  /api/scenarios/*      Built-in demo scenarios
  /api/admin/*          Estimate log reset (development only)

SECURITY NOTE:
  No authentication middleware. Requests carry patient and coverage data,
  so the service must sit behind an authenticating gateway outside
  development.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/estimator/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// EnableAdmin mounts /api/admin. Only set in development.
	EnableAdmin bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Estimate routes
		r.Route("/estimates", func(r chi.Router) {
			r.Get("/", h.ListEstimates)
			r.Post("/", h.CreateEstimate)
			r.Get("/{id}", h.GetEstimate)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/{id}/run", h.RunScenario)
		})

		if opts.EnableAdmin {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/reset", h.ResetEstimates)
			})
		}
	})

	return r
}

// RequestLogger logs one event per request and stores a request-scoped
// logger (carrying the request id) in the request context for handlers.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rid := middleware.GetReqID(r.Context())
			reqLogger := logger.With().Str("request_id", rid).Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if rid != "" {
				ww.Header().Set("X-Request-Id", rid)
			}

			next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			evt := reqLogger.Info()
			if status >= http.StatusInternalServerError {
				evt = reqLogger.Error()
			}
			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("remote_ip", r.RemoteAddr).
				Msg("request")
		})
	}
}
