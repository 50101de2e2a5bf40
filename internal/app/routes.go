package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"ingest-router/internal/common/logging"
	"ingest-router/internal/common/ratelimit"
	"ingest-router/internal/handlers"
	"ingest-router/internal/metrics"
	"ingest-router/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the admin API. Endpoints that
// change state or deliver data are throttled per client when limiter is
// non-nil.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, m *metrics.Metrics, limiter *ratelimit.Limiter, logger logging.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(m.Middleware(routeTemplate))

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/distribution/plugins", h.GetPlugins).Methods("GET")
	api.HandleFunc("/distribution/route", h.RouteMessage).Methods("POST")

	api.HandleFunc("/notification/endpoints", h.GetEndpoints).Methods("GET")
	api.HandleFunc("/notification/match", h.MatchRecord).Methods("POST")

	// State-changing endpoints
	throttle := func(fn http.HandlerFunc) http.Handler { return fn }
	if limiter != nil {
		limit := ratelimit.HTTPMiddleware(limiter, ratelimit.IPKey, logger)
		throttle = func(fn http.HandlerFunc) http.Handler { return limit(fn) }
	}
	api.Handle("/notification/dispatch", throttle(h.DispatchRecords)).Methods("POST")
	api.Handle("/notification/flush", throttle(h.FlushQueued)).Methods("POST")
	api.Handle("/reload", throttle(h.Reload)).Methods("POST")
}

// routeTemplate labels metrics by route template rather than raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
