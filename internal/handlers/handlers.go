// Package handlers implements the admin HTTP API: inspection of the loaded
// distribution patterns and notification rules, dry-run routing and
// matching, manual dispatch and reload.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"ingest-router/internal/brokers"
	"ingest-router/internal/circuitbreaker"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/distribution"
	"ingest-router/internal/notification"
	"ingest-router/internal/reload"
)

// maxBodyBytes caps admin request bodies.
const maxBodyBytes = 4 << 20

// DistributionService is the header routing side of the service.
type DistributionService interface {
	Route(msg *distribution.Message) distribution.RouteResult
	Registrations() [][2]string
}

// PatternCatalog exposes the published distribution patterns.
type PatternCatalog interface {
	Plugins() []*distribution.PatternSet
	MissingPatterns() []string
}

// NotificationService is the notification dispatch side of the service.
type NotificationService interface {
	NotifyRoutes(records ...notification.Record) int
	SendQueuedNotifications()
	Endpoints() []notification.Rule
	Rejections() []notification.Rejection
	Match(record notification.Record) ([]string, error)
}

// Reloader triggers configuration reloads.
type Reloader interface {
	ReloadAll() reload.Result
}

// BreakerReporter reports per-endpoint circuit breaker state.
type BreakerReporter interface {
	Breakers() []circuitbreaker.Stats
}

// HealthChecker reports the health and identity of each configured broker.
type HealthChecker interface {
	Health() map[string]error
	Info() map[string]brokers.BrokerInfo
}

// Services groups the collaborators the handlers serve. Nil members turn
// the matching endpoints into 503 responses.
type Services struct {
	Router        DistributionService
	Patterns      PatternCatalog
	Notifications NotificationService
	Reloader      Reloader
	Breakers      BreakerReporter
	Health        HealthChecker
}

type Handlers struct {
	services Services
	logger   logging.Logger
	started  time.Time
}

func New(services Services, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		services: services,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "admin_api"}),
		started:  time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// writeError maps application error types onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeReload, errors.ErrTypeConfig:
		status = http.StatusUnprocessableEntity
	case errors.ErrTypeTransport, errors.ErrTypeConnection:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Type: string(errors.GetType(err))})
}

func unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: what + " not initialized"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid JSON: " + err.Error())
	}
	return nil
}

type brokerHealth struct {
	Status string `json:"status"`
	Type   string `json:"type,omitempty"`
	URL    string `json:"url,omitempty"`
}

// HealthCheck reports broker health. Any unhealthy broker turns the
// response into a 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	statuses := map[string]brokerHealth{}

	if h.services.Health != nil {
		info := h.services.Health.Info()
		for name, err := range h.services.Health.Health() {
			entry := brokerHealth{Status: "ok", Type: info[name].Type, URL: info[name].URL}
			if err != nil {
				entry.Status = err.Error()
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			}
			statuses[name] = entry
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"brokers":   statuses,
	})
}
