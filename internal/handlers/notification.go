package handlers

import (
	"net/http"

	"ingest-router/internal/circuitbreaker"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/notification"
)

type endpointsResponse struct {
	Endpoints  []notification.Rule      `json:"endpoints"`
	Rejections []notification.Rejection `json:"rejections"`
	Breakers   []circuitbreaker.Stats   `json:"breakers"`
}

// GetEndpoints lists accepted notification rules, rejected rules and the
// circuit breaker state of each endpoint.
func (h *Handlers) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	if h.services.Notifications == nil {
		unavailable(w, "Notifier")
		return
	}

	resp := endpointsResponse{
		Endpoints:  h.services.Notifications.Endpoints(),
		Rejections: h.services.Notifications.Rejections(),
		Breakers:   []circuitbreaker.Stats{},
	}
	if resp.Endpoints == nil {
		resp.Endpoints = []notification.Rule{}
	}
	if resp.Rejections == nil {
		resp.Rejections = []notification.Rejection{}
	}
	if h.services.Breakers != nil {
		resp.Breakers = append(resp.Breakers, h.services.Breakers.Breakers()...)
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodeRecord(rec notification.MapRecord) error {
	if rec.ID == "" {
		return errors.ValidationError("record id is required")
	}
	if rec.Attrs == nil {
		return errors.ValidationError("record " + rec.ID + " has no attributes")
	}
	return nil
}

// MatchRecord reports which endpoints a record would be sent to without
// delivering anything.
func (h *Handlers) MatchRecord(w http.ResponseWriter, r *http.Request) {
	if h.services.Notifications == nil {
		unavailable(w, "Notifier")
		return
	}

	var rec notification.MapRecord
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	if err := decodeRecord(rec); err != nil {
		writeError(w, err)
		return
	}

	endpoints, err := h.services.Notifications.Match(rec)
	if err != nil {
		writeError(w, errors.ValidationError(err.Error()))
		return
	}
	if endpoints == nil {
		endpoints = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        rec.ID,
		"endpoints": endpoints,
	})
}

type dispatchRequest struct {
	Records []notification.MapRecord `json:"records"`
}

// DispatchRecords runs a batch of records through NotifyRoutes.
func (h *Handlers) DispatchRecords(w http.ResponseWriter, r *http.Request) {
	if h.services.Notifications == nil {
		unavailable(w, "Notifier")
		return
	}

	var req dispatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Records) == 0 {
		writeError(w, errors.ValidationError("records must not be empty"))
		return
	}

	records := make([]notification.Record, 0, len(req.Records))
	for _, rec := range req.Records {
		if err := decodeRecord(rec); err != nil {
			writeError(w, err)
			return
		}
		records = append(records, rec)
	}

	routed := h.services.Notifications.NotifyRoutes(records...)
	h.logger.WithContext(r.Context()).Info("Dispatched records from admin API",
		logging.Int("records", len(records)),
		logging.Int("routed", routed),
	)

	writeJSON(w, http.StatusOK, map[string]int{
		"records": len(records),
		"routed":  routed,
	})
}

// FlushQueued sends every queued notification now.
func (h *Handlers) FlushQueued(w http.ResponseWriter, r *http.Request) {
	if h.services.Notifications == nil {
		unavailable(w, "Notifier")
		return
	}
	h.services.Notifications.SendQueuedNotifications()
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
