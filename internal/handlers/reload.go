package handlers

import (
	"net/http"

	"ingest-router/internal/common/logging"
)

type reloadResponse struct {
	Distribution        string `json:"distribution"`
	DistributionError   string `json:"distribution_error,omitempty"`
	Notification        string `json:"notification"`
	NotificationError   string `json:"notification_error,omitempty"`
	NotificationApplied bool   `json:"notification_applied"`
}

// Reload refreshes distribution patterns and reloads notification rules.
// A failed notification reload keeps the previous rules and answers 422.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	if h.services.Reloader == nil {
		unavailable(w, "Reload coordinator")
		return
	}

	result := h.services.Reloader.ReloadAll()

	resp := reloadResponse{
		Distribution:        "refreshed",
		Notification:        "unchanged",
		NotificationApplied: result.NotificationApplied,
	}
	status := http.StatusOK

	if result.DistributionError != nil {
		resp.Distribution = "failed"
		resp.DistributionError = result.DistributionError.Error()
		status = http.StatusUnprocessableEntity
	}
	switch {
	case result.NotificationError != nil:
		resp.Notification = "failed"
		resp.NotificationError = result.NotificationError.Error()
		status = http.StatusUnprocessableEntity
	case result.NotificationApplied:
		resp.Notification = "applied"
	}

	h.logger.WithContext(r.Context()).Info("Reload requested from admin API",
		logging.String("distribution", resp.Distribution),
		logging.String("notification", resp.Notification),
	)
	writeJSON(w, status, resp)
}
