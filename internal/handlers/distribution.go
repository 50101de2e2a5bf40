package handlers

import (
	"net/http"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/distribution"
)

type registration struct {
	Plugin      string `json:"plugin"`
	Destination string `json:"destination"`
}

type pluginsResponse struct {
	Plugins         []*distribution.PatternSet `json:"plugins"`
	Registrations   []registration             `json:"registrations"`
	MissingPatterns []string                   `json:"missing_patterns"`
}

// GetPlugins lists the published pattern sets and the registered
// plugin destinations.
func (h *Handlers) GetPlugins(w http.ResponseWriter, r *http.Request) {
	if h.services.Patterns == nil {
		unavailable(w, "Pattern registry")
		return
	}

	resp := pluginsResponse{
		Plugins:         h.services.Patterns.Plugins(),
		Registrations:   []registration{},
		MissingPatterns: h.services.Patterns.MissingPatterns(),
	}
	if h.services.Router != nil {
		for _, reg := range h.services.Router.Registrations() {
			resp.Registrations = append(resp.Registrations, registration{Plugin: reg[0], Destination: reg[1]})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type routeResponse struct {
	distribution.RouteResult
	Properties map[string]string `json:"properties"`
}

// RouteMessage runs a message through the header router and returns where
// it would be sent.
func (h *Handlers) RouteMessage(w http.ResponseWriter, r *http.Request) {
	if h.services.Router == nil {
		unavailable(w, "Router")
		return
	}

	var msg distribution.Message
	if err := decodeBody(w, r, &msg); err != nil {
		writeError(w, err)
		return
	}
	if msg.Subject == "" && msg.Header == "" && msg.FilePath == "" && len(msg.Body) == 0 {
		writeError(w, errors.ValidationError("one of subject, header, file_path or body is required"))
		return
	}

	result := h.services.Router.Route(&msg)
	if result.Destinations == nil {
		result.Destinations = []string{}
	}
	if result.Plugins == nil {
		result.Plugins = []string{}
	}
	writeJSON(w, http.StatusOK, routeResponse{RouteResult: result, Properties: msg.Properties})
}
