package distribution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/metrics"
)

// Message properties published by Route for downstream decoders.
const (
	PropertyFileName   = "ingestFileName"
	PropertyPluginName = "pluginName"
)

// Message is a raw ingest message. Subject takes precedence over Header;
// when neither is set the file path, or failing that the body text, is
// matched instead.
type Message struct {
	Subject    string            `json:"subject,omitempty"`
	Header     string            `json:"header,omitempty"`
	FilePath   string            `json:"file_path,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RouteResult is the outcome of routing one message. Destinations holds one
// entry per matched plugin, in the same order as Plugins. An empty list is a
// valid terminal outcome.
type RouteResult struct {
	Destinations []string `json:"destinations"`
	Plugins      []string `json:"plugins"`
	Header       string   `json:"header"`
	FilePath     string   `json:"file_path,omitempty"`
	Stopped      bool     `json:"stopped"`
}

// PatternMatcher answers header queries for the router.
type PatternMatcher interface {
	MatchingPlugins(header string, candidates []string) []string
	HasPatternsForPlugin(name string) bool
}

// Router maps plugin names to decoder destinations and routes messages by
// header.
type Router struct {
	patterns PatternMatcher
	logger   logging.Logger
	unrouted logging.Logger
	metrics  *metrics.Metrics

	mu           sync.RWMutex
	order        []string
	destinations map[string]string
}

// NewRouter creates a router backed by the given pattern matcher.
func NewRouter(patterns PatternMatcher, logger logging.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Router{
		patterns:     patterns,
		logger:       logger.WithFields(logging.Field{Key: "component", Value: "distribution_router"}),
		unrouted:     logger.Named(logging.RouteFailedChannel),
		metrics:      m,
		destinations: make(map[string]string),
	}
}

// Register maps plugin to destination. A required plugin without patterns is
// rejected with a configuration error; an optional one is registered with a
// warning since it will never receive data until patterns appear.
// Re-registering a plugin replaces its destination and keeps its position.
func (r *Router) Register(plugin, destination string, required bool) error {
	plugin = strings.TrimSpace(plugin)
	if plugin == "" {
		return apperrors.ValidationError("plugin name is required")
	}
	if strings.TrimSpace(destination) == "" {
		return apperrors.ValidationError(fmt.Sprintf("destination is required for plugin %s", plugin))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.patterns.HasPatternsForPlugin(plugin) {
		if required {
			return apperrors.ConfigError(fmt.Sprintf("plugin %s has no distribution patterns", plugin)).
				WithContext("plugin", plugin)
		}
		r.logger.Warn("Plugin registered without distribution patterns",
			logging.Field{Key: "plugin", Value: plugin},
			logging.Field{Key: "destination", Value: destination},
		)
	}

	if _, exists := r.destinations[plugin]; !exists {
		r.order = append(r.order, plugin)
	}
	r.destinations[plugin] = destination

	r.logger.Info("Plugin registered",
		logging.Field{Key: "plugin", Value: plugin},
		logging.Field{Key: "destination", Value: destination},
	)
	return nil
}

// Registrations returns plugin to destination mappings in registration order.
func (r *Router) Registrations() [][2]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][2]string, len(r.order))
	for i, plugin := range r.order {
		out[i] = [2]string{plugin, r.destinations[plugin]}
	}
	return out
}

// Route computes the destinations for msg. On success the absolute file
// path and the comma-joined matched plugin names are written to
// msg.Properties. A message referencing a file that does not exist is
// stopped: it is logged and returned with no destinations.
func (r *Router) Route(msg *Message) RouteResult {
	header := msg.Subject
	if header != "" {
		msg.Header = header
	} else {
		header = msg.Header
	}

	result := RouteResult{}

	if msg.FilePath != "" {
		path, err := filepath.Abs(msg.FilePath)
		if err != nil {
			path = msg.FilePath
		}
		result.FilePath = path

		if _, err := os.Stat(path); err != nil {
			r.logger.Error("File referenced by message does not exist", err,
				logging.Field{Key: "file", Value: path},
				logging.Field{Key: "header", Value: header},
			)
			r.metrics.RecordStopped()
			result.Header = header
			result.Stopped = true
			return result
		}
	}

	if header == "" {
		if msg.FilePath != "" {
			header = msg.FilePath
		} else {
			header = string(msg.Body)
		}
	}
	result.Header = header

	r.mu.RLock()
	matched := r.patterns.MatchingPlugins(header, r.order)
	for _, plugin := range matched {
		result.Destinations = append(result.Destinations, r.destinations[plugin])
	}
	r.mu.RUnlock()

	result.Plugins = matched

	if msg.Properties == nil {
		msg.Properties = make(map[string]string)
	}
	if result.FilePath != "" {
		msg.Properties[PropertyFileName] = result.FilePath
	}
	msg.Properties[PropertyPluginName] = strings.Join(matched, ",")

	if len(matched) == 0 {
		r.unrouted.Warn("No plugin matched header", logging.Field{Key: "header", Value: header})
		r.metrics.RecordUnrouted()
		return result
	}

	r.metrics.RecordRouted(matched)
	return result
}
