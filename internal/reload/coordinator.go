package reload

import (
	"sync"

	"ingest-router/internal/common/logging"
	"ingest-router/internal/localization"
	"ingest-router/internal/metrics"
)

// PatternRefresher reloads header distribution patterns.
type PatternRefresher interface {
	Refresh() error
}

// NotificationReloader reloads notification rules and flushes queued data.
type NotificationReloader interface {
	Reload() (bool, error)
	SendQueuedNotifications()
}

// Coordinator is the single entry point for every reload trigger: the
// scheduler, the file watcher and the admin API.
type Coordinator struct {
	patterns      PatternRefresher
	notifications NotificationReloader
	logger        logging.Logger
	metrics       *metrics.Metrics

	mu sync.Mutex
}

// Result reports the outcome of ReloadAll.
type Result struct {
	DistributionError   error `json:"-"`
	NotificationApplied bool  `json:"notification_applied"`
	NotificationError   error `json:"-"`
}

// NewCoordinator creates a coordinator. Either target may be nil.
func NewCoordinator(patterns PatternRefresher, notifications NotificationReloader, logger logging.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Coordinator{
		patterns:      patterns,
		notifications: notifications,
		logger:        logger.WithFields(logging.Field{Key: "component", Value: "reload_coordinator"}),
		metrics:       m,
	}
}

// RefreshPatterns runs a distribution pattern refresh.
func (c *Coordinator) RefreshPatterns() error {
	if c.patterns == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.patterns.Refresh(); err != nil {
		c.logger.Error("Distribution pattern refresh failed", err)
		c.metrics.RecordConfigReload(metrics.TargetDistribution, metrics.StatusFailed)
		return err
	}
	c.metrics.RecordConfigReload(metrics.TargetDistribution, metrics.StatusApplied)
	return nil
}

// ReloadNotifications reloads notification rules if their files changed.
func (c *Coordinator) ReloadNotifications() (bool, error) {
	if c.notifications == nil {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	applied, err := c.notifications.Reload()
	switch {
	case err != nil:
		c.metrics.RecordConfigReload(metrics.TargetNotification, metrics.StatusFailed)
	case applied:
		c.metrics.RecordConfigReload(metrics.TargetNotification, metrics.StatusApplied)
	default:
		c.metrics.RecordConfigReload(metrics.TargetNotification, metrics.StatusUnchanged)
	}
	return applied, err
}

// ReloadAll refreshes patterns and reloads notification rules.
func (c *Coordinator) ReloadAll() Result {
	var result Result
	result.DistributionError = c.RefreshPatterns()
	result.NotificationApplied, result.NotificationError = c.ReloadNotifications()
	return result
}

// FlushQueued sends queued notification data.
func (c *Coordinator) FlushQueued() {
	if c.notifications == nil {
		return
	}
	c.notifications.SendQueuedNotifications()
}

// OnChange dispatches a watcher event for a localization subdirectory.
func (c *Coordinator) OnChange(subdir string) {
	switch subdir {
	case localization.DistributionDir:
		_ = c.RefreshPatterns()
	case localization.NotificationDir:
		_, _ = c.ReloadNotifications()
	default:
		c.logger.Debug("Ignoring change in unknown directory", logging.Field{Key: "subdir", Value: subdir})
	}
}
