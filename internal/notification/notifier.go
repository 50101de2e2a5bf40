package notification

import (
	"fmt"
	"sync"
	"time"

	"ingest-router/internal/circuitbreaker"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/localization"
	"ingest-router/internal/metrics"
	"ingest-router/internal/reload"
)

// Notifier matches decoded records against the live rule generation and
// hands them to endpoint routers.
type Notifier struct {
	mu  sync.RWMutex
	gen *generation

	reloadMu sync.Mutex
	loader   *Loader
	tracker  *reload.Tracker

	transport Transport
	logger    logging.Logger
	perf      logging.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Notifier.
type Option func(*notifierOptions)

type notifierOptions struct {
	factory RouterFactory
}

// WithRouterFactory replaces the default router factory.
func WithRouterFactory(factory RouterFactory) Option {
	return func(o *notifierOptions) {
		o.factory = factory
	}
}

// NewNotifier loads the initial rule generation from source. It fails only
// when the notification directory cannot be listed or a router cannot be
// created; invalid rules are logged and skipped.
func NewNotifier(source localization.Source, transport Transport, logger logging.Logger, m *metrics.Metrics, opts ...Option) (*Notifier, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	options := notifierOptions{
		factory: func(rule *Rule) (EndpointRouter, error) {
			return NewEndpointRouter(rule, transport, m)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger = logger.WithFields(logging.Field{Key: "component", Value: "notifier"})
	n := &Notifier{
		loader:    NewLoader(source, transport, options.factory, logger),
		tracker:   reload.NewTracker(source, localization.NotificationDir, ".xml"),
		transport: transport,
		logger:    logger,
		perf:      logger.Named("Performance"),
		metrics:   m,
	}

	gen, err := n.build()
	if err != nil {
		return nil, err
	}
	n.publish(gen)

	n.logger.Info("Notification rules loaded",
		logging.Field{Key: "receive_all", Value: len(gen.receiveAll)},
		logging.Field{Key: "filtered", Value: len(gen.filtered)},
		logging.Field{Key: "rejected", Value: len(gen.rejected)},
	)
	return n, nil
}

// Start logs the endpoints that are about to receive data.
func (n *Notifier) Start() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	n.logger.Info("Notifier started",
		logging.Strings("endpoints", n.gen.endpointNames()),
		logging.Field{Key: "tree_groups", Value: n.gen.tree.Len()},
		logging.Field{Key: "tree_depth", Value: n.gen.tree.Depth()},
	)
}

// Stop delivers everything still queued.
func (n *Notifier) Stop() {
	n.SendQueuedNotifications()
	n.logger.Info("Notifier stopped")
}

// NotifyRoutes offers records to every receive-all router and to each
// filtered router whose constraints a record satisfies, then sends
// immediate data for the routers that received something. It returns the
// number of records offered.
func (n *Notifier) NotifyRoutes(records ...Record) int {
	if len(records) == 0 {
		return 0
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	start := time.Now()
	gen := n.gen

	if len(gen.receiveAll) > 0 {
		for _, record := range records {
			for _, r := range gen.receiveAll {
				r.Process(record)
			}
		}
		for _, r := range gen.receiveAll {
			n.send(r, r.SendImmediateData)
		}
	}

	if len(gen.filtered) > 0 {
		var withData []EndpointRouter
		seen := make(map[EndpointRouter]struct{})

		for _, record := range records {
			attrs, err := record.Attributes()
			if err != nil {
				n.logger.Error("Unable to derive record attributes", err,
					logging.Field{Key: "record", Value: record.Identity()},
				)
				continue
			}
			for _, r := range gen.tree.SearchTree(attrs) {
				r.Process(record)
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					withData = append(withData, r)
				}
			}
		}

		for _, r := range withData {
			n.send(r, r.SendImmediateData)
		}
	}

	elapsed := time.Since(start)
	n.metrics.RecordDispatch(len(records), elapsed)
	n.perf.Debug(fmt.Sprintf("Processed %d records", len(records)),
		logging.Duration("duration", elapsed),
	)
	return len(records)
}

// SendQueuedNotifications flushes every router of the live generation.
func (n *Notifier) SendQueuedNotifications() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	n.flushQueued(n.gen)
}

func (n *Notifier) flushQueued(gen *generation) {
	for _, r := range gen.receiveAll {
		n.send(r, r.SendQueuedData)
	}
	for _, r := range gen.filtered {
		n.send(r, r.SendQueuedData)
	}
}

// send runs one router flush. Failures are logged and never stop the caller
// from flushing the remaining routers.
func (n *Notifier) send(r EndpointRouter, flush func() error) {
	err := flush()
	switch {
	case err == nil:
	case circuitbreaker.IsOpenError(err):
		n.logger.Warn("Endpoint circuit open, notification data dropped",
			logging.Field{Key: "endpoint", Value: r.Route()},
			logging.Err(err),
		)
	default:
		n.logger.Error("Unable to send notification data", err,
			logging.Field{Key: "endpoint", Value: r.Route()},
		)
	}
}

// FilesChanged reports whether the notification directory differs from the
// files behind the live generation.
func (n *Notifier) FilesChanged() (bool, error) {
	return n.tracker.Changed()
}

// Reload rebuilds the rule generation when the notification files changed.
// It returns true when a new generation was published. On failure the
// previous generation stays live and a reload error is returned. Data queued
// in the replaced generation's routers is delivered after the swap.
func (n *Notifier) Reload() (bool, error) {
	n.reloadMu.Lock()
	defer n.reloadMu.Unlock()

	changed, err := n.tracker.Changed()
	if err != nil {
		n.logger.Warn("Unable to check notification files, using previously loaded configuration",
			logging.Err(err),
		)
		return false, errors.ReloadError("failed to check notification files", err)
	}
	if !changed {
		return false, nil
	}

	n.mu.Lock()
	previous := n.gen
	gen, err := n.build()
	if err != nil {
		n.mu.Unlock()
		n.logger.Warn("Could not reload notification rules, using previously loaded configuration",
			logging.Err(err),
		)
		return false, errors.ReloadError("notification reload failed", err)
	}
	n.publish(gen)
	n.mu.Unlock()

	n.logger.Info("Notification rules reloaded",
		logging.Field{Key: "receive_all", Value: len(gen.receiveAll)},
		logging.Field{Key: "filtered", Value: len(gen.filtered)},
		logging.Field{Key: "rejected", Value: len(gen.rejected)},
	)

	n.flushQueued(previous)
	return true, nil
}

// build loads a complete generation. A panic while loading is returned as an
// error.
func (n *Notifier) build() (gen *generation, err error) {
	defer func() {
		if r := recover(); r != nil {
			gen = nil
			err = errors.InternalError(fmt.Sprintf("panic while loading notification rules: %v", r), nil)
		}
	}()
	return n.loader.Load()
}

// publish installs gen as the live generation. Callers hold the write lock
// or have not shared n yet.
func (n *Notifier) publish(gen *generation) {
	n.gen = gen
	n.tracker.Record(gen.files)
	n.metrics.SetEndpoints(len(gen.receiveAll), len(gen.filtered))
	if p, ok := n.transport.(interface{ Retain([]string) }); ok {
		p.Retain(gen.endpointNames())
	}
}

// Endpoints returns the accepted rules of the live generation in load order.
func (n *Notifier) Endpoints() []Rule {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Rule, len(n.gen.rules))
	for i, rule := range n.gen.rules {
		out[i] = *rule
	}
	return out
}

// Rejections returns the rules the live generation refused to load.
func (n *Notifier) Rejections() []Rejection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Rejection(nil), n.gen.rejected...)
}

// Match returns the endpoints a record would be delivered to, without
// delivering anything.
func (n *Notifier) Match(record Record) ([]string, error) {
	attrs, err := record.Attributes()
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	var names []string
	for _, r := range n.gen.receiveAll {
		names = append(names, r.Route())
	}
	for _, r := range n.gen.tree.SearchTree(attrs) {
		names = append(names, r.Route())
	}
	return names, nil
}
