package app

import (
	"context"

	"ingest-router/internal/brokers"
	"ingest-router/internal/brokers/direct"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/config"
	"ingest-router/internal/distribution"
	"ingest-router/internal/localization"
	"ingest-router/internal/metrics"
	"ingest-router/internal/notification"
	"ingest-router/internal/reload"
	"ingest-router/internal/server"
)

// App holds all the application dependencies
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Metrics   *metrics.Metrics
	Source    *localization.PathManager
	Brokers   *brokers.Registry
	Direct    *direct.Broker
	Transport *notification.BrokerTransport
	Patterns  *distribution.Registry
	Router    *distribution.Router
	Notifier  *notification.Notifier
	Reload    *reload.Coordinator
	Scheduler *reload.Scheduler
	Watcher   *reload.Watcher

	server *server.Server
	cancel context.CancelFunc
}

// New creates a new application instance with all dependencies. Brokers
// are connected, distribution patterns and notification rules are loaded
// and plugin routes registered; nothing runs until Start.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	app := &App{
		Config:  cfg,
		Logger:  logger.WithFields(logging.Field{Key: "component", Value: "app"}),
		Metrics: metrics.NewMetrics(),
	}

	source, err := localization.NewPathManager(cfg.LocalizationRoots...)
	if err != nil {
		return nil, errors.ConfigError("invalid LOCALIZATION_ROOTS: " + err.Error())
	}
	app.Source = source

	if err := app.initializeBrokers(logger); err != nil {
		app.Brokers.Close()
		return nil, err
	}

	if err := app.initializeDistribution(logger); err != nil {
		app.Brokers.Close()
		return nil, err
	}

	if err := app.initializeNotification(logger); err != nil {
		app.Brokers.Close()
		return nil, err
	}

	if err := app.initializeReload(logger); err != nil {
		app.Brokers.Close()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeDistribution(logger logging.Logger) error {
	app.Patterns = distribution.NewRegistry(app.Source, logger, app.Metrics)
	if err := app.Patterns.Refresh(); err != nil {
		return err
	}

	app.Router = distribution.NewRouter(app.Patterns, logger, app.Metrics)
	for _, route := range app.Config.Routes() {
		if err := app.Router.Register(route.Plugin, route.Destination, route.Required); err != nil {
			return err
		}
	}

	app.Logger.Info("Distribution: Ready",
		logging.Int("plugins", len(app.Patterns.Plugins())),
		logging.Int("routes", len(app.Router.Registrations())),
	)
	return nil
}

func (app *App) initializeNotification(logger logging.Logger) error {
	app.Transport = notification.NewBrokerTransport(app.Brokers, nil, logger)

	notifier, err := notification.NewNotifier(app.Source, app.Transport, logger, app.Metrics)
	if err != nil {
		return err
	}
	app.Notifier = notifier
	return nil
}

func (app *App) initializeReload(logger logging.Logger) error {
	app.Reload = reload.NewCoordinator(app.Patterns, app.Notifier, logger, app.Metrics)

	app.Scheduler = reload.NewScheduler(logger)
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"pattern-refresh", app.Config.PatternRefreshSchedule, func() { app.Reload.RefreshPatterns() }},
		{"notification-reload", app.Config.NotificationReloadSchedule, func() { app.Reload.ReloadNotifications() }},
		{"queued-flush", app.Config.QueuedFlushSchedule, app.Reload.FlushQueued},
	}
	for _, job := range jobs {
		if err := app.Scheduler.Add(job.name, job.spec, job.fn); err != nil {
			return err
		}
	}
	app.Logger.Info("Reload: Scheduled", logging.Strings("jobs", app.Scheduler.Jobs()))

	if !app.Config.WatchConfig {
		return nil
	}

	watcher, err := reload.NewWatcher(app.Source.Roots(),
		[]string{localization.DistributionDir, localization.NotificationDir},
		".xml", app.Reload.OnChange, logger)
	if err != nil {
		return err
	}
	app.Watcher = watcher
	return nil
}

// Start launches the notifier, the reload schedule, the file watcher and
// the admin server.
func (app *App) Start(ctx context.Context) error {
	ctx, app.cancel = context.WithCancel(ctx)

	app.Notifier.Start()
	app.Scheduler.Start()

	if app.Watcher != nil {
		if err := app.Watcher.Start(ctx); err != nil {
			return err
		}
	}

	srv, err := app.RunServer()
	if err != nil {
		return err
	}
	app.server = srv
	return app.server.Start()
}

// Shutdown stops accepting work, flushes queued notifications and closes
// the brokers.
func (app *App) Shutdown(ctx context.Context) error {
	if app.cancel != nil {
		app.cancel()
	}

	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.Logger.Warn("Error stopping admin server", logging.Err(err))
		}
	}

	if app.Watcher != nil {
		if err := app.Watcher.Stop(); err != nil {
			app.Logger.Warn("Error stopping config watcher", logging.Err(err))
		}
	}

	if err := app.Scheduler.Stop(ctx); err != nil {
		app.Logger.Warn("Scheduled jobs did not finish before shutdown", logging.Err(err))
	}

	app.Notifier.Stop()

	if err := app.Brokers.Close(); err != nil {
		app.Logger.Warn("Error closing brokers", logging.Err(err))
		return err
	}

	app.Logger.Info("Shutdown complete")
	return nil
}
