package app

import (
	"github.com/gorilla/mux"

	"ingest-router/internal/common/ratelimit"
	"ingest-router/internal/handlers"
	"ingest-router/internal/server"
)

// Handlers builds the admin API handlers over the application's services.
func (app *App) Handlers() *handlers.Handlers {
	return handlers.New(handlers.Services{
		Router:        app.Router,
		Patterns:      app.Patterns,
		Notifications: app.Notifier,
		Reloader:      app.Reload,
		Breakers:      app.Transport,
		Health:        app.Brokers,
	}, app.Logger)
}

// RunServer creates the admin HTTP server with all handlers configured
func (app *App) RunServer() (*server.Server, error) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: app.Config.AdminRateLimit,
		BurstSize:         app.Config.AdminRateBurst,
		Enabled:           app.Config.AdminRateLimit > 0,
	})
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	SetupRoutes(router, app.Handlers(), app.Metrics, limiter, app.Logger)
	return server.New(router, app.Config.AdminPort, app.Logger), nil
}
