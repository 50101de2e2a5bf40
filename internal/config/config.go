// Package config loads the ingest router's settings from environment
// variables. Load applies defaults; Validate checks the result with the
// shared struct validator before anything is started.
//
// Environment Variables:
//
// Configuration sources:
//   - LOCALIZATION_ROOTS: Comma-separated search roots, highest priority first (default: ./config)
//   - PATTERN_REFRESH_SCHEDULE: Cron spec for distribution pattern refresh (default: @every 1m)
//   - NOTIFICATION_RELOAD_SCHEDULE: Cron spec for notification rule reload (default: @every 1m)
//   - QUEUED_FLUSH_SCHEDULE: Cron spec for sending queued notifications (default: @every 5s)
//   - WATCH_CONFIG: Reload as soon as rule files change on disk (default: true)
//
// Routing:
//   - DISTRIBUTION_ROUTES: Comma-separated plugin=destination registrations
//   - REQUIRED_PLUGINS: Plugins whose registration fails without distribution patterns
//
// Admin server and logging:
//   - ADMIN_PORT: Admin HTTP port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown limit (default: 15s)
//   - ADMIN_RATE_LIMIT: Requests per second per client on admin write endpoints, 0 disables (default: 5)
//   - ADMIN_RATE_BURST: Burst size for ADMIN_RATE_LIMIT (default: 10)
//
// Transports:
//   - RABBITMQ_URL: RabbitMQ URL for QUEUE and TOPIC endpoints (empty disables them)
//   - RABBITMQ_POOL_SIZE: RabbitMQ connection pool size (default: 5)
//   - RABBITMQ_EXCHANGE: Topic exchange for TOPIC endpoints (default: ingest.notifications)
//   - REDIS_ADDRESS: Redis address for BROADCAST endpoints (empty disables them)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - BROKER_CONNECT_ATTEMPTS: Connection attempts per broker at startup (default: 5)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/validation"
)

// Config holds every setting of the service.
type Config struct {
	LocalizationRoots          []string `env:"LOCALIZATION_ROOTS" validate:"required,min=1,dive,required"`
	PatternRefreshSchedule     string   `env:"PATTERN_REFRESH_SCHEDULE" validate:"omitempty,cron_expression"`
	NotificationReloadSchedule string   `env:"NOTIFICATION_RELOAD_SCHEDULE" validate:"omitempty,cron_expression"`
	QueuedFlushSchedule        string   `env:"QUEUED_FLUSH_SCHEDULE" validate:"omitempty,cron_expression"`
	WatchConfig                bool     `env:"WATCH_CONFIG"`

	DistributionRoutes []string `env:"DISTRIBUTION_ROUTES" validate:"dive,plugin_route"`
	RequiredPlugins    []string `env:"REQUIRED_PLUGINS" validate:"dive,required"`

	AdminPort       string        `env:"ADMIN_PORT" validate:"required,numeric"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile         string        `env:"LOG_FILE"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	AdminRateLimit  float64       `env:"ADMIN_RATE_LIMIT" validate:"min=0"`
	AdminRateBurst  int           `env:"ADMIN_RATE_BURST" validate:"min=1"`

	RabbitMQURL      string `env:"RABBITMQ_URL" validate:"omitempty,url"`
	RabbitMQPoolSize int    `env:"RABBITMQ_POOL_SIZE" validate:"min=1,max=100"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE" validate:"required"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" validate:"min=0,max=15"`

	BrokerConnectAttempts int `env:"BROKER_CONNECT_ATTEMPTS" validate:"min=1,max=100"`

	parseErrors []string
}

// Load creates a Config from environment variables, applying defaults for
// unset ones. Values that cannot be parsed are reported by Validate.
func Load() *Config {
	c := &Config{
		LocalizationRoots:          getListEnv("LOCALIZATION_ROOTS", []string{"./config"}),
		PatternRefreshSchedule:     getEnv("PATTERN_REFRESH_SCHEDULE", "@every 1m"),
		NotificationReloadSchedule: getEnv("NOTIFICATION_RELOAD_SCHEDULE", "@every 1m"),
		QueuedFlushSchedule:        getEnv("QUEUED_FLUSH_SCHEDULE", "@every 5s"),

		DistributionRoutes: getListEnv("DISTRIBUTION_ROUTES", nil),
		RequiredPlugins:    getListEnv("REQUIRED_PLUGINS", nil),

		AdminPort: getEnv("ADMIN_PORT", "8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:   getEnv("LOG_FILE", ""),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "ingest.notifications"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}

	c.WatchConfig = c.getBoolEnv("WATCH_CONFIG", true)
	c.ShutdownTimeout = c.getDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second)
	c.AdminRateLimit = c.getFloatEnv("ADMIN_RATE_LIMIT", 5)
	c.AdminRateBurst = c.getIntEnv("ADMIN_RATE_BURST", 10)
	c.RabbitMQPoolSize = c.getIntEnv("RABBITMQ_POOL_SIZE", 5)
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.BrokerConnectAttempts = c.getIntEnv("BROKER_CONNECT_ATTEMPTS", 5)
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blank entries.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a boolean, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration such as 30s, got %q", key, value))
		return defaultValue
	}
	return parsed
}

// Validate checks the configuration. It returns a validation error naming
// the offending environment variables.
func (c *Config) Validate() error {
	if len(c.parseErrors) > 0 {
		return errors.ValidationError(strings.Join(c.parseErrors, "; "))
	}

	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if port, err := strconv.Atoi(c.AdminPort); err != nil || port < 1 || port > 65535 {
		return errors.ValidationError("ADMIN_PORT must be a valid port number between 1 and 65535")
	}

	seen := make(map[string]struct{}, len(c.DistributionRoutes))
	for _, route := range c.Routes() {
		if _, dup := seen[route.Plugin]; dup {
			return errors.ValidationError(fmt.Sprintf("DISTRIBUTION_ROUTES registers plugin %s more than once", route.Plugin))
		}
		seen[route.Plugin] = struct{}{}
	}
	for _, plugin := range c.RequiredPlugins {
		if _, ok := seen[plugin]; !ok {
			return errors.ValidationError(fmt.Sprintf("REQUIRED_PLUGINS names %s, which has no entry in DISTRIBUTION_ROUTES", plugin))
		}
	}

	return nil
}

// Route is one plugin=destination registration.
type Route struct {
	Plugin      string
	Destination string
	Required    bool
}

// Routes parses DistributionRoutes in declaration order. Entries that are
// not plugin=destination are skipped; Validate reports them.
func (c *Config) Routes() []Route {
	required := make(map[string]struct{}, len(c.RequiredPlugins))
	for _, p := range c.RequiredPlugins {
		required[p] = struct{}{}
	}

	routes := make([]Route, 0, len(c.DistributionRoutes))
	for _, entry := range c.DistributionRoutes {
		plugin, dest, ok := strings.Cut(entry, "=")
		plugin, dest = strings.TrimSpace(plugin), strings.TrimSpace(dest)
		if !ok || plugin == "" || dest == "" {
			continue
		}
		_, req := required[plugin]
		routes = append(routes, Route{Plugin: plugin, Destination: dest, Required: req})
	}
	return routes
}
