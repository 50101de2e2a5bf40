package app

import (
	"context"
	"time"

	"ingest-router/internal/brokers"
	"ingest-router/internal/brokers/direct"
	"ingest-router/internal/brokers/rabbitmq"
	redisbroker "ingest-router/internal/brokers/redis"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/common/utils"
	"ingest-router/internal/notification"
)

// initializeBrokers registers one broker per configured transport. The
// in-process direct broker is always available; RabbitMQ and Redis are
// only connected when configured, and endpoint types that need a missing
// broker are rejected when rules load.
func (app *App) initializeBrokers(logger logging.Logger) error {
	app.Brokers = brokers.NewRegistry()

	app.Direct = direct.NewBroker(logger)
	app.Brokers.Register(notification.BrokerDirect, app.Direct)

	if app.Config.RabbitMQURL != "" {
		var rmq *rabbitmq.Broker
		err := app.connect("rabbitmq", func() (err error) {
			rmq, err = rabbitmq.NewBroker(&rabbitmq.Config{
				URL:      app.Config.RabbitMQURL,
				PoolSize: app.Config.RabbitMQPoolSize,
				Exchange: app.Config.RabbitMQExchange,
			})
			return err
		})
		if err != nil {
			return err
		}
		app.Brokers.Register(notification.BrokerRabbitMQ, rmq)
		app.Logger.Info("RabbitMQ: Connected", logging.String("exchange", rmq.Exchange()))
	} else {
		app.Logger.Info("RabbitMQ: Not configured (QUEUE and TOPIC endpoints disabled)")
	}

	if app.Config.RedisAddress != "" {
		cfg := redisbroker.DefaultConfig()
		cfg.Address = app.Config.RedisAddress
		cfg.Password = app.Config.RedisPassword
		cfg.DB = app.Config.RedisDB

		var rds *redisbroker.Broker
		err := app.connect("redis", func() (err error) {
			rds, err = redisbroker.NewBroker(cfg)
			return err
		})
		if err != nil {
			return err
		}
		app.Brokers.Register(notification.BrokerBroadcast, rds)
		app.Logger.Info("Redis: Connected", logging.String("address", cfg.GetConnectionString()))
	} else {
		app.Logger.Info("Redis: Not configured (BROADCAST endpoints disabled)")
	}

	return nil
}

// connect retries dial until it stops failing with connection errors.
func (app *App) connect(broker string, dial func() error) error {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = app.Config.BrokerConnectAttempts
	retry.RetryableErrors = utils.ConnectionErrorsOnly
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		app.Logger.Warn("Broker connection failed, retrying",
			logging.String("broker", broker),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Err(err),
		)
	}
	return utils.RetryWithBackoff(context.Background(), retry, dial)
}
