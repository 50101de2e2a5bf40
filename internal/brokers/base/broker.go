// Package base provides the pieces shared by broker implementations.
package base

import (
	"fmt"

	"ingest-router/internal/brokers"
	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// BaseBroker handles naming, logging and configuration for a broker.
type BaseBroker struct {
	name   string
	logger logging.Logger
	config brokers.BrokerConfig
}

// NewBaseBroker validates config and sets up a logger tagged with the broker
// name and its sanitized connection string.
func NewBaseBroker(name string, config brokers.BrokerConfig) (*BaseBroker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", name, err))
	}

	logger := logging.GetGlobalLogger().WithFields(
		logging.Field{Key: "broker", Value: name},
		logging.Field{Key: "connection", Value: config.GetConnectionString()},
	)

	return &BaseBroker{
		name:   name,
		config: config,
		logger: logger,
	}, nil
}

// Name returns the broker type name.
func (b *BaseBroker) Name() string {
	return b.name
}

// GetLogger returns the configured logger instance.
func (b *BaseBroker) GetLogger() logging.Logger {
	return b.logger
}

// GetConfig returns the broker configuration.
func (b *BaseBroker) GetConfig() brokers.BrokerConfig {
	return b.config
}

// GetBrokerInfo returns broker information for health output.
func (b *BaseBroker) GetBrokerInfo() brokers.BrokerInfo {
	return brokers.BrokerInfo{
		Name: b.name,
		Type: b.config.GetType(),
		URL:  b.config.GetConnectionString(),
	}
}

// StandardHealthCheck returns a connection error when client is nil.
func StandardHealthCheck(client interface{}, brokerType string) error {
	if client == nil {
		return errors.ConnectionError(brokerType+" client not initialized", nil)
	}
	return nil
}
