package rabbitmq

import (
	"fmt"
	"net/url"

	"ingest-router/internal/common/validation"
)

// DefaultExchange is the topic exchange used for TOPIC endpoints.
const DefaultExchange = "ingest.notifications"

type Config struct {
	URL      string `json:"url" validate:"required,url"`
	PoolSize int    `json:"pool_size" validate:"min=1,max=100"`
	Exchange string `json:"exchange" validate:"required"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}

	return validation.ValidateStruct(c)
}

func (c *Config) GetConnectionString() string {
	// Never log credentials
	if parsedURL, err := url.Parse(c.URL); err == nil && parsedURL.Host != "" {
		return fmt.Sprintf("rabbitmq://%s", parsedURL.Host)
	}
	return "rabbitmq://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
