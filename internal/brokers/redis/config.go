package redis

import (
	"fmt"
	"time"

	"ingest-router/internal/common/validation"
)

type Config struct {
	Address  string        `json:"address" validate:"required"`
	Password string        `json:"-"`
	DB       int           `json:"db" validate:"min=0,max=15"`
	PoolSize int           `json:"pool_size" validate:"min=1"`
	Timeout  time.Duration `json:"timeout"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}

	return validation.ValidateStruct(c)
}

func (c *Config) GetType() string {
	return "redis"
}

// GetConnectionString never includes the password.
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d", c.Address, c.DB)
}

func DefaultConfig() *Config {
	return &Config{
		Address:  "localhost:6379",
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	}
}
