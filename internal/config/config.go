package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Addr         string `env:"SERVER_ADDRESS" envDefault:":8080"`
		CORSOrigins  string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
		SecureCookie bool   `env:"SECURE_COOKIE" envDefault:"false"`
	}

	Mongo struct {
		URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
		DBName string `env:"MONGO_DB" envDefault:"driftline"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Session struct {
		TTLMinutes int `env:"SESSION_TTL_MINUTES" envDefault:"1440"`
	}
}

// RedisAddr joins host and port for the client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Load reads .env (best effort) and parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
