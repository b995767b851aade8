// Package config loads the gateway's runtime settings from the environment,
// applying defaults and validating them before any component is built.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gt=0"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gt=0"`
}

// Config holds every setting of the chat gateway. It is built once at start-up
// and passed explicitly to the components that need it.
type Config struct {
	Addr           string `env:"SERVER_ADDR,default=:8080" validate:"required"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize int    `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gt=0"`
	RateLimit      RateLimitConfig

	// HistoryDepth is how many persisted messages are replayed to a client
	// when it joins.
	HistoryDepth  int           `env:"HISTORY_DEPTH,default=10" validate:"gte=0,lte=1000"`
	SendQueueSize int           `env:"SEND_QUEUE_SIZE,default=256" validate:"gt=0"`
	WriteTimeout  time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongTimeout   time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`

	StoreTarget  string        `env:"STORE_TARGET,default=badger://./data/chat" validate:"required"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=5s" validate:"gt=0"`

	JWTSecret        string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	JWTIssuer        string        `env:"JWT_ISSUER,default=gochat"`
	TokenTTL         time.Duration `env:"TOKEN_TTL,default=30m" validate:"gt=0"`
	RequireKnownUser bool          `env:"REQUIRE_KNOWN_USER,default=false"`

	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return Parse(es)
}

// Parse builds a Config from an explicit variable set.
func Parse(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Origins returns the allowed origins as a trimmed list.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// PingInterval is how often the server pings idle clients; it stays below
// PongTimeout so a healthy client always answers in time.
func (c *Config) PingInterval() time.Duration {
	return c.PongTimeout * 9 / 10
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
