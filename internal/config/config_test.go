package config

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse(env.EnvSet{"JWT_SECRET": secret})
	req.NoError(err)
	req.Equal(":8080", cfg.Addr)
	req.Equal([]string{"http://localhost:8080"}, cfg.Origins())
	req.Equal(4096, cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
	req.Equal(10, cfg.HistoryDepth)
	req.Equal(256, cfg.SendQueueSize)
	req.Equal(10*time.Second, cfg.WriteTimeout)
	req.Equal(54*time.Second, cfg.PingInterval())
	req.Equal("badger://./data/chat", cfg.StoreTarget)
	req.Equal(30*time.Minute, cfg.TokenTTL)
	req.Equal("gochat", cfg.JWTIssuer)
	req.False(cfg.RequireKnownUser)
	req.Equal("INFO", cfg.LogLevel)
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse(env.EnvSet{
		"JWT_SECRET":                 secret,
		"SERVER_ADDR":                "127.0.0.1:9000",
		"ALLOWED_ORIGINS":            " http://a.example , ,http://b.example",
		"HISTORY_DEPTH":              "25",
		"RATE_LIMIT_BURST":           "20",
		"RATE_LIMIT_REFILL_INTERVAL": "2s",
		"STORE_TARGET":               "sqlite://chat.db",
		"REQUIRE_KNOWN_USER":         "true",
		"LOG_LEVEL":                  "debug",
	})
	req.NoError(err)
	req.Equal("127.0.0.1:9000", cfg.Addr)
	req.Equal([]string{"http://a.example", "http://b.example"}, cfg.Origins())
	req.Equal(25, cfg.HistoryDepth)
	req.Equal(20, cfg.RateLimit.Burst)
	req.Equal(2*time.Second, cfg.RateLimit.RefillInterval)
	req.Equal("sqlite://chat.db", cfg.StoreTarget)
	req.True(cfg.RequireKnownUser)
	req.Equal("DEBUG", cfg.LogLevel)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		es   env.EnvSet
	}{
		{"missing secret", env.EnvSet{}},
		{"short secret", env.EnvSet{"JWT_SECRET": "short"}},
		{"negative history", env.EnvSet{"JWT_SECRET": secret, "HISTORY_DEPTH": "-1"}},
		{"zero queue", env.EnvSet{"JWT_SECRET": secret, "SEND_QUEUE_SIZE": "0"}},
		{"unknown log level", env.EnvSet{"JWT_SECRET": secret, "LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.es)
			require.Error(t, err)
		})
	}
}
