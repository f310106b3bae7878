// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	defaultPort            = ":3001"
	defaultClientURL       = "http://localhost:5173"
	defaultMaxMessageSize  = 64 * 1024
	defaultSendBufferSize  = 256
	defaultRateLimitBurst  = 60
	defaultRefillInterval  = time.Second
	defaultLogLevel        = "INFO"
	defaultBadgerFilepath  = "./data/documents"
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	RateLimit       RateLimitConfig
	LogLevel        string
	BadgerFilepath  string
	ShutdownTimeout time.Duration

	allowAllOrigins bool
	originSet       map[string]struct{}
}

// environment is the raw shape of the process environment.
type environment struct {
	Port                    string        `env:"PORT,default=3001"`
	ClientURL               string        `env:"CLIENT_URL,default=http://localhost:5173"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=60"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath          string        `env:"BADGER_FILEPATH,default=./data/documents"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return Config{
		Port:           defaultPort,
		AllowedOrigins: []string{defaultClientURL},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateLimitBurst,
			RefillInterval: defaultRefillInterval,
		},
		LogLevel:        defaultLogLevel,
		BadgerFilepath:  defaultBadgerFilepath,
		ShutdownTimeout: defaultShutdownTimeout,
	}.Sanitize()
}

// LoadConfig reads the configuration from the process environment. Callers
// load any .env file beforehand.
func LoadConfig() (Config, error) {
	var e environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	origins := []string{e.ClientURL}
	if e.AllowedOrigins != "" {
		origins = parseOrigins(e.AllowedOrigins)
	}

	return Config{
		Port:           e.Port,
		AllowedOrigins: origins,
		MaxMessageSize: e.MaxMessageSize,
		SendBufferSize: e.SendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          e.RateLimitBurst,
			RefillInterval: e.RateLimitRefillInterval,
		},
		LogLevel:        e.LogLevel,
		BadgerFilepath:  e.BadgerFilepath,
		ShutdownTimeout: e.ShutdownTimeout,
	}.Sanitize(), nil
}

// Sanitize replaces out-of-range values with defaults and normalizes the
// origin allow-list.
func (c Config) Sanitize() Config {
	switch {
	case c.Port == "":
		c.Port = defaultPort
	case !strings.Contains(c.Port, ":"):
		c.Port = ":" + c.Port
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}

	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateLimitBurst
	}

	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = defaultRefillInterval
	}

	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	if c.BadgerFilepath == "" {
		c.BadgerFilepath = defaultBadgerFilepath
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	normalized, allowAll := normalizeOrigins(c.AllowedOrigins)
	c.AllowedOrigins = normalized
	c.allowAllOrigins = allowAll
	c.originSet = make(map[string]struct{}, len(normalized))
	for _, origin := range normalized {
		c.originSet[origin] = struct{}{}
	}

	return c
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
