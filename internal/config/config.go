// Package config loads and validates server config from the environment and
// optional .env files using godotenv and Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinJWTSecretLength matches the check in auth.NewTokenService.
const MinJWTSecretLength = 16

// Config holds server configuration loaded from the environment.
type Config struct {
	// HTTPPort is the port the HTTP server listens on.
	HTTPPort int `mapstructure:"HTTP_PORT"`
	// DBPath is the SQLite file (":memory:" for a throwaway database).
	DBPath string `mapstructure:"DB_PATH"`
	// JWTSecret signs session tokens (HS256). Required, at least 16 characters.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// SessionTTL is how long a session token stays valid (e.g. "24h").
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// NATSURL points at an external NATS server. Empty runs an embedded one.
	NATSURL string `mapstructure:"NATS_URL"`
	// NATSPort is the embedded server's port.
	NATSPort int `mapstructure:"NATS_PORT"`
	// FeedSubject is the NATS subject for post change events.
	FeedSubject string `mapstructure:"FEED_SUBJECT"`
	// CookieSecure marks the session cookie Secure. Turn off for plain-HTTP dev.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
}

// Load reads the given .env files (missing ones are skipped), then builds and
// validates Config from the environment via Viper. Variables already set in
// the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	// Every key needs a default, even an empty one: Unmarshal only sees keys
	// Viper already knows about.
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_PATH", "data/community.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_PORT", 4222)
	v.SetDefault("FEED_SUBJECT", "community.posts.changed")
	v.SetDefault("COOKIE_SECURE", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTP_PORT %d is out of range", c.HTTPPort)
	}
	if c.DBPath == "" {
		return errors.New("config: DB_PATH must be set")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.FeedSubject == "" {
		return errors.New("config: FEED_SUBJECT must be set")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SlogLevel returns LogLevel as a slog.Level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
}
