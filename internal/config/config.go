package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the comments server.
type Config struct {
	Host           string
	Port           int
	DBPath         string
	TLSCertFile    string
	TLSKeyFile     string
	LogLevel       string
	LogFile        string
	SentryDSN      string
	SentryRelease  string
	Environment    string
	AllowedOrigins []string
	ShutdownGrace  time.Duration
}

const (
	defaultHost          = "127.0.0.1"
	defaultPort          = 4000
	defaultDBPath        = "./data/comments.db"
	defaultLogLevel      = "info"
	defaultEnvironment   = "production"
	defaultShutdownGrace = 10 * time.Second

	// EnvironmentDevelopment relaxes the origin policy to accept any caller.
	EnvironmentDevelopment = "development"
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		Host:          getEnv("HOST", defaultHost),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		TLSCertFile:   os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:    os.Getenv("TLS_KEY_FILE"),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFile:       os.Getenv("LOG_FILE"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		SentryRelease: os.Getenv("SENTRY_RELEASE"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	portValue := getEnv("PORT", strconv.Itoa(defaultPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid PORT value: %s", portValue)
	}
	cfg.Port = port

	if graceValue := os.Getenv("SHUTDOWN_GRACE"); graceValue != "" {
		grace, err := time.ParseDuration(graceValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid SHUTDOWN_GRACE value: %s", graceValue)
		}
		cfg.ShutdownGrace = grace
	}

	return cfg, nil
}

// Validate checks values that may have been overridden after Load.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return eris.Errorf("port %d out of range", c.Port)
	}

	if strings.TrimSpace(c.DBPath) == "" {
		return eris.New("database path is required")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return eris.New("TLS requires both a certificate and a key file")
	}

	if c.ShutdownGrace <= 0 {
		return eris.New("shutdown grace must be positive")
	}

	return nil
}

// TLSEnabled reports whether the server should terminate TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Development reports whether the server runs in development mode.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, EnvironmentDevelopment)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
