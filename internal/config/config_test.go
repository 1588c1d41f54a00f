package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "DB_PATH", "TLS_CERT_FILE", "TLS_KEY_FILE", "LOG_LEVEL", "LOG_FILE", "SENTRY_DSN", "SENTRY_RELEASE", "ENV", "ALLOWED_ORIGINS", "SHUTDOWN_GRACE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Host != defaultHost {
		t.Errorf("expected host %q, got %q", defaultHost, cfg.Host)
	}

	if cfg.Port != defaultPort {
		t.Errorf("expected port %d, got %d", defaultPort, cfg.Port)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.TLSEnabled() {
		t.Errorf("expected TLS disabled by default")
	}

	if cfg.Development() {
		t.Errorf("expected production mode by default")
	}

	if cfg.SentryRelease != "" {
		t.Errorf("expected no Sentry release by default, got %q", cfg.SentryRelease)
	}

	if cfg.AllowedOrigins != nil {
		t.Errorf("expected no allowed origins override, got %v", cfg.AllowedOrigins)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "8443")
	t.Setenv("DB_PATH", "/tmp/comments.db")
	t.Setenv("TLS_CERT_FILE", "/etc/tls/cert.pem")
	t.Setenv("TLS_KEY_FILE", "/etc/tls/key.pem")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "/var/log/comments.log")
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("SENTRY_RELEASE", "comments@1.4.0")
	t.Setenv("ENV", "Development")
	t.Setenv("ALLOWED_ORIGINS", " example.com, ,blog.example.org ")
	t.Setenv("SHUTDOWN_GRACE", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %q", cfg.Host)
	}

	if cfg.Port != 8443 {
		t.Errorf("expected port 8443, got %d", cfg.Port)
	}

	if cfg.DBPath != "/tmp/comments.db" {
		t.Errorf("expected DB path %q, got %q", "/tmp/comments.db", cfg.DBPath)
	}

	if !cfg.TLSEnabled() {
		t.Errorf("expected TLS enabled")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}

	if cfg.LogFile != "/var/log/comments.log" {
		t.Errorf("expected log file, got %q", cfg.LogFile)
	}

	if cfg.SentryDSN != "dsn" {
		t.Errorf("expected Sentry DSN dsn, got %q", cfg.SentryDSN)
	}

	if cfg.SentryRelease != "comments@1.4.0" {
		t.Errorf("expected Sentry release comments@1.4.0, got %q", cfg.SentryRelease)
	}

	if !cfg.Development() {
		t.Errorf("expected development mode for ENV=Development")
	}

	expectedOrigins := []string{"example.com", "blog.example.org"}
	if len(cfg.AllowedOrigins) != len(expectedOrigins) {
		t.Fatalf("expected %d origins, got %v", len(expectedOrigins), cfg.AllowedOrigins)
	}
	for i, origin := range cfg.AllowedOrigins {
		if origin != expectedOrigins[i] {
			t.Errorf("expected origin %q at index %d, got %q", expectedOrigins[i], i, origin)
		}
	}

	if cfg.ShutdownGrace != 3*time.Second {
		t.Errorf("expected shutdown grace 3s, got %s", cfg.ShutdownGrace)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "invalid")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid port, got nil")
	}

	if !strings.Contains(err.Error(), "invalid PORT value") {
		t.Fatalf("expected error to mention invalid PORT value, got %v", err)
	}
}

func TestLoadInvalidShutdownGrace(t *testing.T) {
	t.Setenv("SHUTDOWN_GRACE", "soon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid shutdown grace, got nil")
	}

	if !strings.Contains(err.Error(), "invalid SHUTDOWN_GRACE value") {
		t.Fatalf("expected error to mention invalid SHUTDOWN_GRACE value, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 4000, DBPath: "comments.db", ShutdownGrace: time.Second}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }, wantErr: "out of range"},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "out of range"},
		{name: "missing db path", mutate: func(c *Config) { c.DBPath = " " }, wantErr: "database path"},
		{name: "cert without key", mutate: func(c *Config) { c.TLSCertFile = "cert.pem" }, wantErr: "both a certificate and a key"},
		{name: "key without cert", mutate: func(c *Config) { c.TLSKeyFile = "key.pem" }, wantErr: "both a certificate and a key"},
		{name: "tls pair", mutate: func(c *Config) { c.TLSCertFile, c.TLSKeyFile = "cert.pem", "key.pem" }},
		{name: "zero grace", mutate: func(c *Config) { c.ShutdownGrace = 0 }, wantErr: "shutdown grace"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
