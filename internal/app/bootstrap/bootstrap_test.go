package bootstrap

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threedots/comments/internal/comments"
	"threedots/comments/internal/config"
	"threedots/comments/internal/migrations"
	"threedots/comments/internal/sanitize"
)

func TestBuildMigratesAndServes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "comments.db")

	result, err := Build(ctx, Dependencies{
		Config: config.Config{DBPath: path, Environment: "production"},
		Logger: silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })

	version, err := migrations.Version(ctx, result.Database)
	require.NoError(t, err)
	assert.Equal(t, migrations.Latest, version)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = result.Service.Post(ctx, comments.NewComment{
		Author:  "Ana",
		Content: "hello",
		Kind:    sanitize.Plain,
		PageURL: "https://threedots.ca/post/",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/comments?page_url=https://threedots.ca/post", nil)
	req.Header.Set("Origin", "https://threedots.ca")
	rec := httptest.NewRecorder()
	result.HTTPServer.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "https://threedots.ca", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Body.String(), "<p>hello</p>"), rec.Body.String())
}

func TestBuildUsesConfiguredOrigins(t *testing.T) {
	t.Parallel()

	result, err := Build(context.Background(), Dependencies{
		Config: config.Config{
			DBPath:         filepath.Join(t.TempDir(), "comments.db"),
			AllowedOrigins: []string{"example.org"},
		},
		Logger: silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })

	for origin, want := range map[string]string{
		"https://blog.example.org": "https://blog.example.org",
		"https://threedots.ca":     "",
	} {
		req := httptest.NewRequest("GET", "/comments?page_url=https://example.org/post", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		result.HTTPServer.ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestBuildFailsOnNewerSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "comments.db")

	first, err := Build(ctx, Dependencies{Config: config.Config{DBPath: path}, Logger: silentLogger()})
	require.NoError(t, err)
	require.NoError(t, first.Database.Exec("PRAGMA user_version = 99").Error)
	require.NoError(t, first.Cleanup())

	_, err = Build(ctx, Dependencies{Config: config.Config{DBPath: path}, Logger: silentLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running migrations")
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
