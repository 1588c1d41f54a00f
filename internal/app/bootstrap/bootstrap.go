package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"threedots/comments/internal/access"
	"threedots/comments/internal/comments"
	"threedots/comments/internal/config"
	"threedots/comments/internal/db"
	apphttp "threedots/comments/internal/http"
	"threedots/comments/internal/migrations"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	Service    comments.Service
	HTTPServer *apphttp.Server
	Database   *gorm.DB
	Cleanup    func() error
}

// Build opens and migrates the store, then composes the service and HTTP layers.
// Migration finishes before the HTTP server exists.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	gormDB, err := db.Open(db.Options{Path: deps.Config.DBPath, Logger: deps.Logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(gormDB); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := migrations.Migrate(ctx, gormDB, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running migrations"))
	}

	repo, err := comments.NewRepository(gormDB, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating comment repository"))
	}

	service, err := comments.NewService(repo, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating comment service"))
	}

	hosts := access.DefaultHosts
	if len(deps.Config.AllowedOrigins) > 0 {
		hosts = deps.Config.AllowedOrigins
	}
	policy := access.NewPolicy(hosts, deps.Config.Development())

	if deps.Logger != nil {
		deps.Logger.WithFields(logrus.Fields{
			"hosts":     hosts,
			"allow_any": deps.Config.Development(),
		}).Info("origin policy configured")
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Service:   service,
		Policy:    policy,
		Database:  gormDB,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		return db.Close(gormDB)
	}

	return Result{
		Service:    service,
		HTTPServer: httpServer,
		Database:   gormDB,
		Cleanup:    cleanup,
	}, nil
}
