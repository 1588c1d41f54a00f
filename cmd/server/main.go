package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"threedots/comments/internal/app/bootstrap"
	"threedots/comments/internal/config"
	applog "threedots/comments/internal/log"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments-server",
		Short: "Serve and store blog comments",
		Long: `comments-server stores reader comments for the blog in SQLite and serves
them to the site's embedded comment widget over a small JSON API.

Configuration is read from the environment (and a .env file when present);
flags override the matching environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}

	cmd.Flags().String("host", "", "Address to bind (HOST)")
	cmd.Flags().Int("port", 0, "Port to listen on (PORT)")
	cmd.Flags().String("db", "", "Path to the SQLite database (DB_PATH)")
	cmd.Flags().String("tls-cert", "", "TLS certificate file (TLS_CERT_FILE)")
	cmd.Flags().String("tls-key", "", "TLS private key file (TLS_KEY_FILE)")
	cmd.Flags().String("log-file", "", "Append logs to this file instead of stderr (LOG_FILE)")

	return cmd
}

func run(cmd *cobra.Command) error {
	ctx := cmd.Context()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return eris.Wrap(err, "failure reading flags")
	}

	if err := cfg.Validate(); err != nil {
		return eris.Wrap(err, "invalid configuration")
	}

	output, closeOutput, err := applog.OpenOutput(cfg.LogFile)
	if err != nil {
		return eris.Wrap(err, "failure opening log output")
	}
	defer func() {
		_ = closeOutput()
	}()

	logger, err := applog.NewLogger(cfg.LogLevel, output)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cfg.SentryRelease,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    *cfg,
		Logger:    logger,
		SentryHub: sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "bootstrapping application")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	httpServer := &stdhttp.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           app.HTTPServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.WithFields(logrus.Fields{
		"addr": httpServer.Addr,
		"tls":  cfg.TLSEnabled(),
	}).Info("starting http server")

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return eris.Wrap(err, "http server error")
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "shutting down http server")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("http server shut down cleanly")
	return nil
}

// applyFlags overrides configuration with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"host":     &cfg.Host,
		"db":       &cfg.DBPath,
		"tls-cert": &cfg.TLSCertFile,
		"tls-key":  &cfg.TLSKeyFile,
		"log-file": &cfg.LogFile,
	}
	for name, target := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*target = value
	}

	if flags.Changed("port") {
		port, err := flags.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Port = port
	}

	return nil
}
