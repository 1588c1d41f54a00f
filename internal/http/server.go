package http

import (
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"threedots/comments/internal/access"
	"threedots/comments/internal/comments"
)

// maxBodyBytes caps POST /comments payloads.
const maxBodyBytes = 64 * 1024

// Options configures the HTTP server wiring.
type Options struct {
	Service   comments.Service
	Policy    *access.Policy
	Database  *gorm.DB
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Server wires the HTTP transport layer via Huma.
type Server struct {
	api      huma.API
	mux      *stdhttp.ServeMux
	comments comments.Service
	policy   *access.Policy
	logger   *logrus.Logger
	sentry   *sentry.Hub
	db       *gorm.DB
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, eris.New("comment service is required")
	}
	if opts.Policy == nil {
		return nil, eris.New("origin policy is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Comments", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:      api,
		mux:      mux,
		comments: opts.Service,
		policy:   opts.Policy,
		logger:   opts.Logger,
		sentry:   opts.SentryHub,
		db:       opts.Database,
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.corsMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerListCommentsRoute()
	s.registerPostCommentRoute()
	s.registerPreflightRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
