package http

import (
	"context"
	stdhttp "net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"threedots/comments/internal/comments"
	"threedots/comments/internal/db"
	"threedots/comments/internal/sanitize"
)

const (
	commentsPath         = "/comments"
	internalErrorMessage = "internal server error"
	allowedMethods       = "GET, POST, OPTIONS"
	allowedHeaders       = "Content-Type"
	preflightMaxAge      = "86400"
)

type commentView struct {
	ID      string    `json:"id" doc:"Stable comment identifier"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date" doc:"Creation time in UTC"`
	Content string    `json:"content" doc:"Sanitized HTML"`
	PageURL string    `json:"page_url"`
}

type listCommentsInput struct {
	PageURL string `query:"page_url" required:"true" doc:"Page the comments belong to"`
}

type listCommentsResponse struct {
	Body []commentView
}

type postCommentInput struct {
	Body struct {
		Author      string `json:"author" maxLength:"200"`
		Content     string `json:"content" maxLength:"20000"`
		ContentType string `json:"content_type" enum:"plain,html" doc:"How content is interpreted before sanitizing"`
		PageURL     string `json:"page_url" maxLength:"2048"`
	}
}

type postCommentResponse struct {
	Body commentView
}

type preflightInput struct {
	RequestHeaders string `header:"Access-Control-Request-Headers"`
}

type preflightResponse struct {
	AllowMethods string `header:"Access-Control-Allow-Methods"`
	AllowHeaders string `header:"Access-Control-Allow-Headers"`
	MaxAge       string `header:"Access-Control-Max-Age"`
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerListCommentsRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-comments",
		Method:      stdhttp.MethodGet,
		Path:        commentsPath,
		Summary:     "List comments for a page",
		Errors:      []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.listCommentsHandler)
}

func (s *Server) registerPostCommentRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "post-comment",
		Method:        stdhttp.MethodPost,
		Path:          commentsPath,
		Summary:       "Store a new comment",
		DefaultStatus: stdhttp.StatusOK,
		MaxBodyBytes:  maxBodyBytes,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.postCommentHandler)
}

func (s *Server) registerPreflightRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "preflight-comments",
		Method:        stdhttp.MethodOptions,
		Path:          commentsPath,
		Summary:       "CORS preflight",
		DefaultStatus: stdhttp.StatusNoContent,
		Hidden:        true,
	}, s.preflightHandler)
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) listCommentsHandler(ctx context.Context, input *listCommentsInput) (*listCommentsResponse, error) {
	listed, err := s.comments.List(ctx, input.PageURL)
	if err != nil {
		return nil, s.classifyError(ctx, err, "listing comments", logrus.Fields{"page_url": input.PageURL})
	}

	views := make([]commentView, 0, len(listed))
	for _, comment := range listed {
		views = append(views, newCommentView(comment))
	}

	return &listCommentsResponse{Body: views}, nil
}

func (s *Server) postCommentHandler(ctx context.Context, input *postCommentInput) (*postCommentResponse, error) {
	kind, err := sanitize.ParseKind(input.Body.ContentType)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	stored, err := s.comments.Post(ctx, comments.NewComment{
		Author:  input.Body.Author,
		Content: input.Body.Content,
		Kind:    kind,
		PageURL: input.Body.PageURL,
	})
	if err != nil {
		return nil, s.classifyError(ctx, err, "posting comment", logrus.Fields{"page_url": input.Body.PageURL})
	}

	return &postCommentResponse{Body: newCommentView(*stored)}, nil
}

func (s *Server) preflightHandler(_ context.Context, input *preflightInput) (*preflightResponse, error) {
	return &preflightResponse{
		AllowMethods: allowedMethods,
		AllowHeaders: permittedRequestHeaders(input.RequestHeaders),
		MaxAge:       preflightMaxAge,
	}, nil
}

// permittedRequestHeaders answers a preflight with the requested headers the
// API accepts. Anything else is left out so the browser refuses the request.
func permittedRequestHeaders(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return allowedHeaders
	}

	accepted := strings.Split(allowedHeaders, ",")
	var granted []string
	for _, name := range strings.Split(requested, ",") {
		name = strings.TrimSpace(name)
		for _, allowed := range accepted {
			allowed = strings.TrimSpace(allowed)
			if strings.EqualFold(name, allowed) && !slices.Contains(granted, allowed) {
				granted = append(granted, allowed)
			}
		}
	}

	return strings.Join(granted, ", ")
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	return resp, nil
}

func newCommentView(comment comments.Comment) commentView {
	return commentView{
		ID:      comment.ID,
		Author:  comment.Author,
		Date:    comment.Date.UTC(),
		Content: comment.Content,
		PageURL: comment.PageURL,
	}
}

// classifyError maps service errors onto API errors. Anything that is not a
// validation failure is hidden behind one opaque message; the service has
// already reported it to Sentry.
func (s *Server) classifyError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	if eris.Is(err, comments.ErrInvalidComment) {
		return huma.Error400BadRequest(err.Error())
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error()).WithFields(fields)
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	return huma.Error500InternalServerError(internalErrorMessage)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
