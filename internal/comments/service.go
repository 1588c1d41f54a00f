package comments

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"threedots/comments/internal/sanitize"
)

// Service is the ingestion pipeline between the HTTP boundary and the store.
type Service interface {
	Post(ctx context.Context, input NewComment) (*Comment, error)
	List(ctx context.Context, pageURL string) ([]Comment, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// ErrInvalidComment marks input rejected before it reaches the store.
var ErrInvalidComment = eris.New("invalid comment")

// NewService wires the comment service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("comment repository is required")
	}

	return &service{
		repo:      repo,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

// Post sanitizes the submitted content and stores it against its page.
func (s *service) Post(ctx context.Context, input NewComment) (*Comment, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	pageURL := CanonicalURL(input.PageURL)
	fields := logrus.Fields{"page_url": pageURL, "content_type": input.Kind.String()}

	content := sanitize.Render(input.Content, input.Kind)

	pageID, err := s.repo.EnsurePage(ctx, pageURL)
	if err != nil {
		s.recordError(fields, err, "ensuring page for comment")
		return nil, eris.Wrapf(err, "ensuring page: %s", pageURL)
	}

	comment, err := s.repo.InsertComment(ctx, input.Author, content, pageID)
	if err != nil {
		s.recordError(fields, err, "storing comment")
		return nil, eris.Wrapf(err, "storing comment for page: %s", pageURL)
	}

	if s.logger != nil {
		s.logger.WithFields(fields).WithField("comment_id", comment.ID).Info("comment stored")
	}

	return comment, nil
}

// List returns the stored comments for a page.
func (s *service) List(ctx context.Context, pageURL string) ([]Comment, error) {
	canonical := CanonicalURL(pageURL)
	if canonical == "" {
		return nil, eris.Wrap(ErrInvalidComment, "page url is required")
	}

	comments, err := s.repo.ListComments(ctx, canonical)
	if err != nil {
		s.recordError(logrus.Fields{"page_url": canonical}, err, "listing comments")
		return nil, eris.Wrapf(err, "listing comments: %s", canonical)
	}

	return comments, nil
}

func validate(input NewComment) error {
	if strings.TrimSpace(input.Author) == "" {
		return eris.Wrap(ErrInvalidComment, "author is required")
	}
	if CanonicalURL(input.PageURL) == "" {
		return eris.Wrap(ErrInvalidComment, "page url is required")
	}
	if !input.Kind.Valid() {
		return eris.Wrapf(ErrInvalidComment, "unsupported content type %d", int(input.Kind))
	}
	return nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
