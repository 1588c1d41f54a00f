package comments

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for pages and comments.
type Repository interface {
	EnsurePage(ctx context.Context, url string) (int64, error)
	InsertComment(ctx context.Context, author, content string, pageID int64) (*Comment, error)
	ListComments(ctx context.Context, pageURL string) ([]Comment, error)
}

// GormRepository persists comments using a Gorm database connection. The
// schema must already be migrated.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

var _ Repository = (*GormRepository)(nil)

// ErrPageNotFound is returned when a comment references a page id that does not exist.
var ErrPageNotFound = eris.New("page not found")

// EnsurePage returns the id of the page for url, creating it when missing.
// Concurrent callers for the same URL converge on one row through the unique
// constraint on pages.url.
func (r *GormRepository) EnsurePage(ctx context.Context, url string) (int64, error) {
	canonical := CanonicalURL(url)
	if canonical == "" {
		return 0, eris.New("page url is required")
	}

	fields := logrus.Fields{"page_url": canonical}

	err := r.db.WithContext(ctx).
		Exec("INSERT INTO pages (url) VALUES (?) ON CONFLICT(url) DO NOTHING", canonical).
		Error
	if err != nil {
		r.logError(fields, err, "inserting page")
		return 0, eris.Wrapf(err, "inserting page: %s", canonical)
	}

	page, err := r.findPage(ctx, canonical)
	if err != nil {
		r.logError(fields, err, "reading page after insert")
		return 0, eris.Wrapf(err, "reading page: %s", canonical)
	}
	if page == nil {
		err := eris.Errorf("page %s missing after insert", canonical)
		r.logError(fields, err, "reading page after insert")
		return 0, err
	}

	return page.ID, nil
}

// InsertComment stores a comment for the page, assigning its id and creation
// date, and returns the stored comment.
func (r *GormRepository) InsertComment(ctx context.Context, author, content string, pageID int64) (*Comment, error) {
	comment := &Comment{
		ID:      r.newID(),
		Author:  author,
		Date:    r.now().UTC().Truncate(time.Microsecond),
		Content: content,
	}

	fields := logrus.Fields{"page_id": pageID, "comment_id": comment.ID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var url string
		err := tx.Raw("SELECT url FROM pages WHERE id = ?", pageID).Row().Scan(&url)
		if eris.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrPageNotFound, "page id %d", pageID)
		}
		if err != nil {
			return eris.Wrap(err, "looking up page url")
		}
		comment.PageURL = url

		insert := "INSERT INTO comments (id, date, author, content, page_id) VALUES (?, ?, ?, ?, ?)"
		if err := tx.Exec(insert, comment.ID, formatDate(comment.Date), comment.Author, comment.Content, pageID).Error; err != nil {
			return eris.Wrap(err, "inserting comment row")
		}

		return nil
	})
	if err != nil {
		r.logError(fields, err, "inserting comment")
		return nil, eris.Wrapf(err, "inserting comment for page %d", pageID)
	}

	return comment, nil
}

// ListComments returns the comments of the page in creation order. A page that
// has never been commented on yields an empty slice.
func (r *GormRepository) ListComments(ctx context.Context, pageURL string) ([]Comment, error) {
	canonical := CanonicalURL(pageURL)
	if canonical == "" {
		return nil, eris.New("page url is required")
	}

	fields := logrus.Fields{"page_url": canonical}

	rows, err := r.db.WithContext(ctx).Raw(`SELECT c.id, c.author, c.date, c.content, p.url
FROM comments c
JOIN pages p ON p.id = c.page_id
WHERE p.url = ?
ORDER BY c.date, c.rowid`, canonical).Rows()
	if err != nil {
		r.logError(fields, err, "querying comments")
		return nil, eris.Wrapf(err, "querying comments: %s", canonical)
	}
	defer rows.Close()

	results := []Comment{}
	for rows.Next() {
		comment, scanErr := scanComment(rows)
		if scanErr != nil {
			r.logError(fields, scanErr, "scanning comment row")
			return nil, eris.Wrap(scanErr, "scanning comment row")
		}
		results = append(results, comment)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		r.logError(fields, rowsErr, "iterating comment rows")
		return nil, eris.Wrap(rowsErr, "iterating comment rows")
	}

	return results, nil
}

func (r *GormRepository) findPage(ctx context.Context, canonical string) (*Page, error) {
	row := r.db.WithContext(ctx).Raw("SELECT id, url FROM pages WHERE url = ?", canonical).Row()
	page, err := scanPage(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPage reads the columns id, url.
func scanPage(row rowScanner) (*Page, error) {
	var page Page
	if err := row.Scan(&page.ID, &page.URL); err != nil {
		return nil, err
	}
	return &page, nil
}

// scanComment reads the columns id, author, date, content, page url.
func scanComment(row rowScanner) (Comment, error) {
	var (
		id      sql.NullString
		comment Comment
		date    string
	)

	if err := row.Scan(&id, &comment.Author, &date, &comment.Content, &comment.PageURL); err != nil {
		return Comment{}, err
	}

	if !id.Valid || id.String == "" {
		return Comment{}, eris.New("comment row has no id")
	}
	comment.ID = id.String

	parsed, err := parseDate(date)
	if err != nil {
		return Comment{}, err
	}
	comment.Date = parsed

	return comment, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
