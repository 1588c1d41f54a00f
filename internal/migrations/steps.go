package migrations

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"

	"threedots/comments/internal/sanitize"
)

const (
	createPagesTable = `CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	url TEXT UNIQUE NOT NULL
)`

	createCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
	date TEXT NOT NULL,
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	content_type INTEGER NOT NULL,
	page_id INTEGER NOT NULL REFERENCES pages(id)
)`

	createCommentsByPageIndex = `CREATE INDEX IF NOT EXISTS comments_by_page ON comments(page_id)`

	createCommentsIDIndex = `CREATE UNIQUE INDEX IF NOT EXISTS comments_id ON comments(id)`

	// Mirrors comments.CanonicalURL: trim surrounding spaces, then trailing slashes.
	legacyCanonicalURL = `rtrim(trim(page_url), '/')`
)

// createBaseSchema establishes the normalized pages/comments layout. Stores
// written before versioning kept the page URL inline on each comment; those
// rows are moved over with one page per canonical URL.
func createBaseSchema(_ context.Context, tx *gorm.DB, _ int) error {
	legacy, err := hasLegacyComments(tx)
	if err != nil {
		return err
	}

	if legacy {
		if err := tx.Exec("ALTER TABLE comments RENAME TO legacy_comments").Error; err != nil {
			return eris.Wrap(err, "renaming legacy comments table")
		}
	}

	for _, statement := range []string{createPagesTable, createCommentsTable, createCommentsByPageIndex} {
		if err := tx.Exec(statement).Error; err != nil {
			return eris.Wrap(err, "creating base schema")
		}
	}

	if !legacy {
		return nil
	}

	if err := tx.Exec("INSERT OR IGNORE INTO pages (url) SELECT DISTINCT " + legacyCanonicalURL + " FROM legacy_comments").Error; err != nil {
		return eris.Wrap(err, "creating pages for legacy comments")
	}

	// The oldest layout stored no kind at all; those bodies were plain text.
	kindColumn := "?"
	typed, err := hasColumn(tx, "legacy_comments", "content_type")
	if err != nil {
		return err
	}
	if typed {
		kindColumn = "COALESCE(l.content_type, ?)"
	}

	copyRows := `INSERT INTO comments (date, author, content, content_type, page_id)
SELECT l.date, l.author, l.content, ` + kindColumn + `, p.id
FROM legacy_comments l
JOIN pages p ON p.url = rtrim(trim(l.page_url), '/')
ORDER BY l.rowid`
	if err := tx.Exec(copyRows, sanitize.Plain.Code()).Error; err != nil {
		return eris.Wrap(err, "copying legacy comments")
	}

	if err := tx.Exec("DROP TABLE legacy_comments").Error; err != nil {
		return eris.Wrap(err, "dropping legacy comments table")
	}

	// A same-named index on the legacy table went away with it.
	if err := tx.Exec(createCommentsByPageIndex).Error; err != nil {
		return eris.Wrap(err, "recreating comments_by_page index")
	}

	return nil
}

func hasLegacyComments(tx *gorm.DB) (bool, error) {
	exists, err := hasTable(tx, "comments")
	if err != nil || !exists {
		return false, err
	}
	return hasColumn(tx, "comments", "page_url")
}

// dropContentType folds the content kind into the stored markup and removes
// the column. Plain rows are rendered the way the sanitizer renders plain
// input today; HTML rows were stored sanitized already.
func dropContentType(_ context.Context, tx *gorm.DB, _ int) error {
	present, err := hasColumn(tx, "comments", "content_type")
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	var codes []int64
	if err := tx.Raw("SELECT DISTINCT content_type FROM comments").Scan(&codes).Error; err != nil {
		return eris.Wrap(err, "reading stored content types")
	}
	for _, code := range codes {
		if _, err := sanitize.KindFromCode(code); err != nil {
			return eris.Wrap(err, "validating stored content types")
		}
	}

	type plainRow struct {
		RowID   int64
		Content string
	}

	var rows []plainRow
	err = tx.Raw("SELECT rowid AS row_id, content FROM comments WHERE content_type = ?", sanitize.Plain.Code()).
		Scan(&rows).Error
	if err != nil {
		return eris.Wrap(err, "reading plain comments")
	}

	for _, row := range rows {
		rendered := sanitize.Render(row.Content, sanitize.Plain)
		if err := tx.Exec("UPDATE comments SET content = ? WHERE rowid = ?", rendered, row.RowID).Error; err != nil {
			return eris.Wrapf(err, "folding plain comment %d", row.RowID)
		}
	}

	if err := tx.Exec("ALTER TABLE comments DROP COLUMN content_type").Error; err != nil {
		return eris.Wrap(err, "dropping content_type column")
	}

	return nil
}

// addCommentIdentifiers gives every comment a stable external id. New rows get
// theirs from the store; existing rows are backfilled here.
func addCommentIdentifiers(_ context.Context, tx *gorm.DB, _ int) error {
	present, err := hasColumn(tx, "comments", "id")
	if err != nil {
		return err
	}

	if !present {
		if err := tx.Exec("ALTER TABLE comments ADD COLUMN id TEXT").Error; err != nil {
			return eris.Wrap(err, "adding comments.id column")
		}
	}

	if err := tx.Exec(createCommentsIDIndex).Error; err != nil {
		return eris.Wrap(err, "creating comments_id index")
	}

	var rowIDs []int64
	if err := tx.Raw("SELECT rowid FROM comments WHERE id IS NULL").Scan(&rowIDs).Error; err != nil {
		return eris.Wrap(err, "listing comments without id")
	}

	for _, rowID := range rowIDs {
		if err := tx.Exec("UPDATE comments SET id = ? WHERE rowid = ?", uuid.NewString(), rowID).Error; err != nil {
			return eris.Wrapf(err, "backfilling id for comment %d", rowID)
		}
	}

	return nil
}
