package comments

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"threedots/comments/internal/sanitize"
)

// Page identifies a commentable resource by its canonical URL.
type Page struct {
	ID  int64
	URL string
}

// Comment is a single stored remark. Content is always sanitized markup.
type Comment struct {
	ID      string
	Author  string
	Date    time.Time
	Content string
	PageURL string
}

// NewComment carries a caller-submitted comment before sanitization.
type NewComment struct {
	Author  string
	Content string
	Kind    sanitize.Kind
	PageURL string
}

// dateLayout is fixed width so that stored dates sort chronologically as text.
const dateLayout = "2006-01-02T15:04:05.000000Z"

// Layouts accepted when reading dates written by earlier releases.
var legacyDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// CanonicalURL trims surrounding whitespace and strips trailing slashes so that
// "https://a.example/post/" and "https://a.example/post" name the same page.
func CanonicalURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed.UTC(), nil
	}

	for _, layout := range legacyDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}

	return time.Time{}, eris.Errorf("unrecognised comment date: %q", value)
}
