package sanitize

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind declares how a comment body was authored.
type Kind int

const (
	// Plain is free text that must be escaped before display.
	Plain Kind = iota
	// HTML is caller-supplied markup that must be narrowed to a safe subset.
	HTML
)

// Integer codes used by the historical comments.content_type column.
const (
	plainCode int64 = 0
	htmlCode  int64 = 1
)

// ParseKind maps the wire representation ("plain" or "html") to a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "plain":
		return Plain, nil
	case "html":
		return HTML, nil
	default:
		return 0, eris.Errorf("unknown content type: %q", value)
	}
}

// KindFromCode maps a stored content_type code to a Kind.
func KindFromCode(code int64) (Kind, error) {
	switch code {
	case plainCode:
		return Plain, nil
	case htmlCode:
		return HTML, nil
	default:
		return 0, eris.Errorf("unknown content type code: %d", code)
	}
}

// Code returns the integer stored for the kind in the content_type column.
// Undeclared kinds map to -1, which KindFromCode rejects.
func (k Kind) Code() int64 {
	switch k {
	case Plain:
		return plainCode
	case HTML:
		return htmlCode
	default:
		return -1
	}
}

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case HTML:
		return "html"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k == Plain || k == HTML
}
