// Package sanitize narrows untrusted comment bodies to markup that is safe to
// show to other readers.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// policy is the allow-list applied to HTML comments. Image loaders are not on
// it, so nothing in a comment can trigger an unverified fetch.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"b", "br", "code", "del", "em", "h3", "h4", "h5", "h6", "hr", "i", "ins",
		"kbd", "li", "ol", "p", "pre", "s", "small", "strong", "sub", "sup", "u", "ul",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("cite").OnElements("blockquote", "q")
	p.AllowAttrs("title").OnElements("abbr")

	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	// Embedded documents whose text is never meant to be read inline.
	p.SkipElementsContent("svg", "math", "template", "audio", "video", "canvas", "picture", "select", "textarea")

	return p
}

// Render converts raw text of the declared kind into safe markup. It never
// fails: hostile or malformed input only produces narrower output. Invalid
// UTF-8 is replaced before either path sees it.
func Render(raw string, kind Kind) string {
	raw = strings.ToValidUTF8(raw, "\uFFFD")

	if kind == HTML {
		return renderHTML(raw)
	}
	return renderPlain(raw)
}

func renderPlain(raw string) string {
	return "<p>" + html.EscapeString(raw) + "</p>"
}

func renderHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	return balance(policy.Sanitize(raw))
}

// balance closes elements left open by the author so a comment cannot
// restyle the markup that follows it on the page.
func balance(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return renderPlain(fragment)
	}

	var builder strings.Builder
	for _, node := range nodes {
		if err := html.Render(&builder, node); err != nil {
			return renderPlain(fragment)
		}
	}

	return builder.String()
}
