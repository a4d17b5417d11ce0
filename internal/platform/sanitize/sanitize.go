// Package sanitize cleans user supplied text before it is stored or
// rendered.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richOnce   sync.Once
	richPolicy *bluemonday.Policy

	plainOnce   sync.Once
	plainPolicy *bluemonday.Policy
)

// RichText keeps basic formatting (emphasis, lists, links) and strips
// everything else, including scripts, styles and event handlers.
func RichText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(richSanitizer().Sanitize(trimmed))
}

// PlainText removes all markup.
func PlainText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(plainSanitizer().Sanitize(trimmed))
}

func richSanitizer() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.StrictPolicy()
		p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "ul", "ol", "li", "span")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("https", "http", "mailto")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		richPolicy = p
	})
	return richPolicy
}

func plainSanitizer() *bluemonday.Policy {
	plainOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	return plainPolicy
}
