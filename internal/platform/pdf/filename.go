package pdf

import (
	"strings"
	"time"
	"unicode"
)

// Filename builds "<kind>-<slug(name)>-<YYYY-MM-DD>.pdf".
func Filename(kind, name string, date time.Time) string {
	return Slug(kind) + "-" + Slug(name) + "-" + date.Format("2006-01-02") + ".pdf"
}

// Slug lowercases s and joins its letter and digit runs with hyphens.
func Slug(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
