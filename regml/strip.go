package regml

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	wsRun       = regexp.MustCompile(`\s+`)
)

// StripTags reduces a markup fragment to plain text: every tag is removed,
// character entities are resolved, and whitespace runs collapse to single
// spaces. Total — any input yields a (possibly empty) string.
func StripTags(raw string) string {
	text := stripPolicy.Sanitize(raw)
	text = html.UnescapeString(text)
	return strings.TrimSpace(wsRun.ReplaceAllString(text, " "))
}
