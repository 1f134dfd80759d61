// Package sanitize cleans user-provided display text before it is stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
	)
)

// StripHTML removes HTML tags, including ones hidden behind common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Name sanitizes a single-line label such as an account name or a deal
// title: markup is stripped and runs of whitespace collapse to one space.
// An input made only of markup or blanks becomes "".
func Name(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}
