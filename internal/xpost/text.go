package xpost

import (
	"strings"

	"github.com/rivo/uniseg"
)

const ellipsis = "…"

// Compose trims surrounding whitespace from message, joins it with link and
// shortens it so the result fits in limit user-perceived characters. The link
// is never cut. A limit of zero or less disables shortening but not trimming.
func Compose(message, link string, limit int) string {
	message = strings.TrimSpace(message)
	sep := ""
	if link != "" && message != "" {
		sep = "\n\n"
	}
	if limit <= 0 || uniseg.GraphemeClusterCount(message+sep+link) <= limit {
		return message + sep + link
	}

	budget := limit - uniseg.GraphemeClusterCount(sep+link) - uniseg.GraphemeClusterCount(ellipsis)
	if budget <= 0 {
		return link
	}
	return Truncate(message, budget) + ellipsis + sep + link
}

// Truncate returns the first n grapheme clusters of s, trimmed of trailing
// whitespace.
func Truncate(s string, n int) string {
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < n && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return strings.TrimRightFunc(b.String(), func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
}
