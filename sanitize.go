package alttext

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRE        = regexp.MustCompile(`<[^<>]*>`)
	whitespaceRE = regexp.MustCompile(`\s+`)

	// Matching wrapping quote pairs, straight and curly.
	quotePairs = map[rune]rune{
		'"':  '"',
		'\'': '\'',
		'“':  '”', // “ ”
		'‘':  '’', // ‘ ’
	}
)

// Sanitize normalizes raw provider output: HTML entities are decoded,
// markup tags stripped, runs of whitespace (including newlines and tabs)
// collapsed to single spaces, and leading/trailing whitespace and
// wrapping quotes removed. Sanitizing already-sanitized text is a no-op.
func Sanitize(caption string) string {
	// Decoding can reveal further entities ("&amp;amp;") and stripping can
	// reassemble tags ("<a<b>>"), so run both to a fixpoint.
	s := caption
	for {
		next := tagRE.ReplaceAllString(html.UnescapeString(s), "")
		if next == s {
			break
		}
		s = next
	}
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trimWrappingQuotes(s)
	return strings.TrimSpace(s)
}

func trimWrappingQuotes(s string) string {
	for {
		runes := []rune(s)
		if len(runes) < 2 {
			return s
		}
		closer, ok := quotePairs[runes[0]]
		if !ok || runes[len(runes)-1] != closer {
			return s
		}
		s = strings.TrimSpace(string(runes[1 : len(runes)-1]))
	}
}
