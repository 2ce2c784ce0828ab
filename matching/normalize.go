// Package matching reconciles free-text game titles (usually proposed by an
// LLM) against the canonical catalog.
package matching

import (
	"strings"

	"github.com/gosimple/unidecode"
)

var leadingArticles = []string{"the", "a", "an"}

// Normalize reduces a title to its comparable form: transliterated to ASCII,
// lowercased, stripped of everything that is not a letter, digit or space,
// with whitespace runs collapsed and trimmed. Normalize is idempotent.
func Normalize(title string) string {
	ascii := strings.ToLower(unidecode.Unidecode(title))

	var b strings.Builder
	b.Grow(len(ascii))
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// StripArticles removes a single leading "the", "a" or "an" token from an
// already-normalized title. A title consisting only of the article is
// returned unchanged.
func StripArticles(title string) string {
	for _, article := range leadingArticles {
		if rest, ok := strings.CutPrefix(title, article+" "); ok && rest != "" {
			return rest
		}
	}
	return title
}

// canonical is Normalize followed by StripArticles.
func canonical(title string) string {
	return StripArticles(Normalize(title))
}

// SignificantWords splits a normalized title into words longer than two
// characters, preserving order.
func SignificantWords(normalized string) []string {
	var out []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}
