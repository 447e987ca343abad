// Package normalize turns raw food descriptions and ingredient strings into
// deterministic token sequences and slugs. Every function here is pure: the
// same input always yields the same output, independent of locale.
package normalize

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Version identifies the tokenizer behaviour. It is hashed into every
// matching run so results from different tokenizers are never mixed.
const Version = "tok-v1"

// Fold decodes HTML entities, applies canonical decomposition, drops
// combining marks and recomposes ("Jalapeño" -> "Jalapeno"). Compatibility
// characters such as "½" and "ﬁ" are kept as they are. Case is preserved.
func Fold(text string) string {
	if text == "" {
		return ""
	}
	// Scraped text is sometimes entity-encoded twice ("&amp;amp;").
	for i := 0; i < 3; i++ {
		decoded := html.UnescapeString(text)
		if decoded == text {
			break
		}
		text = decoded
	}
	// transform chains carry state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Lower folds ASCII letters only.
func Lower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Tokenize folds and lowercases text, then splits it on every run of
// characters outside [a-z0-9]. Empty tokens are dropped; nothing else is.
func Tokenize(text string) []string {
	return strings.FieldsFunc(Lower(Fold(text)), func(r rune) bool {
		return !isAlnum(r)
	})
}

// Slugify lowercases s and replaces each run of characters outside [a-z0-9]
// with a single hyphen. Leading and trailing hyphens are trimmed, so
// Slugify("") and Slugify("!!") are both "".
func Slugify(s string) string {
	return strings.Join(Tokenize(s), "-")
}

// Stem reduces an already-lowercased token to its porter2 stem.
// "tomatoes" and "tomato" share a stem; digits pass through unchanged.
func Stem(token string) string {
	if len(token) <= 2 {
		return token
	}
	return porter2.Stem(token)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
