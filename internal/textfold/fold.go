// Package textfold normalizes user text for case- and accent-insensitive matching.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips combining marks ("sí" → "si", "mañana" → "manana")
// and trims surrounding whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// Token folds s and drops leading/trailing punctuation, so "¡Sí!" and "ok."
// compare equal to "si" and "ok".
func Token(s string) string {
	return strings.TrimFunc(Fold(s), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
}

// Set is a folded lookup table of words.
type Set map[string]struct{}

// NewSet builds a Set from raw words, folding each one.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		if f := Token(w); f != "" {
			s[f] = struct{}{}
		}
	}
	return s
}

// Has reports whether text, folded as a single token, is in the set.
func (s Set) Has(text string) bool {
	_, ok := s[Token(text)]
	return ok
}
