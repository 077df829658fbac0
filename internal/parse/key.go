package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics ("Montréal" -> "Montreal").
func Fold(s string) string {
	// Chained transformers carry buffers, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key lower-cases, folds accents and drops everything except ASCII letters
// and digits. It is the comparison key for column headers, aliases and city
// names: "Amount spent (USD)" -> "amountspentusd", "Washington DC" -> "washingtondc".
func Key(s string) string {
	folded := strings.ToLower(Fold(s))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
