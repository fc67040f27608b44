package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips combining accents so "Até" and "ate" compare
// equal. A transform chain keeps state, so one is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// foldWords splits a configured phrase into folded words.
func foldWords(phrase string) []string {
	var words []string
	for _, tok := range tokenize(phrase) {
		if tok.kind == tokWord {
			words = append(words, tok.folded)
		}
	}
	return words
}
