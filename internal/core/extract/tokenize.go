package extract

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokHyphen
	tokSlash
	tokPunct
)

// token is a lexical unit of normalized text. start and end are byte offsets
// into the source so segments can be cut out verbatim.
type token struct {
	kind   tokenKind
	text   string
	folded string
	start  int
	end    int
}

func (t token) isNumber() bool {
	if t.kind != tokWord || t.text == "" {
		return false
	}
	for _, r := range t.text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHyphen(r rune) bool {
	switch r {
	case '-', '‐', '‑', '–', '—':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// tokenize splits s into words, hyphen and slash separators and single-rune
// punctuation. Whitespace is skipped.
func tokenize(s string) []token {
	var toks []token

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])

		switch {
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r):
			j := i + size
			for j < len(s) {
				r2, size2 := utf8.DecodeRuneInString(s[j:])
				if !isWordRune(r2) {
					break
				}
				j += size2
			}
			toks = append(toks, token{kind: tokWord, text: s[i:j], folded: fold(s[i:j]), start: i, end: j})
			i = j
		default:
			kind := tokPunct
			switch {
			case isHyphen(r):
				kind = tokHyphen
			case r == '/':
				kind = tokSlash
			}
			toks = append(toks, token{kind: kind, text: s[i : i+size], folded: s[i : i+size], start: i, end: i + size})
			i += size
		}
	}

	return toks
}

// matchWords reports whether the word tokens starting at toks[i] spell words.
// It returns the index just past the match.
func matchWords(toks []token, i int, words []string) (int, bool) {
	if len(words) == 0 {
		return i, false
	}
	for _, w := range words {
		if i >= len(toks) || toks[i].kind != tokWord || toks[i].folded != w {
			return i, false
		}
		i++
	}
	return i, true
}

// skipPunct advances past punctuation tokens such as ':' or ','.
func skipPunct(toks []token, i int) int {
	for i < len(toks) && toks[i].kind == tokPunct {
		i++
	}
	return i
}
