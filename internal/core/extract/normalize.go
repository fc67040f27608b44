package extract

import "strings"

// Normalize prepares raw chat text for matching: link markup is replaced by
// its label (or dropped), emphasis markers are removed, whitespace runs are
// collapsed and everything from the first cut phrase onwards is discarded.
func Normalize(text string, cutPhrases [][]string) string {
	s := replaceLinks(text)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '~':
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if cut := cutIndex(s, cutPhrases); cut >= 0 {
		s = s[:cut]
	}

	return strings.TrimSpace(s)
}

// replaceLinks rewrites <url|label> to label and drops bare <url> markup.
func replaceLinks(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for {
		open := strings.IndexByte(s, '<')
		if open < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[open:], '>')
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += open

		b.WriteString(s[:open])
		inner := s[open+1 : end]
		if bar := strings.IndexByte(inner, '|'); bar >= 0 {
			b.WriteString(inner[bar+1:])
		}
		s = s[end+1:]
	}

	return b.String()
}

// cutIndex returns the byte offset of the earliest cut phrase in s, matched
// on whole words ignoring case and accents, or -1.
func cutIndex(s string, cutPhrases [][]string) int {
	if len(cutPhrases) == 0 {
		return -1
	}

	toks := tokenize(s)
	for i := range toks {
		for _, phrase := range cutPhrases {
			if _, ok := matchWords(toks, i, phrase); ok {
				return toks[i].start
			}
		}
	}
	return -1
}
