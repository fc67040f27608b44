// Package extract detects form announcements in chat messages.
//
// An announcement follows a single template family:
//
//	NOVO FORMULÁRIO - <title> - responder até [dia] <D>/<M>
//
// Matching runs a tokenizer over normalized text and walks the template
// explicitly (trigger, separator, title, separator, due phrase, date), folding
// case and accents on keywords.
package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
)

// Config holds the phrases that make up the template.
type Config struct {
	Trigger    string   `yaml:"trigger"`
	DuePhrase  string   `yaml:"due_phrase"`
	DayWord    string   `yaml:"day_word"`
	CutPhrases []string `yaml:"cut_phrases"`
}

// DefaultConfig returns the phrases used by the announcement template.
func DefaultConfig() Config {
	return Config{
		Trigger:    "NOVO FORMULÁRIO",
		DuePhrase:  "responder até",
		DayWord:    "dia",
		CutPhrases: []string{"link"},
	}
}

// Candidate is the structured result of a successful match.
type Candidate struct {
	Title    string
	Deadline form.Date
}

// Extractor matches messages against the configured template.
type Extractor struct {
	trigger []string
	due     []string
	dayWord string
	cuts    [][]string
}

// New builds an Extractor from cfg.
func New(cfg Config) *Extractor {
	e := &Extractor{
		trigger: foldWords(cfg.Trigger),
		due:     foldWords(cfg.DuePhrase),
		dayWord: fold(strings.TrimSpace(cfg.DayWord)),
	}
	for _, p := range cfg.CutPhrases {
		if words := foldWords(p); len(words) > 0 {
			e.cuts = append(e.cuts, words)
		}
	}
	return e
}

// Normalize applies the extractor's normalization to text.
func (e *Extractor) Normalize(text string) string {
	return Normalize(text, e.cuts)
}

// Extract returns the announced title and deadline when text matches the
// template. The deadline takes the year of now, rolling to the next year when
// that date is already past.
func (e *Extractor) Extract(text string, now time.Time) (Candidate, bool) {
	s := e.Normalize(text)
	if s == "" {
		return Candidate{}, false
	}

	title, day, month, ok := e.match(s)
	if !ok {
		return Candidate{}, false
	}

	deadline, ok := resolveDeadline(day, month, now)
	if !ok {
		return Candidate{}, false
	}

	return Candidate{Title: title, Deadline: deadline}, true
}

func (e *Extractor) match(s string) (title string, day, month int, ok bool) {
	toks := tokenize(s)

	for start := range toks {
		i, found := matchWords(toks, start, e.trigger)
		if !found {
			continue
		}

		i = skipPunct(toks, i)
		if i >= len(toks) || toks[i].kind != tokHyphen {
			continue
		}
		i++
		if i >= len(toks) {
			continue
		}
		titleStart := toks[i].start

		for sep := i; sep < len(toks); sep++ {
			if toks[sep].kind != tokHyphen {
				continue
			}
			dateAt, ok := matchWords(toks, skipPunct(toks, sep+1), e.due)
			if !ok {
				continue
			}

			title := strings.TrimSpace(s[titleStart:toks[sep].start])
			if title == "" {
				break
			}

			day, month, ok := e.matchDate(toks, dateAt)
			if !ok {
				break
			}
			return title, day, month, true
		}
	}

	return "", 0, 0, false
}

// matchDate reads "[dia] D / M" starting at toks[i].
func (e *Extractor) matchDate(toks []token, i int) (day, month int, ok bool) {
	if e.dayWord != "" && i < len(toks) && toks[i].kind == tokWord && toks[i].folded == e.dayWord {
		i++
	}
	if i+2 >= len(toks) {
		return 0, 0, false
	}

	d, m, slash := toks[i], toks[i+2], toks[i+1]
	if !d.isNumber() || !m.isNumber() || slash.kind != tokSlash {
		return 0, 0, false
	}
	if len(d.text) > 2 || len(m.text) > 2 {
		return 0, 0, false
	}

	day, _ = strconv.Atoi(d.text)
	month, _ = strconv.Atoi(m.text)
	return day, month, true
}

// resolveDeadline pins day/month to the year of now, or the following year
// when the date is already past (or does not exist this year, e.g. 29/02).
func resolveDeadline(day, month int, now time.Time) (form.Date, bool) {
	today := form.DateOf(now)

	if d, err := form.NewDate(today.Year, time.Month(month), day); err == nil && !d.Before(today) {
		return d, true
	}
	if d, err := form.NewDate(today.Year+1, time.Month(month), day); err == nil {
		return d, true
	}
	return form.Date{}, false
}
