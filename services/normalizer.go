package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stopWords are dropped from normalized text.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Normalize canonicalizes free text for comparison: lower-cased, every
// character other than a letter or number treated as a separator, stop words
// removed, single spaces between the remaining words. Normalize is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// A Caser carries state, so one is made per call.
	text = cases.Lower(language.Und).String(text)

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
