package index

import (
	"sort"
	"strings"
	"unicode"
)

// Words too common to carry any search meaning.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "an": {}, "and": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {},
	"by": {}, "can": {}, "do": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "more": {}, "new": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "out": {}, "over": {},
	"so": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"this": {}, "to": {}, "up": {}, "was": {}, "we": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Tokenize splits free text into lowercase search tokens, dropping stop
// words and single characters, de-duplicating, and keeping intra-word
// punctuation that matters in this domain ("c++", "c#", "e-ink").
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		return r != '+' && r != '#' && r != '.' && r != '-'
	})
	seen := map[string]struct{}{}
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		seen[f] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
