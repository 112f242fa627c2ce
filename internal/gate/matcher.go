package gate

import (
	"strings"
)

// Matcher decides whether a parent scope item and a child's text talk
// about the same thing. The default is a best-effort keyword heuristic;
// it is an interface so a stronger matcher can be swapped in without
// touching the gate.
type Matcher interface {
	Match(scopeItem, childText string) bool
}

// KeywordMatcher matches when at least MinShared significant tokens
// appear in both texts.
type KeywordMatcher struct {
	// MinShared is the number of shared tokens required for a match.
	// Zero means the default of 2.
	MinShared int
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "can": true, "all": true, "not": true,
	"its": true, "has": true, "have": true, "will": true, "must": true,
	"should": true, "from": true, "into": true, "when": true, "any": true,
	"per": true, "via": true, "each": true, "their": true, "than": true,
	"then": true, "them": true, "also": true, "only": true, "over": true,
	"such": true, "able": true, "being": true, "using": true, "used": true,
	"user": true, "users": true, "system": true, "support": true,
}

// Match implements Matcher.
func (m KeywordMatcher) Match(scopeItem, childText string) bool {
	min := m.MinShared
	if min <= 0 {
		min = 2
	}

	scope := tokenize(scopeItem)
	if len(scope) == 0 {
		return false
	}
	// Short bullets can't clear the default bar; require all their
	// tokens instead.
	if len(scope) < min {
		min = len(scope)
	}

	child := tokenize(childText)
	shared := 0
	for token := range scope {
		if child[token] {
			shared++
			if shared >= min {
				return true
			}
		}
	}
	return false
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, raw := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(raw) < 3 || stopwords[raw] {
			continue
		}
		tokens[normalize(raw)] = true
	}
	return tokens
}

// normalize strips a trailing plural s so "tokens" matches "token".
func normalize(word string) string {
	if len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		return word[:len(word)-1]
	}
	return word
}
