package normalize

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into core tokens and state tokens. A Tokenizer is
// immutable once built and safe for concurrent use.
type Tokenizer struct {
	stopwords map[string]struct{}
	state     map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given stopword and state lists.
func NewTokenizer(stopwords, stateWords []string) *Tokenizer {
	return &Tokenizer{
		stopwords: toSet(stopwords),
		state:     toSet(stateWords),
	}
}

// DefaultTokenizer uses the built-in stopwords and state vocabulary.
func DefaultTokenizer() *Tokenizer {
	return NewTokenizer(Stopwords, StateWords)
}

// Tokenize returns every token of text that is not a stopword, state
// tokens included, in input order.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, tok := range Tokenize(text) {
		if t.IsStopword(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Split separates text into core tokens (semantic content) and state tokens
// (cooking/processing qualifiers). Stopwords are dropped. Core tokens that
// are a single character or purely numeric are dropped too ("2% milk" has
// the single core token "milk").
func (t *Tokenizer) Split(text string) (core, state []string) {
	for _, tok := range Tokenize(text) {
		switch {
		case t.IsStopword(tok):
		case t.IsState(tok):
			state = append(state, tok)
		case len(tok) <= 1 || isNumericOnly(tok):
		default:
			core = append(core, tok)
		}
	}
	return core, state
}

// IsStopword reports whether the lowercased token is a stopword.
func (t *Tokenizer) IsStopword(token string) bool {
	_, ok := t.stopwords[token]
	return ok
}

// IsState reports whether the lowercased token is a state qualifier.
func (t *Tokenizer) IsState(token string) bool {
	_, ok := t.state[token]
	return ok
}

// isNumericOnly returns true if the token contains only digits.
func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(Lower(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
