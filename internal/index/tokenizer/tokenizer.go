// Package tokenizer provides text normalisation for indexing and querying.
// It lower-cases input, splits on non-alphanumeric boundaries, and removes
// stop-words. Normalisation is idempotent: tokenizing an already-tokenized
// term yields the same term.
package tokenizer

import (
	"strings"
	"unicode"
)

// DefaultStopWords is the built-in English stop-word list used when no
// custom list is configured.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Tokenizer splits raw text into normalised terms, dropping configured
// stop-words. The zero value is not usable; construct with New.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// New creates a Tokenizer with the given stop-word list. Stop words are
// themselves normalised, so mixed-case entries behave as expected. A nil or
// empty list selects DefaultStopWords.
func New(stopWords []string) *Tokenizer {
	if len(stopWords) == 0 {
		stopWords = DefaultStopWords
	}
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Tokenizer{stopWords: set}
}

// Tokenize breaks text into an ordered sequence of lowercased alphanumeric
// runs with stop-words removed. Any string is valid input; text with no
// qualifying runs yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := t.stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// IsStopWord reports whether the given term is filtered by this tokenizer.
func (t *Tokenizer) IsStopWord(term string) bool {
	_, ok := t.stopWords[strings.ToLower(term)]
	return ok
}
