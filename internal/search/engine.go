// Package search implements the query engine: a free-text query is
// tokenized with the same stop-word set used at indexing time, and the
// postings of every recognised term are unioned into a deduplicated set of
// matching document identifiers.
package search

import (
	"context"
	"log/slog"
	"sort"

	"docsearch/internal/index"
	"docsearch/internal/index/tokenizer"
)

// Result is the outcome of one query execution. Terms holds the normalised
// query terms in order of appearance, Matches holds up to limit document
// identifiers in ascending order, and TotalHits always counts the full union.
type Result struct {
	Query     string         `json:"query"`
	Terms     []string       `json:"terms,omitempty"`
	TotalHits int            `json:"total_hits"`
	Matches   []string       `json:"matches"`
	TermStats map[string]int `json:"term_stats,omitempty"`
}

// Engine executes queries against an immutable index. It holds no state of
// its own and is safe for concurrent use.
type Engine struct {
	idx    *index.Index
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

// NewEngine creates an Engine over the given index and tokenizer. The
// tokenizer must be configured with the same stop-word set the index was
// built with.
func NewEngine(idx *index.Index, tok *tokenizer.Tokenizer) *Engine {
	return &Engine{
		idx:    idx,
		tok:    tok,
		logger: slog.Default().With("component", "query-engine"),
	}
}

// Execute tokenizes the query and returns the union of postings across all
// its terms. Terms absent from the index contribute nothing; a query with
// no recognised terms returns an empty result. Execution is deterministic
// and never fails for well-typed input.
func (e *Engine) Execute(ctx context.Context, query string, limit int) (*Result, error) {
	terms := e.tok.Tokenize(query)
	if len(terms) == 0 {
		return &Result{Query: query, Terms: terms, Matches: []string{}}, nil
	}

	matched := make(map[string]struct{})
	termStats := make(map[string]int)
	for _, term := range terms {
		postings := e.idx.Lookup(term)
		if len(postings) == 0 {
			continue
		}
		termStats[term] = len(postings)
		for _, docID := range postings {
			matched[docID] = struct{}{}
		}
	}

	matches := make([]string, 0, len(matched))
	for docID := range matched {
		matches = append(matches, docID)
	}
	sort.Strings(matches)

	totalHits := len(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	e.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"total_hits", totalHits,
		"returned", len(matches),
	)
	return &Result{
		Query:     query,
		Terms:     terms,
		TotalHits: totalHits,
		Matches:   matches,
		TermStats: termStats,
	}, nil
}
