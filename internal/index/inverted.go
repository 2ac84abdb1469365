// Package index implements a boolean inverted index: a mapping from each
// normalised term to the sorted set of document identifiers containing it.
// The index is built once from a full document collection and is immutable
// afterwards, so any number of goroutines may query it concurrently without
// synchronisation.
package index

import (
	"sort"

	"docsearch/internal/index/tokenizer"
	apperrors "docsearch/pkg/errors"
)

// PostingList is a sorted list of document identifiers, one entry per
// document regardless of how often the term occurs in it.
type PostingList []string

// Index maps terms to the documents containing them. Occurrence counts and
// positions are not tracked.
type Index struct {
	postings map[string]PostingList
	docCount int
}

// Build tokenizes every document in the collection and constructs the
// inverted index in one pass. Document identifiers must be non-empty;
// duplicate identifiers cannot occur since the input is a map. An empty
// collection yields a valid, empty index.
func Build(docs map[string]string, tok *tokenizer.Tokenizer) (*Index, error) {
	postings := make(map[string]PostingList)
	for docID, text := range docs {
		if docID == "" {
			return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "document identifier must not be empty")
		}
		seen := make(map[string]struct{})
		for _, term := range tok.Tokenize(text) {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			postings[term] = append(postings[term], docID)
		}
	}
	for term := range postings {
		sort.Strings(postings[term])
	}
	return &Index{
		postings: postings,
		docCount: len(docs),
	}, nil
}

// Lookup returns the postings for an already-normalised term, or nil if the
// term is absent. The returned slice is shared and must not be modified.
func (ix *Index) Lookup(term string) PostingList {
	return ix.postings[term]
}

// HasTerm reports whether the term appears in at least one document.
func (ix *Index) HasTerm(term string) bool {
	_, ok := ix.postings[term]
	return ok
}

// Terms returns the number of distinct terms in the index.
func (ix *Index) Terms() int {
	return len(ix.postings)
}

// DocCount returns the number of documents the index was built from.
func (ix *Index) DocCount() int {
	return ix.docCount
}
