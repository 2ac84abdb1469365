package index

import (
	"fmt"
	"testing"

	"docsearch/internal/index/tokenizer"
)

// BenchmarkBuild measures one-pass index construction at various corpus
// sizes.
func BenchmarkBuild(b *testing.B) {
	terms := []string{"distributed", "retrieval", "boolean", "postings", "corpus", "query", "engine", "union"}
	sizes := []int{100, 1000, 5000}
	tok := tokenizer.New(nil)

	for _, size := range sizes {
		docs := make(map[string]string, size)
		for i := 0; i < size; i++ {
			docs[fmt.Sprintf("doc-%d", i)] = fmt.Sprintf(
				"this document covers %s %s %s in production systems",
				terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)],
			)
		}
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				idx, err := Build(docs, tok)
				if err != nil {
					b.Fatal(err)
				}
				_ = idx
			}
		})
	}
}

// BenchmarkLookup measures single-term lookup over a 10 000 document index.
func BenchmarkLookup(b *testing.B) {
	tok := tokenizer.New(nil)
	docs := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		docs[fmt.Sprintf("doc-%d", i)] = "boolean retrieval over an inverted index with postings per term"
	}
	idx, err := Build(docs, tok)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		postings := idx.Lookup("retrieval")
		_ = postings
	}
}

// BenchmarkLookupParallel measures concurrent read throughput; the index is
// immutable after Build, so lookups need no synchronisation.
func BenchmarkLookupParallel(b *testing.B) {
	tok := tokenizer.New(nil)
	docs := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		docs[fmt.Sprintf("doc-%d", i)] = "boolean retrieval over an inverted index with postings per term"
	}
	idx, err := Build(docs, tok)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			postings := idx.Lookup("postings")
			_ = postings
		}
	})
}
