// Package corpus provides document sources for the index builder. A Source
// yields the full collection as a mapping from unique document identifier
// to raw text; the index is built from that mapping in one pass.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docsearch/pkg/config"
	"docsearch/pkg/resilience"
)

// Source loads a document collection. Implementations are used once at
// startup; incremental updates are not part of the contract.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// StaticSource serves a fixed in-memory collection.
type StaticSource struct {
	docs map[string]string
}

// NewStaticSource copies the given mapping into a StaticSource.
func NewStaticSource(docs map[string]string) *StaticSource {
	copied := make(map[string]string, len(docs))
	for id, text := range docs {
		copied[id] = text
	}
	return &StaticSource{docs: copied}
}

// Load returns a copy of the static collection.
func (s *StaticSource) Load(ctx context.Context) (map[string]string, error) {
	docs := make(map[string]string, len(s.docs))
	for id, text := range s.docs {
		docs[id] = text
	}
	return docs, nil
}

// DirSource reads every .txt file in a directory. The document identifier
// is the file name without its extension.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource for the given directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Load reads all .txt files in the directory into a collection.
func (s *DirSource) Load(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", s.dir, err)
	}
	docs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading corpus file %s: %w", entry.Name(), err)
		}
		docID := strings.TrimSuffix(entry.Name(), ".txt")
		docs[docID] = string(data)
	}
	return docs, nil
}

// LoadWithRetry loads the collection through the given source, retrying
// transient failures with jittered backoff. Sources backed by the network
// (Postgres) may not be reachable yet when the service starts.
func LoadWithRetry(ctx context.Context, src Source, cfg config.CorpusConfig) (map[string]string, error) {
	var docs map[string]string
	err := resilience.Retry(ctx, "corpus-load", resilience.RetryConfig{
		MaxAttempts:  cfg.LoadAttempts,
		InitialDelay: cfg.LoadBackoff,
	}, func() error {
		var loadErr error
		docs, loadErr = src.Load(ctx)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
