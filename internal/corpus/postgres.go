package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"docsearch/pkg/postgres"
)

// PostgresSource loads the document collection from the documents table.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresSource creates a PostgresSource over an open client.
func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

// Load reads every document row. Numeric identifiers are rendered as their
// decimal string so the index keys stay uniform.
func (s *PostgresSource) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT id, content FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]string)
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs[strconv.FormatInt(id, 10)] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	s.logger.Info("corpus loaded from postgres", "documents", len(docs))
	return docs, nil
}
