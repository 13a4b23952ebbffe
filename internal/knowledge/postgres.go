package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/shiroonigami23-ui/ecoroute/internal/llm"
)

// PGRetriever searches the knowledge_base table. With an embedder it ranks by
// pgvector cosine distance over embedded rows. It falls back to full-text rank
// when there is no embedder, when embedding fails, or when no row has an
// embedding yet.
type PGRetriever struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	logger   *slog.Logger
}

func NewPGRetriever(pool *pgxpool.Pool, embedder llm.Embedder, logger *slog.Logger) *PGRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGRetriever{pool: pool, embedder: embedder, logger: logger}
}

func (r *PGRetriever) Query(ctx context.Context, text string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 3
	}

	if r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			r.logger.Warn("embedding query failed, using full-text search", "error", err)
			return r.queryText(ctx, text, limit)
		}
		docs, err := r.queryVector(ctx, pgvector.NewVector(vec), limit)
		if err != nil || len(docs) > 0 {
			return docs, err
		}
		r.logger.Debug("no embedded documents, using full-text search")
	}
	return r.queryText(ctx, text, limit)
}

func (r *PGRetriever) queryVector(ctx context.Context, vec pgvector.Vector, limit int) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT content, source, (embedding <=> $1::vector)::float8 AS distance
        FROM knowledge_base
        WHERE embedding IS NOT NULL
        ORDER BY distance ASC, id
        LIMIT $2
    `, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query knowledge by vector: %w", err)
	}
	return scanDocuments(rows)
}

func (r *PGRetriever) queryText(ctx context.Context, text string, limit int) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT content, source,
               (1 - ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)))::float8 AS distance
        FROM knowledge_base
        ORDER BY distance ASC, id
        LIMIT $2
    `, text, limit)
	if err != nil {
		return nil, fmt.Errorf("query knowledge by text: %w", err)
	}
	return scanDocuments(rows)
}

type docRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func scanDocuments(rows docRows) ([]Document, error) {
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Content, &d.Source, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan knowledge document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge documents: %w", err)
	}
	return docs, nil
}

func (r *PGRetriever) Ingest(ctx context.Context, content, source string) error {
	var embedding *pgvector.Vector
	if r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embed document: %w", err)
		}
		v := pgvector.NewVector(vec)
		embedding = &v
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO knowledge_base (content, source, embedding)
        VALUES ($1, $2, $3::vector)
    `, content, source, embedding)
	if err != nil {
		return fmt.Errorf("insert knowledge document: %w", err)
	}
	return nil
}
