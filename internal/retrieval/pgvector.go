package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
)

// matchChunksQuery calls the match_chunks(query_embedding vector, match_count
// int) function of a pgvector-backed RAG schema.
const matchChunksQuery = `SELECT chunk_id, document_id, content, similarity, metadata, document_title, document_source
FROM match_chunks($1::vector, $2)`

// PGVectorSearcher runs similarity search against PostgreSQL with pgvector.
type PGVectorSearcher struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPGVectorSearcher connects to the database at dsn.
func OpenPGVectorSearcher(ctx context.Context, dsn string, logger *zap.Logger) (*PGVectorSearcher, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to connect to vector database: %w", ErrVectorSearchUnavailable, err)
	}
	return NewPGVectorSearcher(db, logger), nil
}

// NewPGVectorSearcher wraps an open database handle.
func NewPGVectorSearcher(db *sql.DB, logger *zap.Logger) *PGVectorSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGVectorSearcher{db: db, logger: logger.Named("pgvector")}
}

func (s *PGVectorSearcher) Close() error { return s.db.Close() }

func (s *PGVectorSearcher) Search(ctx context.Context, embedding []float32, limit int) ([]ContentMatch, error) {
	if len(embedding) == 0 {
		return nil, errors.New("empty embedding")
	}

	rows, err := s.db.QueryContext(ctx, matchChunksQuery, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	var matches []ContentMatch
	for rows.Next() {
		var (
			m             ContentMatch
			metadata      []byte
			title, source sql.NullString
		)
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Content, &m.Score, &metadata, &title, &source); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				s.logger.Warn("invalid chunk metadata", zap.String("chunk_id", m.ChunkID), zap.Error(err))
			}
		}
		m.DocumentTitle = title.String
		m.DocumentSource = source.String
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError(err)
	}
	return matches, nil
}

// vectorLiteral renders an embedding in pgvector's text input format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// translatePgError maps a missing pgvector schema onto
// ErrVectorSearchUnavailable.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42883", "42P01", "42704": // undefined_function, undefined_table, undefined_object
			return fmt.Errorf("%w: %s", ErrVectorSearchUnavailable, pgErr.Message)
		}
	}
	return fmt.Errorf("vector query failed: %w", err)
}
