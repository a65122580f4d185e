package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"codegraph/internal/graph"
)

// AddResult reports what one AddFileData call changed.
type AddResult struct {
	EntitiesAdded  int `json:"entities_added"`
	RelationsAdded int `json:"relations_added"`

	// Dangling lists relationships dropped because an endpoint did not
	// resolve to a stored entity.
	Dangling []graph.PendingRelationship `json:"dangling,omitempty"`
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddFileData stores one file's entities and relationships in a single
// transaction.
//
// The file's own FILE entity is inserted first. Every entity is recorded
// under rec.FilePath; duplicates are ignored and not counted. Relationship
// endpoints are resolved by exact entity name; a relationship with an
// unresolved endpoint is logged, listed in AddResult.Dangling and skipped
// without aborting the batch.
func (s *Store) AddFileData(ctx context.Context, rec graph.FileRecord) (AddResult, error) {
	if rec.FilePath == "" {
		return AddResult{}, fmt.Errorf("%w: empty file path", ErrInvalidRecord)
	}

	db, err := s.handle()
	if err != nil {
		return AddResult{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res AddResult

	n, err := insertEntity(ctx, tx, graph.FileEntity(rec.FilePath))
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to insert file entity %s: %w", rec.FilePath, err)
	}
	res.EntitiesAdded += n

	for _, e := range rec.Entities {
		e.FilePath = rec.FilePath
		n, err := insertEntity(ctx, tx, e)
		if err != nil {
			return AddResult{}, fmt.Errorf("failed to insert entity %s: %w", e.Name, err)
		}
		res.EntitiesAdded += n
	}

	for _, rel := range rec.Relationships {
		source, sourceOK, err := lookupEntity(ctx, tx, rel.Source)
		if err != nil {
			return AddResult{}, err
		}
		target, targetOK, err := lookupEntity(ctx, tx, rel.Target)
		if err != nil {
			return AddResult{}, err
		}
		if !sourceOK || !targetOK {
			s.logger.Warn("could not find source/target for relationship, skipping",
				zap.String("file", rec.FilePath),
				zap.String("source", rel.Source),
				zap.Bool("source_found", sourceOK),
				zap.String("target", rel.Target),
				zap.Bool("target_found", targetOK),
				zap.Stringer("type", rel.Type),
			)
			res.Dangling = append(res.Dangling, rel)
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (source_id, target_id, type) VALUES (?, ?, ?)`,
			source.ID, target.ID, rel.Type.String(),
		); err != nil {
			return AddResult{}, fmt.Errorf("failed to insert relationship %s: %w", rel, err)
		}
		res.RelationsAdded++
	}

	if err := tx.Commit(); err != nil {
		return AddResult{}, fmt.Errorf("failed to commit %s: %w", rec.FilePath, err)
	}

	s.logger.Debug("file data stored",
		zap.String("file", rec.FilePath),
		zap.Int("entities_added", res.EntitiesAdded),
		zap.Int("relations_added", res.RelationsAdded),
		zap.Int("dangling", len(res.Dangling)),
	)
	return res, nil
}

func insertEntity(ctx context.Context, tx *sql.Tx, e graph.Entity) (int, error) {
	r, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entities (name, type, file_path) VALUES (?, ?, ?)`,
		e.Name, e.Type.String(), e.FilePath,
	)
	if err != nil {
		return 0, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
