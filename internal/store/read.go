package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codegraph/internal/graph"
)

// FindEntities returns every entity whose name contains term, compared
// case-sensitively, in insertion order.
func (s *Store) FindEntities(ctx context.Context, term string) ([]graph.Entity, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	// instr is case-sensitive where LIKE is not.
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, type, file_path FROM entities WHERE instr(name, ?) > 0 ORDER BY id`, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	return out, nil
}

// lookupEntity returns the entity with exactly this name. When several share
// the name the oldest is returned. ok is false when none exists.
func lookupEntity(ctx context.Context, q queryer, name string) (e graph.Entity, ok bool, err error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, type, file_path FROM entities WHERE name = ? ORDER BY id LIMIT 1`, name)
	e, err = scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Entity{}, false, nil
	}
	if err != nil {
		return graph.Entity{}, false, fmt.Errorf("failed to look up entity %q: %w", name, err)
	}
	return e, true, nil
}

// Neighbors returns every relationship where the entity is the source or the
// target, joined with both endpoints, in insertion order.
func (s *Store) Neighbors(ctx context.Context, entityID int64) ([]graph.Edge, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, s.name, s.type, r.type, t.name, t.type
		FROM relationships r
		JOIN entities s ON r.source_id = s.id
		JOIN entities t ON r.target_id = t.id
		WHERE r.source_id = ? OR r.target_id = ?
		ORDER BY r.id`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships of %d: %w", entityID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Edge
	for rows.Next() {
		var (
			e                         graph.Edge
			srcType, relType, tgtType string
		)
		if err := rows.Scan(&e.ID, &e.Source.Name, &srcType, &relType, &e.Target.Name, &tgtType); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		e.Source.Type = graph.ParseEntityType(srcType)
		e.Target.Type = graph.ParseEntityType(tgtType)
		e.Type = graph.ParseRelationType(relType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relationships: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(sc scanner) (graph.Entity, error) {
	var (
		e        graph.Entity
		typ      string
		filePath sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.Name, &typ, &filePath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Entity{}, err
		}
		return graph.Entity{}, fmt.Errorf("failed to scan entity: %w", err)
	}
	e.Type = graph.ParseEntityType(typ)
	e.FilePath = filePath.String
	return e, nil
}
