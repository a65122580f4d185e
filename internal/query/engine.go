// Package query resolves free-text entity references against the code graph.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"codegraph/internal/graph"
)

// GraphReader is the read side of the graph store used by the Engine.
type GraphReader interface {
	FindEntities(ctx context.Context, term string) ([]graph.Entity, error)
	Neighbors(ctx context.Context, entityID int64) ([]graph.Edge, error)
}

// Engine answers one-hop neighbourhood queries.
type Engine struct {
	reader GraphReader
	logger *zap.Logger
}

func NewEngine(reader GraphReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{reader: reader, logger: logger.Named("query")}
}

// FindRelationships returns the facts around every entity whose name
// contains term (case-sensitive). Each matched entity contributes every
// relationship it is the source or the target of; identical facts are
// returned once, in first-seen order.
//
// No matching entity is not an error: the result is empty.
func (e *Engine) FindRelationships(ctx context.Context, term string) ([]graph.Fact, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	start := time.Now()

	entities, err := e.reader.FindEntities(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", term, err)
	}
	if len(entities) == 0 {
		e.logger.Info("no entities found matching term", zap.String("term", term))
		return nil, nil
	}

	seen := make(map[graph.Fact]struct{})
	var facts []graph.Fact
	for _, ent := range entities {
		edges, err := e.reader.Neighbors(ctx, ent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", ent.Name, err)
		}
		for _, edge := range edges {
			f := graph.FactFromEdge(edge)
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			facts = append(facts, f)
		}
	}

	e.logger.Debug("graph query finished",
		zap.String("term", term),
		zap.Int("entities", len(entities)),
		zap.Int("facts", len(facts)),
		zap.Duration("took", time.Since(start)),
	)
	return facts, nil
}
