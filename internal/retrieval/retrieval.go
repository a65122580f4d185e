// Package retrieval is the read surface offered to a reasoning agent. It
// returns graph facts and vector matches as two independent lists; neither
// list is merged into or re-ranked against the other.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"codegraph/internal/graph"
	"codegraph/util"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ErrVectorSearchUnavailable is returned when no embedder or vector searcher
// is configured, or the vector store cannot serve the request.
var ErrVectorSearchUnavailable = errors.New("vector search unavailable")

// GraphQuerier finds relationship facts for a term. query.Engine implements
// it.
type GraphQuerier interface {
	FindRelationships(ctx context.Context, term string) ([]graph.Fact, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher returns the content chunks closest to an embedding, best
// first.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]ContentMatch, error)
}

// GraphResult is one rendered graph fact.
type GraphResult struct {
	Fact string `json:"fact"`
	ID   string `json:"id"`
}

// ContentMatch is one chunk returned by vector search.
type ContentMatch struct {
	ChunkID        string         `json:"chunk_id"`
	DocumentID     string         `json:"document_id"`
	Content        string         `json:"content"`
	Score          float64        `json:"score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	DocumentTitle  string         `json:"document_title,omitempty"`
	DocumentSource string         `json:"document_source,omitempty"`
}

// Results holds both result lists. A side that failed is empty and its error
// is listed in Warnings.
type Results struct {
	Graph    []GraphResult  `json:"graph_results"`
	Vector   []ContentMatch `json:"vector_results"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Facade combines the graph query engine with the external vector search.
type Facade struct {
	graph    GraphQuerier
	embedder Embedder
	vectors  VectorSearcher
	logger   *zap.Logger
}

// NewFacade builds a Facade. embedder and vectors may be nil, in which case
// vector search reports ErrVectorSearchUnavailable.
func NewFacade(g GraphQuerier, embedder Embedder, vectors VectorSearcher, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Facade{graph: g, embedder: embedder, vectors: vectors, logger: logger.Named("retrieval")}
}

// VectorEnabled reports whether both vector collaborators are configured.
func (f *Facade) VectorEnabled() bool {
	return f.embedder != nil && f.vectors != nil
}

// GraphSearch returns the facts for entities whose name contains query.
func (f *Facade) GraphSearch(ctx context.Context, query string) ([]GraphResult, error) {
	facts, err := f.graph.FindRelationships(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("graph search failed: %w", err)
	}

	results := make([]GraphResult, 0, len(facts))
	for _, fact := range facts {
		results = append(results, GraphResult{
			Fact: fact.String(),
			ID:   util.FactID(fact.Source, fact.Relationship, fact.Target),
		})
	}
	f.logger.Debug("graph search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// VectorSearch embeds query and returns up to limit matches. limit is
// clamped to [1, MaxLimit]; zero or less means DefaultLimit.
func (f *Facade) VectorSearch(ctx context.Context, query string, limit int) ([]ContentMatch, error) {
	if !f.VectorEnabled() {
		return nil, ErrVectorSearchUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	embedding, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := f.vectors.Search(ctx, embedding, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	f.logger.Debug("vector search", zap.String("query", query), zap.Int("results", len(matches)))
	return matches, nil
}

// Search runs both searches. A failure on one side never hides the results
// of the other.
func (f *Facade) Search(ctx context.Context, query string, limit int) Results {
	var res Results

	graphResults, err := f.GraphSearch(ctx, query)
	if err != nil {
		f.logger.Warn("graph side of search failed", zap.String("query", query), zap.Error(err))
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.Graph = graphResults

	vectorResults, err := f.VectorSearch(ctx, query, limit)
	if err != nil {
		f.logger.Warn("vector side of search failed", zap.String("query", query), zap.Error(err))
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.Vector = vectorResults

	return res
}

// ClampLimit applies the default and bounds to a requested result count.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
