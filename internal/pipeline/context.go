package pipeline

import (
	"codegraph/internal/ast"
	"codegraph/internal/graph"
	"codegraph/internal/store"
)

// ExecutionContext carries one file through the pipeline. Each stage reads
// what earlier stages produced and fills in its own fields. A context is owned
// by a single run and is never shared between files.
type ExecutionContext struct {
	FilePath   string
	SourceCode string
	Language   string

	// Set by the parse stage; nil when no AST could be produced.
	NormalizedAST *ast.Node

	// Set by the analyze stage.
	Entities      []graph.Entity
	Relationships []graph.PendingRelationship

	// Chunks are produced by external chunkers; the graph stages leave them
	// untouched.
	Chunks []Chunk

	// Set by the store stage.
	Result store.AddResult
}

// Chunk is a slice of source text destined for an external vector store.
type Chunk struct {
	Index      int               `json:"index"`
	Content    string            `json:"content"`
	TokenCount int               `json:"token_count,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewExecutionContext returns a fresh context for one file.
func NewExecutionContext(filePath, source, language string) *ExecutionContext {
	return &ExecutionContext{
		FilePath:   filePath,
		SourceCode: source,
		Language:   language,
	}
}

// Record returns the pending graph data as a FileRecord.
func (ec *ExecutionContext) Record() graph.FileRecord {
	return graph.FileRecord{
		FilePath:      ec.FilePath,
		Entities:      ec.Entities,
		Relationships: ec.Relationships,
	}
}
