package pipeline

import (
	"context"

	"go.uber.org/zap"

	"codegraph/internal/ast"
	"codegraph/internal/extract"
	"codegraph/internal/graph"
	"codegraph/internal/store"
)

// SourceParser turns source text into an AST. ast.Registry implements it.
type SourceParser interface {
	Parse(ctx context.Context, source []byte, language string) (*ast.Node, error)
}

// GraphWriter persists one file's graph data. store.Store implements it.
type GraphWriter interface {
	AddFileData(ctx context.Context, rec graph.FileRecord) (store.AddResult, error)
}

const (
	StageParse   = "parse"
	StageAnalyze = "analyze"
	StageStore   = "store"
)

// ParseStage fills NormalizedAST. A parse failure or an unsupported language
// leaves it nil; only cancellation is reported as an error.
type ParseStage struct {
	parser SourceParser
	logger *zap.Logger
}

func NewParseStage(parser SourceParser, logger *zap.Logger) *ParseStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParseStage{parser: parser, logger: logger.Named(StageParse)}
}

func (s *ParseStage) Name() string { return StageParse }

func (s *ParseStage) Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionContext, error) {
	root, err := s.parser.Parse(ctx, []byte(ec.SourceCode), ec.Language)
	if err != nil {
		if ctx.Err() != nil {
			return ec, ctx.Err()
		}
		s.logger.Warn("no AST available",
			zap.String("file", ec.FilePath),
			zap.String("language", ec.Language),
			zap.Error(err),
		)
		return ec, nil
	}

	ec.NormalizedAST = root
	s.logger.Debug("parsed", zap.String("file", ec.FilePath), zap.Int("nodes", ast.Count(root)))
	return ec, nil
}

// AnalyzeStage extracts entities and relationships from the AST.
type AnalyzeStage struct {
	logger *zap.Logger
}

func NewAnalyzeStage(logger *zap.Logger) *AnalyzeStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyzeStage{logger: logger.Named(StageAnalyze)}
}

func (s *AnalyzeStage) Name() string { return StageAnalyze }

func (s *AnalyzeStage) Execute(_ context.Context, ec *ExecutionContext) (*ExecutionContext, error) {
	if ec.NormalizedAST == nil {
		s.logger.Warn("no AST found, skipping analysis", zap.String("file", ec.FilePath))
		return ec, nil
	}

	ec.Entities, ec.Relationships = extract.Extract(ec.NormalizedAST, ec.FilePath)
	s.logger.Info("extracted graph data",
		zap.String("file", ec.FilePath),
		zap.Int("entities", len(ec.Entities)),
		zap.Int("relationships", len(ec.Relationships)),
	)
	return ec, nil
}

// StoreStage persists the extracted data. A context with nothing extracted
// is not written, so a file whose parse failed leaves no trace in the graph.
type StoreStage struct {
	writer GraphWriter
	logger *zap.Logger
}

func NewStoreStage(writer GraphWriter, logger *zap.Logger) *StoreStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreStage{writer: writer, logger: logger.Named(StageStore)}
}

func (s *StoreStage) Name() string { return StageStore }

func (s *StoreStage) Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionContext, error) {
	if len(ec.Entities) == 0 && len(ec.Relationships) == 0 {
		s.logger.Debug("nothing to store", zap.String("file", ec.FilePath))
		ec.Result = store.AddResult{}
		return ec, nil
	}

	res, err := s.writer.AddFileData(ctx, ec.Record())
	if err != nil {
		return ec, err
	}
	ec.Result = res
	return ec, nil
}
