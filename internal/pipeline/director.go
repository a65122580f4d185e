// Package pipeline runs source files through the fixed
// Parse → Analyze → Store sequence and records a per-file report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Stage is one step of the pipeline. It receives the context produced by the
// previous stage and returns the context for the next one.
type Stage interface {
	Name() string
	Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionContext, error)
}

// errNilContext is returned when a stage hands back no context.
var errNilContext = errors.New("stage returned nil context")

// StageError is a failure inside one stage for one file.
type StageError struct {
	Stage    string
	FilePath string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.FilePath, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Director owns the ordered stage list. Stages always run in order and none
// is skipped; the first failure stops the sequence for that file.
type Director struct {
	stages  []Stage
	logger  *zap.Logger
	metrics *Metrics
}

// NewDirector returns a Director running stages in the given order.
func NewDirector(logger *zap.Logger, metrics *Metrics, stages ...Stage) *Director {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Director{stages: stages, logger: logger.Named("director"), metrics: metrics}
}

// NewDefaultDirector returns the standard Parse → Analyze → Store director.
func NewDefaultDirector(parser SourceParser, writer GraphWriter, logger *zap.Logger, metrics *Metrics) *Director {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewDirector(logger, metrics,
		NewParseStage(parser, logger),
		NewAnalyzeStage(logger),
		NewStoreStage(writer, logger),
	)
}

// Stages returns the stage names in execution order.
func (d *Director) Stages() []string {
	names := make([]string, len(d.stages))
	for i, s := range d.stages {
		names[i] = s.Name()
	}
	return names
}

// Process runs ec through every stage. On failure it returns the last good
// context together with a *StageError.
func (d *Director) Process(ctx context.Context, ec *ExecutionContext) (*ExecutionContext, error) {
	d.logger.Debug("processing file", zap.String("file", ec.FilePath), zap.String("language", ec.Language))

	for _, stage := range d.stages {
		if err := ctx.Err(); err != nil {
			return ec, &StageError{Stage: stage.Name(), FilePath: ec.FilePath, Err: err}
		}

		start := time.Now()
		next, err := stage.Execute(ctx, ec)
		d.metrics.observeStage(stage.Name(), time.Since(start), err)

		if err != nil {
			return ec, &StageError{Stage: stage.Name(), FilePath: ec.FilePath, Err: err}
		}
		if next == nil {
			return ec, &StageError{Stage: stage.Name(), FilePath: ec.FilePath, Err: errNilContext}
		}
		ec = next
	}

	d.logger.Debug("file processed", zap.String("file", ec.FilePath))
	return ec, nil
}
