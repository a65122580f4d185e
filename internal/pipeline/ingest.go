package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"codegraph/internal/graph"
	"codegraph/internal/store"
)

// ErrIngestInProgress is returned by Run when another process holds the
// ingestion lock.
var ErrIngestInProgress = errors.New("ingestion already in progress")

// GraphStore is the storage surface the ingestor drives.
type GraphStore interface {
	GraphWriter
	Initialize(ctx context.Context) error
	Reset() error
}

// FileInput is one source file to ingest. When Load is set it is called to
// obtain the source and Source is ignored.
type FileInput struct {
	Path     string
	Language string
	Source   string
	Load     func() (string, error)
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	FilePath       string                      `json:"file_path"`
	EntitiesAdded  int                         `json:"entities_added"`
	RelationsAdded int                         `json:"relations_added"`
	Dangling       []graph.PendingRelationship `json:"dangling,omitempty"`
	Duration       time.Duration               `json:"duration"`
	Errors         []string                    `json:"errors,omitempty"`
}

// Failed reports whether any error was recorded for the file.
func (r FileResult) Failed() bool { return len(r.Errors) > 0 }

// RunReport summarizes one batch run.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Files    []FileResult `json:"files"`
}

// Totals sums the per-file counts.
func (r *RunReport) Totals() (entities, relations, failed int) {
	for _, f := range r.Files {
		entities += f.EntitiesAdded
		relations += f.RelationsAdded
		if f.Failed() {
			failed++
		}
	}
	return entities, relations, failed
}

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	Logger  *zap.Logger
	Metrics *Metrics

	// LockPath is the single-writer lock file used by Run. Empty disables
	// locking.
	LockPath string
}

// Ingestor feeds files through a Director one at a time.
type Ingestor struct {
	director *Director
	store    GraphStore
	logger   *zap.Logger
	metrics  *Metrics
	lockPath string
}

func NewIngestor(director *Director, gs GraphStore, opts IngestorOptions) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		director: director,
		store:    gs,
		logger:   logger.Named("ingest"),
		metrics:  opts.Metrics,
		lockPath: opts.LockPath,
	}
}

// LockPathFor returns the lock file used for a database path, or "" for an
// in-memory database.
func LockPathFor(dbPath string) string {
	if dbPath == "" || dbPath == store.MemoryPath {
		return ""
	}
	return dbPath + ".lock"
}

// IngestFile runs one file through every stage. Failures are recorded on the
// result instead of being returned.
func (in *Ingestor) IngestFile(ctx context.Context, input FileInput) FileResult {
	start := time.Now()
	res := FileResult{FilePath: input.Path}

	source := input.Source
	if input.Load != nil {
		s, err := input.Load()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to read %s: %v", input.Path, err))
			return in.finish(res, start)
		}
		source = s
	}

	ec, err := in.director.Process(ctx, NewExecutionContext(input.Path, source, input.Language))
	if err != nil {
		in.logger.Error("failed to process file", zap.String("file", input.Path), zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
	}
	res.EntitiesAdded = ec.Result.EntitiesAdded
	res.RelationsAdded = ec.Result.RelationsAdded
	res.Dangling = ec.Result.Dangling
	return in.finish(res, start)
}

// IngestRecord stores an already extracted record, bypassing parsing and
// analysis.
func (in *Ingestor) IngestRecord(ctx context.Context, rec graph.FileRecord) FileResult {
	start := time.Now()
	res := FileResult{FilePath: rec.FilePath}

	added, err := in.store.AddFileData(ctx, rec)
	if err != nil {
		in.logger.Error("failed to store record", zap.String("file", rec.FilePath), zap.Error(err))
		res.Errors = append(res.Errors, (&StageError{Stage: StageStore, FilePath: rec.FilePath, Err: err}).Error())
		return in.finish(res, start)
	}
	res.EntitiesAdded = added.EntitiesAdded
	res.RelationsAdded = added.RelationsAdded
	res.Dangling = added.Dangling
	return in.finish(res, start)
}

func (in *Ingestor) finish(res FileResult, start time.Time) FileResult {
	res.Duration = time.Since(start)
	in.metrics.observeFile(res)
	in.logger.Info("file ingested",
		zap.String("file", res.FilePath),
		zap.Int("entities_added", res.EntitiesAdded),
		zap.Int("relations_added", res.RelationsAdded),
		zap.Int("dangling", len(res.Dangling)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// ResetGraph wipes the graph and recreates an empty schema. It fails with
// ErrIngestInProgress while another writer holds the ingestion lock.
func (in *Ingestor) ResetGraph(ctx context.Context) error {
	unlock, err := in.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return in.resetGraph(ctx)
}

// resetGraph expects the caller to hold the ingestion lock.
func (in *Ingestor) resetGraph(ctx context.Context) error {
	if err := in.store.Reset(); err != nil {
		return fmt.Errorf("failed to reset graph: %w", err)
	}
	if err := in.store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to reinitialize graph: %w", err)
	}
	in.logger.Info("graph reset")
	return nil
}

// Run ingests inputs in order under the ingestion lock. With clean set the
// graph is reset first. Per-file failures land in the report; the returned
// error is reserved for problems that stop the whole run.
func (in *Ingestor) Run(ctx context.Context, inputs []FileInput, clean bool) (*RunReport, error) {
	unlock, err := in.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &RunReport{RunID: uuid.NewString(), Started: time.Now()}
	logger := in.logger.With(zap.String("run_id", report.RunID))
	logger.Info("ingestion started", zap.Int("files", len(inputs)), zap.Bool("clean", clean))

	if clean {
		if err := in.resetGraph(ctx); err != nil {
			return nil, err
		}
	} else if err := in.store.Initialize(ctx); err != nil {
		return nil, err
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			report.Finished = time.Now()
			return report, err
		}
		report.Files = append(report.Files, in.IngestFile(ctx, input))
	}

	report.Finished = time.Now()
	entities, relations, failed := report.Totals()
	logger.Info("ingestion finished",
		zap.Int("files", len(report.Files)),
		zap.Int("entities_added", entities),
		zap.Int("relations_added", relations),
		zap.Int("failed", failed),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, nil
}

func (in *Ingestor) lock() (func(), error) {
	if in.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(in.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(in.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingestion lock %s: %w", in.lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock held on %s", ErrIngestInProgress, in.lockPath)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			in.logger.Warn("failed to release ingestion lock", zap.String("path", in.lockPath), zap.Error(err))
		}
	}, nil
}
