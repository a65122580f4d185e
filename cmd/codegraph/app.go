package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"codegraph/internal/ast"
	"codegraph/internal/config"
	"codegraph/internal/pipeline"
	"codegraph/internal/query"
	"codegraph/internal/retrieval"
	"codegraph/internal/source"
	"codegraph/internal/store"
)

// app is the wired component graph for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *ast.Registry
	store    *store.Store
	promReg  *prometheus.Registry
	ingestor *pipeline.Ingestor
	facade   *retrieval.Facade
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: ast.DefaultRegistry(),
		store:    store.New(cfg.DBPath, logger),
		promReg:  prometheus.NewRegistry(),
	}
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.store.Initialize(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	metrics := pipeline.NewMetrics(a.promReg)
	director := pipeline.NewDefaultDirector(a.registry, a.store, logger, metrics)
	a.ingestor = pipeline.NewIngestor(director, a.store, pipeline.IngestorOptions{
		Logger:   logger,
		Metrics:  metrics,
		LockPath: pipeline.LockPathFor(cfg.DBPath),
	})

	embedder, searcher := a.vectorCollaborators(ctx)
	a.facade = retrieval.NewFacade(query.NewEngine(a.store, logger), embedder, searcher, logger)
	return a, nil
}

// vectorCollaborators connects the optional vector search. Any failure
// leaves vector search disabled rather than failing the command.
func (a *app) vectorCollaborators(ctx context.Context) (retrieval.Embedder, retrieval.VectorSearcher) {
	if !a.cfg.VectorEnabled() {
		a.logger.Debug("vector search not configured")
		return nil, nil
	}

	embedder, err := retrieval.NewOpenAIEmbedder(retrieval.OpenAIConfig{
		APIKey:  a.cfg.Embedding.APIKey,
		Model:   a.cfg.Embedding.Model,
		BaseURL: a.cfg.Embedding.BaseURL,
	}, a.logger)
	if err != nil {
		a.logger.Warn("vector search disabled", zap.Error(err))
		return nil, nil
	}

	searcher, err := retrieval.OpenPGVectorSearcher(ctx, a.cfg.Vector.DSN, a.logger)
	if err != nil {
		a.logger.Warn("vector search disabled", zap.Error(err))
		return nil, nil
	}
	a.closers = append(a.closers, searcher.Close)
	return embedder, searcher
}

func (a *app) walkOptions() source.Options {
	return source.Options{
		Excludes:    a.cfg.Ingest.Excludes,
		MaxFileSize: a.cfg.Ingest.MaxFileSize,
		Logger:      a.logger,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
