// Package server exposes the graph and retrieval surface over the Model
// Context Protocol.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"codegraph/internal/pipeline"
	"codegraph/internal/retrieval"
	"codegraph/internal/source"
)

//go:embed prompt.md
var defaultSystemPrompt string

// IngestStatus is the lifecycle state of ingestion in this process.
type IngestStatus string

const (
	IngestStatusIdle       IngestStatus = "idle"
	IngestStatusInProgress IngestStatus = "in_progress"
	IngestStatusReady      IngestStatus = "ready"
	IngestStatusFailed     IngestStatus = "failed"
)

var errIngestInProgress = errors.New("ingestion already in progress")

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Root is the directory ingested when the ingest tool gets no root.
	Root   string
	Walk   source.Options
	Logger *zap.Logger
}

// Server is an MCP server over one graph store.
type Server struct {
	mcpServer    *mcp.Server
	ingestor     *pipeline.Ingestor
	facade       *retrieval.Facade
	langs        source.LanguageResolver
	root         string
	walkOpts     source.Options
	systemPrompt string
	logger       *zap.Logger

	ingestMu       sync.RWMutex
	ingestStatus   IngestStatus
	ingestErr      error
	ingestDuration time.Duration
	ingestDone     chan struct{}
	lastReport     *pipeline.RunReport
}

func New(ingestor *pipeline.Ingestor, facade *retrieval.Facade, langs source.LanguageResolver, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "codegraph"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Walk.Logger == nil {
		opts.Walk.Logger = logger
	}

	s := &Server{
		ingestor:     ingestor,
		facade:       facade,
		langs:        langs,
		root:         opts.Root,
		walkOpts:     opts.Walk,
		systemPrompt: defaultSystemPrompt,
		logger:       logger.Named("mcp"),
		ingestStatus: IngestStatusIdle,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, &mcp.ServerOptions{
		Instructions: "Read codegraph://usage-guidelines before using the tools.",
	})

	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server { return s.mcpServer }

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// beginIngest moves to IngestStatusInProgress, refusing a second concurrent
// ingestion.
func (s *Server) beginIngest() error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if s.ingestStatus == IngestStatusInProgress {
		return errIngestInProgress
	}
	s.ingestStatus = IngestStatusInProgress
	s.ingestErr = nil
	s.ingestDone = make(chan struct{})
	return nil
}

func (s *Server) endIngest(report *pipeline.RunReport, duration time.Duration, err error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.ingestDuration = duration
	s.ingestErr = err
	if err != nil {
		s.ingestStatus = IngestStatusFailed
	} else {
		s.ingestStatus = IngestStatusReady
		s.lastReport = report
	}
	close(s.ingestDone)
}

// GetIngestStatus returns the current state, the last error and the last
// run duration.
func (s *Server) GetIngestStatus() (IngestStatus, error, time.Duration) {
	s.ingestMu.RLock()
	defer s.ingestMu.RUnlock()
	return s.ingestStatus, s.ingestErr, s.ingestDuration
}

// WaitForIngest blocks while an ingestion is running. It returns at once when
// none is.
func (s *Server) WaitForIngest(ctx context.Context) error {
	s.ingestMu.RLock()
	status, done := s.ingestStatus, s.ingestDone
	s.ingestMu.RUnlock()

	if status != IngestStatusInProgress {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	text, err := marshalIndent(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return textResult(text)
}
