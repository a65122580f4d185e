package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"codegraph/internal/pipeline"
	"codegraph/internal/retrieval"
	"codegraph/internal/source"
	"codegraph/util"
)

// Arguments structs

type GraphSearchArgs struct {
	Query string `json:"query" jsonschema:"Entity name or name fragment to look up; matching is case-sensitive"`
}

type VectorSearchArgs struct {
	Query string `json:"query" jsonschema:"Natural language description of the code to find"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of matches, 1 to 50, default 10"`
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"Query sent to both the knowledge graph and vector search"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of vector matches, 1 to 50, default 10"`
}

type IngestArgs struct {
	Root  string `json:"root,omitempty" jsonschema:"Directory or file:// URI to ingest; defaults to the configured root"`
	Clean bool   `json:"clean,omitempty" jsonschema:"Reset the graph before ingesting"`
}

type IngestStatusArgs struct{}

type ResetGraphArgs struct{}

// waitTimeout bounds how long a query waits for a running ingestion.
const waitTimeout = 30 * time.Second

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "graph_search",
		Description: "Returns every relationship touching entities whose name contains the query",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GraphSearchArgs) (*mcp.CallToolResult, any, error) {
		if res := s.awaitIngest(ctx); res != nil {
			return res, nil, nil
		}

		results, err := s.facade.GraphSearch(ctx, args.Query)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err)), nil, nil
		}
		if len(results) == 0 {
			return textResult("No relationships found."), nil, nil
		}
		return jsonResult(results), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "vector_search",
		Description: "Finds code chunks semantically similar to the query",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args VectorSearchArgs) (*mcp.CallToolResult, any, error) {
		matches, err := s.facade.VectorSearch(ctx, args.Query, args.Limit)
		if errors.Is(err, retrieval.ErrVectorSearchUnavailable) {
			return errorResult("Vector search is not configured for this server."), nil, nil
		}
		if err != nil {
			return errorResult(fmt.Sprintf("Vector search failed: %v", err)), nil, nil
		}
		if len(matches) == 0 {
			return textResult("No matches found."), nil, nil
		}
		return jsonResult(matches), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search",
		Description: "Runs graph and vector search and returns both result lists separately",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
		if res := s.awaitIngest(ctx); res != nil {
			return res, nil, nil
		}
		return jsonResult(s.facade.Search(ctx, args.Query, args.Limit)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest",
		Description: "Parses a directory and adds its functions, classes and files to the knowledge graph",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IngestArgs) (*mcp.CallToolResult, any, error) {
		root := s.root
		if args.Root != "" {
			root = util.URIToPath(args.Root)
		}

		if err := s.beginIngest(); err != nil {
			return errorResult("Ingestion already in progress"), nil, nil
		}
		start := time.Now()

		report, err := s.ingest(ctx, root, args.Clean)
		s.endIngest(report, time.Since(start), err)
		if err != nil {
			s.logger.Error("ingestion failed", zap.String("root", root), zap.Error(err))
			return errorResult(fmt.Sprintf("Ingestion failed: %v", err)), nil, nil
		}
		return jsonResult(summarize(report)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_status",
		Description: "Returns the current ingestion status and a summary of the last run",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IngestStatusArgs) (*mcp.CallToolResult, any, error) {
		status, err, duration := s.GetIngestStatus()

		result := map[string]any{
			"status": string(status),
		}
		if duration > 0 {
			result["duration_seconds"] = duration.Seconds()
		}
		if err != nil {
			result["error"] = err.Error()
		}
		s.ingestMu.RLock()
		if s.lastReport != nil {
			result["last_run"] = summarize(s.lastReport)
		}
		s.ingestMu.RUnlock()

		return jsonResult(result), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reset_graph",
		Description: "Deletes every entity and relationship from the knowledge graph",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ResetGraphArgs) (*mcp.CallToolResult, any, error) {
		if err := s.beginIngest(); err != nil {
			return errorResult("Cannot reset while ingestion is in progress"), nil, nil
		}
		start := time.Now()
		err := s.ingestor.ResetGraph(ctx)
		s.endIngest(nil, time.Since(start), err)
		if err != nil {
			return errorResult(fmt.Sprintf("Reset failed: %v", err)), nil, nil
		}
		return textResult("Graph reset."), nil, nil
	})
}

func (s *Server) ingest(ctx context.Context, root string, clean bool) (*pipeline.RunReport, error) {
	files, err := source.Walk(ctx, root, s.langs, s.walkOpts)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return s.ingestor.Run(ctx, source.Inputs(files), clean)
}

// awaitIngest waits for a running ingestion and returns an error result when
// the wait does not succeed.
func (s *Server) awaitIngest(ctx context.Context) *mcp.CallToolResult {
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	if err := s.WaitForIngest(waitCtx); err != nil {
		return errorResult("Ingestion in progress, please try again")
	}
	return nil
}

// RunSummary is the condensed form of a RunReport returned to clients.
type RunSummary struct {
	RunID          string            `json:"run_id"`
	Files          int               `json:"files"`
	EntitiesAdded  int               `json:"entities_added"`
	RelationsAdded int               `json:"relations_added"`
	Dangling       int               `json:"dangling"`
	Failed         map[string]string `json:"failed,omitempty"`
	DurationSec    float64           `json:"duration_seconds"`
}

func summarize(r *pipeline.RunReport) RunSummary {
	entities, relations, _ := r.Totals()
	sum := RunSummary{
		RunID:          r.RunID,
		Files:          len(r.Files),
		EntitiesAdded:  entities,
		RelationsAdded: relations,
		DurationSec:    r.Finished.Sub(r.Started).Seconds(),
	}
	for _, f := range r.Files {
		sum.Dangling += len(f.Dangling)
		if f.Failed() {
			if sum.Failed == nil {
				sum.Failed = make(map[string]string)
			}
			sum.Failed[f.FilePath] = f.Errors[0]
		}
	}
	return sum
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
