package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"codegraph/internal/pipeline"
	"codegraph/internal/source"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		clean    bool
		excludes []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [root]",
		Short: "Parse a repository into the knowledge graph",
		Long: `Walks root (default: ingest.root from the config) honoring .gitignore, parses
every supported file and stores its functions, classes and file entities.
Files are processed one at a time; a failing file is reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}

			root := a.cfg.Ingest.Root
			if len(args) == 1 {
				root = args[0]
			}
			opts := a.walkOptions()
			opts.Excludes = append(opts.Excludes, excludes...)

			files, err := source.Walk(cmd.Context(), root, a.registry, opts)
			if err != nil {
				return err
			}

			report, err := a.ingestor.Run(cmd.Context(), source.Inputs(files), clean || a.cfg.Ingest.Clean)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "reset the graph before ingesting")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "additional gitignore-style patterns to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run report as JSON")
	return cmd
}

func printReport(w io.Writer, r *pipeline.RunReport) {
	entities, relations, failed := r.Totals()
	dangling := 0
	for _, f := range r.Files {
		dangling += len(f.Dangling)
	}

	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "Ingested %d files in %.2fs: %d entities, %d relationships added\n",
		len(r.Files), r.Finished.Sub(r.Started).Seconds(), entities, relations)
	if dangling > 0 {
		fmt.Fprintf(w, "Skipped %d relationships with unknown endpoints\n", dangling)
	}
	if failed > 0 {
		fmt.Fprintf(w, "%d files failed:\n", failed)
		for _, f := range r.Files {
			for _, e := range f.Errors {
				fmt.Fprintf(w, "  %s: %s\n", f.FilePath, e)
			}
		}
	}
}
