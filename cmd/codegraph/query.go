package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <term>",
		Short: "Show every relationship of entities whose name contains term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}

			results, err := a.facade.GraphSearch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No relationships found.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintln(out, r.Fact)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run graph and vector search and print both result lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd)
			if err != nil {
				return err
			}

			res := a.facade.Search(cmd.Context(), args[0], limit)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(out, "Graph results (%d):\n", len(res.Graph))
			for _, r := range res.Graph {
				fmt.Fprintf(out, "  %s\n", r.Fact)
			}
			fmt.Fprintf(out, "Vector results (%d):\n", len(res.Vector))
			for _, m := range res.Vector {
				fmt.Fprintf(out, "  [%.3f] %s %s\n", m.Score, m.DocumentSource, m.ChunkID)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of vector matches (default 10, max 50)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
