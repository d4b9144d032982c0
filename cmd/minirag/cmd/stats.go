package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/daemon"
	"github.com/Aman-CERP/minirag/internal/output"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and query statistics",
		Long: `Show document and chunk counts, store health, and query telemetry:
top query terms, zero-result queries and average latency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				return runStats(cmd.Context(), cmd, b, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, b backend, jsonOutput bool) error {
	s, err := b.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), s)
	}

	out := output.New(cmd.OutOrStdout())
	printStats(out, s)
	return nil
}

func printStats(out *output.Writer, s *daemon.StatsResult) {
	out.Header("Knowledge base")
	out.KeyValue(
		"Status", s.SystemStatus,
		"Backend", s.StorageBackend,
		"Documents", fmt.Sprintf("%d", s.TotalDocuments),
		"Chunks", fmt.Sprintf("%d", s.TotalChunks),
		"Keywords", fmt.Sprintf("%d", s.IndexedKeywords),
	)

	q := s.Queries
	if q == nil || q.TotalQueries == 0 {
		return
	}

	terms := make([]string, 0, len(q.TopTerms))
	for _, tc := range q.TopTerms {
		terms = append(terms, fmt.Sprintf("%s (%d)", tc.Term, tc.Count))
	}

	out.Newline()
	out.Header("Queries")
	pairs := []string{
		"Total", fmt.Sprintf("%d", q.TotalQueries),
		"No results", fmt.Sprintf("%d (%.1f%%)", q.ZeroResultCount, q.ZeroResultPercentage()),
		"Cache hits", fmt.Sprintf("%d", q.CacheHits),
		"Avg latency", fmt.Sprintf("%.2f ms", q.AvgLatencyMs),
	}
	if len(terms) > 0 {
		pairs = append(pairs, "Top terms", strings.Join(terms, ", "))
	}
	out.KeyValue(pairs...)
}

func newRebuildCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the keyword index from stored chunks",
		Long: `Re-derive every chunk's keywords from its stored text and replace the
keyword index. Run this after changing tokenization or if the index and the
document store disagree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				res, err := b.Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Index rebuilt: %s, %s in %s",
					plural(res.Chunks, "chunk"), plural(res.Keywords, "keyword"), res.Duration)
				return nil
			})
		},
	}
}
