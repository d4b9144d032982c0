package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/daemon"
	"github.com/Aman-CERP/minirag/internal/output"
)

const previewWidth = 160

type queryOptions struct {
	maxResults int
	threshold  float64
	jsonOutput bool
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var qo queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the chunks most relevant to a query",
		Long: `Search uploaded documents by keyword overlap.

A chunk matches when its share of the query's keywords reaches the
similarity threshold. Results are ranked by score.

Examples:
  minirag query "quarterly budget review"
  minirag query -k 10 --threshold 0.3 budget`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := daemon.QueryParams{Query: strings.Join(args, " ")}
			if cmd.Flags().Changed("max-results") {
				params.MaxResults = &qo.maxResults
			}
			if cmd.Flags().Changed("threshold") {
				params.SimilarityThreshold = &qo.threshold
			}
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				return runQuery(cmd.Context(), cmd, b, params, qo.jsonOutput)
			})
		},
	}

	cmd.Flags().IntVarP(&qo.maxResults, "max-results", "k", 0, "Maximum number of results (default from search.max_results)")
	cmd.Flags().Float64Var(&qo.threshold, "threshold", 0, "Minimum similarity score in [0, 1] (default from search.similarity_threshold)")
	cmd.Flags().BoolVar(&qo.jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, b backend, params daemon.QueryParams, jsonOutput bool) error {
	if err := params.Validate(); err != nil {
		return err
	}
	res, err := b.Query(ctx, params)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}

	out := output.New(cmd.OutOrStdout())
	if len(res.Keywords) == 0 {
		out.Warningf("%q has no searchable keywords", res.Query)
		return nil
	}
	if len(res.Sources) == 0 {
		out.Statusf("", "No results found for %q (keywords: %s)", res.Query, strings.Join(res.Keywords, ", "))
		return nil
	}

	out.Header(fmt.Sprintf("%s for %q", plural(len(res.Sources), "result"), res.Query))
	out.Dim(fmt.Sprintf("keywords: %s | scorer: %s | %s", strings.Join(res.Keywords, ", "), res.Scorer, res.ResponseTime.Round(time.Microsecond)))
	for i, src := range res.Sources {
		out.Newline()
		out.Println(fmt.Sprintf("%d. %s  chunk %d  score %.2f", i+1, src.Filename, src.ChunkIndex, src.Score))
		out.Dim(fmt.Sprintf("   %s  characters %d-%d", src.ChunkID, src.StartOffset, src.EndOffset))
		out.Println("   " + truncate(oneLine(src.ContentPreview), previewWidth))
	}
	return nil
}
