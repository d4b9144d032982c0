package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/output"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List uploaded documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				return runList(cmd.Context(), cmd, b, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, b backend, jsonOutput bool) error {
	res, err := b.List(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}

	out := output.New(cmd.OutOrStdout())
	if len(res.Documents) == 0 {
		out.Status("", "No documents uploaded yet. Run 'minirag add <file>' to add one.")
		return nil
	}

	out.Header(plural(len(res.Documents), "document"))
	for _, d := range res.Documents {
		out.Println(fmt.Sprintf("%s  %s  %s  %s",
			d.ID, d.UploadTime.Local().Format(time.DateTime), plural(d.TotalChunks, "chunk"), d.Filename))
	}
	return nil
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var (
		jsonOutput bool
		metaOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document's metadata and text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				doc, err := b.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), doc)
				}

				out := output.New(cmd.OutOrStdout())
				out.Header(doc.Filename)
				out.KeyValue(
					"ID", doc.ID,
					"Uploaded", doc.UploadTime,
					"Type", doc.Metadata.ContentType,
					"Size", fmt.Sprintf("%d bytes", doc.Metadata.SizeBytes),
					"Chunks", fmt.Sprintf("%d", doc.Metadata.TotalChunks),
				)
				if !metaOnly {
					out.Code(doc.ContentText)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&metaOnly, "meta", false, "Show metadata only")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete documents and their chunks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, _ *config.Config) error {
				out := output.New(cmd.OutOrStdout())
				var firstErr error
				for _, id := range args {
					res, err := b.Delete(cmd.Context(), id)
					if err != nil {
						out.Errorf("%s: %s", id, errMessage(err))
						if firstErr == nil {
							firstErr = err
						}
						continue
					}
					out.Successf("%s (%s removed)", res.Message, plural(res.ChunksRemoved, "chunk"))
				}
				return firstErr
			})
		},
	}
	return cmd
}
