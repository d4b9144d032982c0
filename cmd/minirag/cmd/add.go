package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/daemon"
	"github.com/Aman-CERP/minirag/internal/ingest"
	"github.com/Aman-CERP/minirag/internal/output"
)

func newAddCmd(opts *globalOptions) *cobra.Command {
	var (
		filename   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>... | add - --filename <name>",
		Short: "Upload documents",
		Long: `Upload one or more documents. Directories are expanded to the files
they contain whose extension is allowed by upload.allowed_extensions.

Use "-" to read a single document from stdin; --filename then names it.

Examples:
  minirag add report.pdf notes.md
  minirag add ./docs
  cat meeting.txt | minirag add - --filename meeting.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b backend, cfg *config.Config) error {
				if len(args) == 1 && args[0] == "-" {
					return runAddStdin(cmd.Context(), cmd, b, filename, jsonOutput)
				}
				return runAdd(cmd.Context(), cmd, b, cfg, args, jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "Name for a document read from stdin")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func runAddStdin(ctx context.Context, cmd *cobra.Command, b backend, filename string, jsonOutput bool) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("--filename is required when reading from stdin")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	res, err := b.Upload(ctx, daemon.UploadParams{Filename: filename, Data: data})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), []ingest.Result{*res})
	}
	printUpload(output.New(cmd.OutOrStdout()), *res)
	return nil
}

func runAdd(ctx context.Context, cmd *cobra.Command, b backend, cfg *config.Config, args []string, jsonOutput bool) error {
	paths, err := expandPaths(args, cfg.Upload.AllowedExtensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no uploadable files found (allowed: %s)", strings.Join(cfg.Upload.AllowedExtensions, ", "))
	}

	out := output.New(cmd.OutOrStdout())
	var progress ingest.ProgressFunc
	if !jsonOutput && len(paths) > 1 {
		progress = func(done, total int, _ ingest.Result) {
			out.Progress(done, total, fmt.Sprintf("%d/%d files", done, total))
		}
	}

	var results []ingest.Result
	if bu, ok := b.(batchUploader); ok {
		results = bu.UploadMany(ctx, paths, progress)
	} else {
		results = uploadEach(ctx, b, paths, progress)
	}

	failed := len(results) - ingest.Succeeded(results)

	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printUpload(out, r)
		}
		if len(results) > 1 {
			out.Newline()
			out.Statusf("", "%d uploaded, %d failed", len(results)-failed, failed)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(results))
	}
	return nil
}

// uploadEach sends paths one at a time, recording failures per file.
// progress may be nil.
func uploadEach(ctx context.Context, b backend, paths []string, progress ingest.ProgressFunc) []ingest.Result {
	results := make([]ingest.Result, 0, len(paths))
	for _, p := range paths {
		r := uploadOne(ctx, b, p)
		results = append(results, r)
		if progress != nil {
			progress(len(results), len(paths), r)
		}
	}
	return results
}

func uploadOne(ctx context.Context, b backend, path string) ingest.Result {
	if err := ctx.Err(); err != nil {
		return ingest.Result{Path: path, Filename: filepath.Base(path), Error: err.Error(), Err: err}
	}
	res, err := b.Upload(ctx, daemon.UploadParams{Path: path})
	if err != nil {
		return ingest.Result{Path: path, Filename: filepath.Base(path), Error: err.Error(), Err: err}
	}
	res.Path = path
	return *res
}

func printUpload(out *output.Writer, r ingest.Result) {
	name := r.Filename
	if name == "" {
		name = r.Path
	}
	if r.Error != "" {
		out.Errorf("%s: %s", name, r.Error)
		return
	}
	out.Successf("%s: uploaded as %s (%s)", name, r.DocumentID, plural(r.ChunksCreated, "chunk"))
}

// expandPaths resolves args to absolute file paths. Directories are walked
// and filtered by allowed extensions; explicit files are kept so that the
// engine reports why it rejects them.
func expandPaths(args []string, allowed []string) ([]string, error) {
	accept := extensionFilter(allowed)

	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			// Missing files are reported per file by the upload.
			add(abs)
			continue
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		err = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && p != abs {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && accept(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}
