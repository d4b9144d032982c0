package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/output"
	"github.com/Aman-CERP/minirag/internal/watcher"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest files dropped into a directory",
		Long: `Watch a directory and keep the knowledge base in sync with it.

Files already present are uploaded once. New files are uploaded, rewritten
files replace their previous upload, and removed files are deleted. Bursts
of events are debounced by performance.watch_debounce.

Watch opens the data directory itself, so stop any running daemon first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("inbox: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("inbox %s is not a directory", args[0])
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			inboxOpts, err := watcher.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := opts.openEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			out := output.New(cmd.OutOrStdout())
			inboxOpts.Logger = opts.log()
			inboxOpts.Accept = extensionFilter(cfg.Upload.AllowedExtensions)
			inboxOpts.OnOutcome = func(o watcher.Outcome) { printOutcome(out, o) }

			inbox, err := watcher.NewInbox(args[0], e.Ingester, e.Store, inboxOpts)
			if err != nil {
				return err
			}

			if once {
				outcomes, err := inbox.Sync(ctx)
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					out.Status("", "Nothing new to upload")
				}
				return nil
			}

			out.Statusf("", "Watching %s (Ctrl+C to stop)", inbox.Dir())
			return inbox.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Upload files not yet in the store, then exit")
	return cmd
}

// extensionFilter accepts file names with one of the allowed extensions.
func extensionFilter(allowed []string) func(name string) bool {
	exts := make(map[string]bool, len(allowed))
	for _, e := range allowed {
		exts["."+strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return func(name string) bool {
		return exts[strings.ToLower(filepath.Ext(name))]
	}
}

func printOutcome(out *output.Writer, o watcher.Outcome) {
	name := filepath.Base(o.Path)
	switch {
	case o.Err != nil:
		out.Errorf("%s: %s", name, errMessage(o.Err))
	case o.Result != nil && len(o.Removed) > 0:
		out.Successf("%s: replaced (%s, id %s)", name, plural(o.Result.ChunksCreated, "chunk"), o.Result.DocumentID)
	case o.Result != nil:
		out.Successf("%s: uploaded (%s, id %s)", name, plural(o.Result.ChunksCreated, "chunk"), o.Result.DocumentID)
	case len(o.Removed) > 0:
		out.Successf("%s: removed %s", name, plural(len(o.Removed), "document"))
	}
}
