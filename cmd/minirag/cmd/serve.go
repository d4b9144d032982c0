package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run a Model Context Protocol server over stdin/stdout so AI assistants
can upload, query and manage documents.

Stdout carries only JSON-RPC messages; logs go to ~/.minirag/logs/.
The server opens the data directory itself, so stop any running daemon
first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.useServerLogging(cfg.Server.LogLevel); err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := opts.openEngine(ctx, cfg)
			if err != nil {
				opts.log().Error("engine_open_failed", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = e.Close() }()

			srv, err := mcp.NewServer(e)
			if err != nil {
				return err
			}
			if err := srv.Serve(ctx, cfg.Server.Transport); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
