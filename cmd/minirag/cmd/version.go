package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/index"
	"github.com/Aman-CERP/minirag/pkg/version"
)

// versionOutput adds the tokenizer policy to the build info: binaries with
// different policies rebuild each other's index snapshots on open.
type versionOutput struct {
	version.Info
	IndexPolicy string `json:"index_policy"`
}

func newVersionCmd() *cobra.Command {
	var jsonOutput, shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			info := version.Get()
			switch {
			case shortOutput:
				_, err := fmt.Fprintln(out, version.Short())
				return err
			case jsonOutput:
				return writeJSON(out, versionOutput{Info: info, IndexPolicy: index.PolicyVersion})
			default:
				_, err := fmt.Fprintf(out, "%s\nindex policy: %s\n", info, index.PolicyVersion)
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")
	return cmd
}
