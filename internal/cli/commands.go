package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	errs "github.com/jtang613/pdbident/internal/errors"
	"github.com/jtang613/pdbident/pkg/pdb"
	"github.com/jtang613/pdbident/pkg/pdb/provider"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newProvidersCmd(registry *provider.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered symbol providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newInfoCmd(gf *globalFlags) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "info <pdb-file>",
		Short: "Print PDB identity and stream information as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := setup(cmd, gf)
			if err != nil {
				return err
			}

			p, err := pdb.Open(args[0])
			if err != nil {
				return fmt.Errorf("error opening PDB: %w", err)
			}
			defer errs.DeferClose(logger, p, "failed to close PDB")

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetEscapeHTML(false)
			if pretty {
				encoder.SetIndent("", "  ")
			}
			return encoder.Encode(p.Info())
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdbident version %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		},
	}
}
