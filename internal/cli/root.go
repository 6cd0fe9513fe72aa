// Package cli implements the pdbident command line.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jtang613/pdbident/internal/config"
	"github.com/jtang613/pdbident/internal/identity"
	"github.com/jtang613/pdbident/internal/logging"
	"github.com/jtang613/pdbident/pkg/pdb/provider"

	// Registers the native provider.
	_ "github.com/jtang613/pdbident/pkg/pdb"
)

type globalFlags struct {
	configPath string
	provider   string
	logLevel   string
	logPretty  bool
}

// NewRootCmd builds the command tree against registry.
func NewRootCmd(registry *provider.Registry) *cobra.Command {
	var (
		gf        globalFlags
		signature string
		age       string
	)

	cmd := &cobra.Command{
		Use:   "pdbident [flags] <pdb-file> [signature age]",
		Short: "Validate a PDB and print its identity header",
		Long: `Load a program database through a symbol provider, optionally checking
that it matches an expected identity, and print the header that opens the
PDB document:

  <pdb file="..." exe="..." guid="{...}" age="...">
  </pdb>

The expected identity is a signature and an age, given together or not at all.
A signature in GUID form validates a VC70+ store by GUID; a hexadecimal
signature validates by the 32-bit signature. The age is hexadecimal.`,
		Example: `  pdbident app.pdb
  pdbident app.pdb 6F9619FF-8B86-D011-B42D-00C04FC964FF 2
  pdbident --signature 3C5A1B2F --age 1 legacy.pdb`,
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, &gf)
			if err != nil {
				return err
			}

			hint, err := hintFromArgs(cmd.Flags(), args, signature, age)
			if err != nil {
				return err
			}

			app := NewApp(registry, cmd.OutOrStdout(), logger)
			return app.Run(Options{Provider: cfg.Provider, File: args[0], Hint: hint})
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&gf.configPath, "config", "", "Config file (default $PDBIDENT_CONFIG or ~/.pdbident/config.yaml)")
	pf.StringVarP(&gf.provider, "provider", "p", "", "Symbol provider to load the PDB with (default native)")
	pf.StringVar(&gf.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	pf.BoolVar(&gf.logPretty, "log-pretty", true, "Human-readable log output")

	cmd.Flags().StringVarP(&signature, "signature", "s", "", "Expected GUID or hexadecimal signature")
	cmd.Flags().StringVarP(&age, "age", "a", "", "Expected hexadecimal age")

	cmd.AddCommand(newProvidersCmd(registry))
	cmd.AddCommand(newInfoCmd(&gf))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, gf *globalFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.NewLoader(gf.configPath).Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = gf.provider
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = gf.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = gf.logPretty
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	logger := logging.NewWithComponent(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	}, "pdbident")
	return cfg, logger, nil
}

// hintFromArgs builds the identity hint from positional arguments or flags.
// Presence, not content, decides which values were given.
func hintFromArgs(flags *pflag.FlagSet, args []string, signature, age string) (identity.Hint, error) {
	var hint identity.Hint

	if len(args) > 1 {
		if flags.Changed("signature") || flags.Changed("age") {
			return hint, fmt.Errorf("identity given both as arguments and as --signature/--age")
		}
		hint.Signature = &args[1]
		if len(args) > 2 {
			hint.Age = &args[2]
		}
		return hint, nil
	}

	if flags.Changed("signature") {
		hint.Signature = &signature
	}
	if flags.Changed("age") {
		hint.Age = &age
	}
	return hint, nil
}

// Execute runs the root command against the default provider registry.
func Execute() error {
	return NewRootCmd(provider.Default).Execute()
}
