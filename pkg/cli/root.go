// Package cli implements the datafrage command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/datafrage-dev/datafrage/pkg/config"
	"github.com/datafrage-dev/datafrage/pkg/debug"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the datafrage CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "datafrage",
		Short:         "Ask natural-language questions about tabular data",
		Long:          "datafrage resolves a natural-language question against a semantic layer,\ngenerates analysis code for it, and runs that code in a sandbox over the\nconfigured dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))

	return cmd
}

// loadConfig loads the layered configuration and installs the default
// logger according to its logging section (or the verbose flag).
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg, opts.Verbose)
	return cfg, nil
}

func setupLogger(cfg *config.Config, verbose bool) {
	level := debug.ParseLevel(cfg.Logging.Level)
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	}
	slog.SetDefault(slog.New(handler))

	debug.Init(cfg.Logging.Debug)
}

// fail formats an error for terminal output.
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return err
}
