package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	LayerPath string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <question>",
		Short: "Show how a question maps onto the semantic layer",
		Long: `Resolve a question against the semantic layer without generating or
executing any code. Useful for checking synonym coverage while editing
the layer artifact.

Example:
  datafrage resolve "length of stay for readmitted patients"
  datafrage resolve --layer ./layer.yaml "average glucose"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.LayerPath, "layer", "", "semantic layer file (defaults to the configured session layer)")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, question string) error {
	layerPath := opts.LayerPath
	if layerPath == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return fail(cmd, err)
		}
		layerPath = cfg.Session.SemanticLayer
	}

	layer, err := semantic.Load(layerPath)
	if err != nil {
		return fail(cmd, fmt.Errorf("loading semantic layer: %w", err))
	}

	resolved := layer.Resolve(question)
	out := cmd.OutOrStdout()

	if len(resolved.Resolutions) == 0 {
		fmt.Fprintln(out, "no terms resolved")
		return nil
	}

	for _, r := range resolved.Resolutions {
		if r.Value != "" {
			fmt.Fprintf(out, "%-30q -> column %s, value %s\n", r.Span, r.Column, r.Value)
		} else {
			fmt.Fprintf(out, "%-30q -> column %s\n", r.Span, r.Column)
		}
	}
	return nil
}
