package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	FigOut string
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question about the configured dataset",
		Long: `Run one question through the full pipeline and print the result.

The question is resolved against the semantic layer, analysis code is
generated and executed in the sandbox, and the captured output is
rendered to the terminal.

Example:
  datafrage ask "average length of stay by readmission status"
  datafrage ask --figures ./figs "plot time in hospital by age band"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.FigOut, "figures", "", "directory to write figure specs to (omit to skip)")

	return cmd
}

func runAsk(cmd *cobra.Command, opts *AskOptions, question string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(cmd, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := buildSession(ctx, cfg)
	if err != nil {
		return fail(cmd, err)
	}
	defer sess.Close()

	resp, err := sess.eng.HandleQuery(ctx, "", &api.QueryRequest{Query: question})
	if err != nil {
		return fail(cmd, err)
	}

	out := cmd.OutOrStdout()
	printResolutions(out, resp.Resolutions)

	if resp.Status == api.QueryStatusFailed {
		fmt.Fprintf(out, "query failed after %d attempt(s): [%s] %s\n",
			resp.Attempts, resp.Error.Kind, resp.Error.Message)
		if resp.Error.Fragment != "" {
			fmt.Fprintf(out, "\noffending code:\n%s\n", resp.Error.Fragment)
		}
		return fmt.Errorf("query %s failed", resp.ID)
	}

	for _, block := range resp.Blocks {
		if err := printBlock(out, block, opts.FigOut); err != nil {
			return fail(cmd, err)
		}
	}
	return nil
}

func printResolutions(w io.Writer, resolutions []api.Resolution) {
	if len(resolutions) == 0 {
		return
	}
	parts := make([]string, 0, len(resolutions))
	for _, r := range resolutions {
		if r.Value != "" {
			parts = append(parts, fmt.Sprintf("%q -> %s=%s", r.Span, r.Column, r.Value))
		} else {
			parts = append(parts, fmt.Sprintf("%q -> %s", r.Span, r.Column))
		}
	}
	fmt.Fprintf(w, "resolved: %s\n\n", strings.Join(parts, ", "))
}

func printBlock(w io.Writer, block api.Block, figDir string) error {
	switch block.Type {
	case api.BlockTypeText:
		fmt.Fprintln(w, block.Text)
	case api.BlockTypeTable:
		printTable(w, block.Table)
	case api.BlockTypeFigure:
		return printFigure(w, block.Figure, figDir)
	}
	return nil
}

func printTable(w io.Writer, table *api.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Columns, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printFigure(w io.Writer, fig *api.Figure, figDir string) error {
	title := fig.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "figure %s [%s]: %s\n", fig.ID, fig.Kind, title)

	if figDir == "" || len(fig.Spec) == 0 {
		return nil
	}
	if err := os.MkdirAll(figDir, 0o755); err != nil {
		return fmt.Errorf("creating figure directory: %w", err)
	}
	path := figDir + "/" + fig.ID + ".json"
	if err := os.WriteFile(path, fig.Spec, 0o644); err != nil {
		return fmt.Errorf("writing figure spec: %w", err)
	}
	fmt.Fprintf(w, "  spec written to %s\n", path)
	return nil
}
