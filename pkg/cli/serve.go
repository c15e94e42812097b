package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	transporthttp "github.com/datafrage-dev/datafrage/pkg/transport/http"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query API server",
		Long: `Start the HTTP server exposing the query API.

The server loads the semantic layer and dataset configured in the
session section, then answers POST /v1/queries requests until it
receives SIGINT or SIGTERM.

Example:
  datafrage serve --config config.yaml
  DATAFRAGE_PORT=9090 datafrage serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return fail(cmd, err)
	}

	sess, err := buildSession(cmd.Context(), cfg)
	if err != nil {
		return fail(cmd, err)
	}
	defer sess.Close()

	authMW, err := authMiddleware(cfg)
	if err != nil {
		return fail(cmd, err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if authMW != nil {
		opts = append(opts, transporthttp.WithAuthMiddleware(authMW))
	}

	srv := transporthttp.NewServer(sess.eng, sess.store, opts...)
	if err := srv.ListenAndServe(); err != nil {
		return fail(cmd, err)
	}
	return nil
}
