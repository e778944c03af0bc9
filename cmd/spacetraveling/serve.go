package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/views"
)

func newServeCmd(opts *options) *cobra.Command {
	var staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(cmd.ErrOrStderr(), true); err != nil {
				return err
			}
			slog.SetDefault(opts.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			appOpts := []spacetraveling.Option{spacetraveling.WithLogger(opts.logger)}
			if staticDir != "" {
				appOpts = append(appOpts, spacetraveling.WithStaticDir(staticDir))
			}
			app := spacetraveling.New(opts.cfg, views.Default(opts.cfg), appOpts...)
			defer app.Close()
			return app.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static", "", "directory served under /public in addition to the built-in assets")
	return cmd
}
