package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
)

// options holds the persistent flags and what they resolve to.
type options struct {
	configPath string
	logLevel   string

	cfg    spacetraveling.SiteConfig
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "spacetraveling",
		Short:         "Serve a blog whose posts live in a headless CMS",
		Long:          "spacetraveling renders a blog from a Prismic-style content API: a paginated home page, post pages, banners, a sitemap and an RSS feed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")

	root.AddCommand(
		newServeCmd(opts),
		newPostsCmd(opts),
		newPostCmd(opts),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the config and builds a logger writing to w.
func (o *options) load(w io.Writer, json bool) error {
	cfg, err := spacetraveling.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = setupLogger(w, cfg.SlogLevel(), json)
	return nil
}

func setupLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spacetraveling %s\n", version)
		},
	}
}
