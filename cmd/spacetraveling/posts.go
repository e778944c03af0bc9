package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
)

func newPostsCmd(opts *options) *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List published posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(cmd.ErrOrStderr(), false); err != nil {
				return err
			}
			ctx := cmd.Context()
			repo := spacetraveling.NewContentSource(opts.cfg, opts.logger)

			first, err := repo.FirstPage(ctx)
			if err != nil {
				return err
			}
			listing := repo.NewListing(first)

			updates, unsubscribe := listing.Subscribe(1)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for s := range updates {
					opts.logger.Debug("page merged", "posts", len(s.Posts), "has_more", s.HasMore())
				}
			}()

			pages, err := paginate.Drain(ctx, listing, maxPages)
			unsubscribe()
			<-done
			if err != nil {
				return fmt.Errorf("after %d pages: %w", pages+1, err)
			}

			posts := listing.Posts()
			printPosts(cmd.OutOrStdout(), posts)
			opts.logger.Info("listing done", "posts", len(posts), "pages", pages+1, "has_more", listing.HasMore())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many additional pages (0: no limit)")
	return cmd
}

func printPosts(w io.Writer, posts []content.PostSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAGE\tUID\tTITLE\tAUTHOR")
	for _, p := range posts {
		age := "-"
		if p.FirstPublicationDate != nil {
			age = humanize.Time(*p.FirstPublicationDate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			orDash(spacetraveling.FormatDate(p.FirstPublicationDate)), age, orDash(p.UID), p.Title, p.Author)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
