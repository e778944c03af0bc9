package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/readtime"
	"github.com/eringen/spacetraveling/richtext"
)

func newPostCmd(opts *options) *cobra.Command {
	var showBody bool
	cmd := &cobra.Command{
		Use:   "post <uid>",
		Short: "Show one post with its reading time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd.ErrOrStderr(), false); err != nil {
				return err
			}
			repo := spacetraveling.NewContentSource(opts.cfg, opts.logger)
			post, err := repo.Post(cmd.Context(), args[0])
			if errors.Is(err, prismic.ErrNotFound) {
				return fmt.Errorf("no post with uid %q", args[0])
			}
			if err != nil {
				return err
			}

			words := 0
			for _, s := range post.Content {
				words += readtime.CountWords(richtext.AsText(s.Body))
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, post.Title)
			if post.Subtitle != "" {
				fmt.Fprintln(w, post.Subtitle)
			}
			fmt.Fprintf(w, "%s · %s · %s (%s words)\n",
				orDash(spacetraveling.FormatDate(post.FirstPublicationDate)),
				orDash(post.Author),
				readtime.Format(post.ReadingTime()),
				humanize.Comma(int64(words)))
			fmt.Fprintln(w, spacetraveling.PostURL(opts.cfg.URL, post.UID))

			for _, s := range post.Content {
				fmt.Fprintf(w, "\n## %s\n", s.Heading)
				if showBody {
					fmt.Fprintln(w, strings.TrimSpace(richtext.AsText(s.Body)))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showBody, "body", false, "print section bodies as plain text")
	return cmd
}
