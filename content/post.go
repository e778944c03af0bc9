// Package content maps CMS documents to the posts shown by the site.
package content

import (
	"fmt"
	"time"

	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/readtime"
	"github.com/eringen/spacetraveling/richtext"
)

// PostSummary is a post as listed on the home page.
type PostSummary struct {
	UID                  string
	FirstPublicationDate *time.Time
	Title                string
	Subtitle             string
	Author               string
}

// Link returns the path of the post page, or "" if the post has no uid.
func (p PostSummary) Link() string {
	if p.UID == "" {
		return ""
	}
	return PostPath(p.UID)
}

// PostPath returns the path of the post page for uid.
func PostPath(uid string) string {
	return "/post/" + uid + "/"
}

// Section is one heading and its body.
type Section struct {
	Heading string
	Body    richtext.Blocks
}

// PostDetail is a full post.
type PostDetail struct {
	PostSummary
	BannerURL string
	Content   []Section
}

// ReadingTime returns the estimated reading time in minutes.
func (p PostDetail) ReadingTime() int {
	bodies := make([]richtext.Blocks, len(p.Content))
	for i, s := range p.Content {
		bodies[i] = s.Body
	}
	return readtime.Estimate(bodies...)
}

// ResolveLink maps links between posts to post pages.
func ResolveLink(l richtext.Link) string {
	if l.UID == "" {
		return ""
	}
	return PostPath(l.UID)
}

// postData is the custom type of a post document.
type postData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading string          `json:"heading"`
		Body    richtext.Blocks `json:"body"`
	} `json:"content"`
}

func publicationDate(d prismic.Document) *time.Time {
	if d.FirstPublicationDate == nil || d.FirstPublicationDate.IsZero() {
		return nil
	}
	t := d.FirstPublicationDate.Time
	return &t
}

// SummaryFromDocument builds a PostSummary from a post document.
func SummaryFromDocument(d prismic.Document) (PostSummary, error) {
	var data postData
	if err := d.DecodeData(&data); err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  d.UID,
		FirstPublicationDate: publicationDate(d),
		Title:                data.Title,
		Subtitle:             data.Subtitle,
		Author:               data.Author,
	}, nil
}

// DetailFromDocument builds a PostDetail from a post document.
func DetailFromDocument(d prismic.Document) (PostDetail, error) {
	var data postData
	if err := d.DecodeData(&data); err != nil {
		return PostDetail{}, err
	}
	detail := PostDetail{
		PostSummary: PostSummary{
			UID:                  d.UID,
			FirstPublicationDate: publicationDate(d),
			Title:                data.Title,
			Subtitle:             data.Subtitle,
			Author:               data.Author,
		},
		BannerURL: data.Banner.URL,
		Content:   make([]Section, 0, len(data.Content)),
	}
	for _, c := range data.Content {
		detail.Content = append(detail.Content, Section{Heading: c.Heading, Body: c.Body})
	}
	return detail, nil
}

func summaries(docs []prismic.Document) ([]PostSummary, error) {
	out := make([]PostSummary, 0, len(docs))
	for _, d := range docs {
		s, err := SummaryFromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", prismic.ErrFetchFailed, err)
		}
		out = append(out, s)
	}
	return out, nil
}
