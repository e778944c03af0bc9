package spacetraveling

import (
	"context"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
)

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, absolute
	JSONLD      string
}

// ContentSource is where the App reads posts from. *content.Repository
// implements it.
type ContentSource interface {
	paginate.Fetcher[content.PostSummary]
	FirstPage(ctx context.Context) (paginate.Page[content.PostSummary], error)
	Post(ctx context.Context, uid string) (content.PostDetail, error)
}
