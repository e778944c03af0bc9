package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eringen/spacetraveling/paginate"
	"github.com/eringen/spacetraveling/prismic"
)

//go:generate mockgen -source=repository.go -destination=mocks/mocks.go -package=mocks

// Client is the subset of the CMS client used by Repository.
type Client interface {
	Query(ctx context.Context, preds []prismic.Predicate, opts ...prismic.QueryOption) (*prismic.SearchResponse, error)
	FetchPage(ctx context.Context, cursor string) (*prismic.SearchResponse, error)
	GetByUID(ctx context.Context, docType, uid string) (*prismic.Document, error)
}

// Options configures a Repository.
type Options struct {
	DocumentType string   // default "posts"
	PageSize     int      // default 10
	Orderings    []string // e.g. "document.first_publication_date desc"
}

// Repository reads posts from the CMS.
type Repository struct {
	client   Client
	docType  string
	pageSize int
	order    []string
	logger   *slog.Logger
}

// NewRepository creates a Repository on top of client.
func NewRepository(client Client, opts Options, logger *slog.Logger) *Repository {
	if opts.DocumentType == "" {
		opts.DocumentType = "posts"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		client:   client,
		docType:  opts.DocumentType,
		pageSize: opts.PageSize,
		order:    opts.Orderings,
		logger:   logger.With("component", "content"),
	}
}

// FirstPage returns the first page of post summaries.
func (r *Repository) FirstPage(ctx context.Context) (paginate.Page[PostSummary], error) {
	opts := []prismic.QueryOption{prismic.PageSize(r.pageSize)}
	if len(r.order) > 0 {
		opts = append(opts, prismic.Orderings(r.order...))
	}
	resp, err := r.client.Query(ctx, []prismic.Predicate{prismic.At("document.type", r.docType)}, opts...)
	if err != nil {
		return paginate.Page[PostSummary]{}, fmt.Errorf("query %s: %w", r.docType, err)
	}
	return r.toPage(resp)
}

// FetchPage returns the page of post summaries behind cursor. It implements
// paginate.Fetcher.
func (r *Repository) FetchPage(ctx context.Context, cursor string) (paginate.Page[PostSummary], error) {
	resp, err := r.client.FetchPage(ctx, cursor)
	if err != nil {
		return paginate.Page[PostSummary]{}, fmt.Errorf("fetch next page: %w", err)
	}
	return r.toPage(resp)
}

func (r *Repository) toPage(resp *prismic.SearchResponse) (paginate.Page[PostSummary], error) {
	posts, err := summaries(resp.Results)
	if err != nil {
		return paginate.Page[PostSummary]{}, err
	}
	r.logger.Debug("fetched page",
		"page", resp.Page,
		"posts", len(posts),
		"has_next", resp.Cursor() != "",
	)
	return paginate.Page[PostSummary]{Results: posts, NextCursor: resp.Cursor()}, nil
}

// Post returns the post whose uid is uid. It returns an error wrapping
// prismic.ErrNotFound when there is none.
func (r *Repository) Post(ctx context.Context, uid string) (PostDetail, error) {
	doc, err := r.client.GetByUID(ctx, r.docType, uid)
	if err != nil {
		return PostDetail{}, err
	}
	detail, err := DetailFromDocument(*doc)
	if err != nil {
		return PostDetail{}, fmt.Errorf("%w: %w", prismic.ErrFetchFailed, err)
	}
	return detail, nil
}

// NewListing returns an accumulator seeded with page.
func (r *Repository) NewListing(page paginate.Page[PostSummary]) *paginate.Accumulator[PostSummary] {
	return paginate.New[PostSummary](r, page.Results, page.NextCursor)
}

// All returns every post summary, following cursors until the listing is
// exhausted or maxPages further pages were read (maxPages <= 0: no limit).
func (r *Repository) All(ctx context.Context, maxPages int) ([]PostSummary, error) {
	first, err := r.FirstPage(ctx)
	if err != nil {
		return nil, err
	}
	listing := r.NewListing(first)
	if _, err := paginate.Drain(ctx, listing, maxPages); err != nil {
		return nil, err
	}
	return listing.Posts(), nil
}
