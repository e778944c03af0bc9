package spacetraveling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
	"github.com/eringen/spacetraveling/prismic"
)

type countingSource struct {
	mu         sync.Mutex
	firstCalls int
	postCalls  map[string]int
	posts      map[string]content.PostDetail
	failFirst  error
}

func newCountingSource() *countingSource {
	return &countingSource{
		postCalls: make(map[string]int),
		posts: map[string]content.PostDetail{
			"hooks": {PostSummary: content.PostSummary{UID: "hooks", Title: "Como utilizar Hooks"}},
		},
	}
}

func (s *countingSource) FirstPage(ctx context.Context) (paginate.Page[content.PostSummary], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstCalls++
	if s.failFirst != nil {
		return paginate.Page[content.PostSummary]{}, s.failFirst
	}
	return paginate.Page[content.PostSummary]{
		Results:    []content.PostSummary{{UID: "hooks"}},
		NextCursor: "cursor-A",
	}, nil
}

func (s *countingSource) FetchPage(ctx context.Context, cursor string) (paginate.Page[content.PostSummary], error) {
	return paginate.Page[content.PostSummary]{}, nil
}

func (s *countingSource) Post(ctx context.Context, uid string) (content.PostDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postCalls[uid]++
	p, ok := s.posts[uid]
	if !ok {
		return content.PostDetail{}, prismic.ErrNotFound
	}
	return p, nil
}

func TestPostCacheFirstPage(t *testing.T) {
	src := newCountingSource()
	c := NewPostCache(src, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		page, err := c.FirstPage(ctx)
		if err != nil {
			t.Fatalf("FirstPage: %v", err)
		}
		if page.NextCursor != "cursor-A" || len(page.Results) != 1 {
			t.Fatalf("unexpected page %+v", page)
		}
	}
	if src.firstCalls != 1 {
		t.Fatalf("source called %d times, want 1", src.firstCalls)
	}

	c.Invalidate()
	if _, err := c.FirstPage(ctx); err != nil {
		t.Fatal(err)
	}
	if src.firstCalls != 2 {
		t.Fatalf("source called %d times after Invalidate, want 2", src.firstCalls)
	}
}

func TestPostCacheExpires(t *testing.T) {
	src := newCountingSource()
	c := NewPostCache(src, 20*time.Millisecond)
	ctx := context.Background()

	if _, err := c.FirstPage(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := c.FirstPage(ctx); err != nil {
		t.Fatal(err)
	}
	if src.firstCalls != 2 {
		t.Fatalf("source called %d times, want 2", src.firstCalls)
	}
}

func TestPostCacheDoesNotCacheErrors(t *testing.T) {
	src := newCountingSource()
	src.failFirst = prismic.ErrFetchFailed
	c := NewPostCache(src, time.Hour)
	ctx := context.Background()

	if _, err := c.FirstPage(ctx); !errors.Is(err, prismic.ErrFetchFailed) {
		t.Fatalf("FirstPage error = %v, want ErrFetchFailed", err)
	}
	src.failFirst = nil
	if _, err := c.FirstPage(ctx); err != nil {
		t.Fatalf("FirstPage after recovery: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Post(ctx, "missing"); !errors.Is(err, prismic.ErrNotFound) {
			t.Fatalf("Post error = %v, want ErrNotFound", err)
		}
	}
	if src.postCalls["missing"] != 2 {
		t.Fatalf("misses were cached: %d calls", src.postCalls["missing"])
	}
}

func TestPostCachePost(t *testing.T) {
	src := newCountingSource()
	c := NewPostCache(src, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Post(ctx, "hooks")
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		if p.Title != "Como utilizar Hooks" {
			t.Fatalf("Title = %q", p.Title)
		}
	}
	if src.postCalls["hooks"] != 1 {
		t.Fatalf("source called %d times, want 1", src.postCalls["hooks"])
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}
