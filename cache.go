package spacetraveling

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
)

// PostCache is an in-memory TTL cache in front of a ContentSource. It keeps
// the first listing page and post details by uid. Further listing pages are
// not cached; their cursors are tied to the ref they were issued for.
type PostCache struct {
	src ContentSource
	ttl time.Duration

	mu        sync.RWMutex
	first     paginate.Page[content.PostSummary]
	firstOK   bool
	fetched   time.Time
	posts     map[string]cachedPost
	lastPrune time.Time
}

type cachedPost struct {
	post    content.PostDetail
	fetched time.Time
}

// NewPostCache creates a PostCache backed by src.
func NewPostCache(src ContentSource, ttl time.Duration) *PostCache {
	return &PostCache{src: src, ttl: ttl, posts: make(map[string]cachedPost)}
}

func (c *PostCache) fresh(t time.Time) bool {
	return time.Since(t) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.first = paginate.Page[content.PostSummary]{}
	c.firstOK = false
	c.posts = make(map[string]cachedPost)
	c.mu.Unlock()
}

// FirstPage returns the first listing page. Callers must not modify the
// returned Results.
func (c *PostCache) FirstPage(ctx context.Context) (paginate.Page[content.PostSummary], error) {
	c.mu.RLock()
	if c.firstOK && c.fresh(c.fetched) {
		page := c.first
		c.mu.RUnlock()
		return page, nil
	}
	c.mu.RUnlock()

	page, err := c.src.FirstPage(ctx)
	if err != nil {
		return paginate.Page[content.PostSummary]{}, err
	}

	c.mu.Lock()
	c.first = page
	c.firstOK = true
	c.fetched = time.Now()
	c.mu.Unlock()
	return page, nil
}

// Post returns the post whose uid is uid. Lookups that fail are not cached,
// so a post published after a miss shows up on the next request.
func (c *PostCache) Post(ctx context.Context, uid string) (content.PostDetail, error) {
	c.mu.RLock()
	cp, ok := c.posts[uid]
	c.mu.RUnlock()
	if ok && c.fresh(cp.fetched) {
		return cp.post, nil
	}

	post, err := c.src.Post(ctx, uid)
	if err != nil {
		return content.PostDetail{}, err
	}

	now := time.Now()
	c.mu.Lock()
	c.posts[uid] = cachedPost{post: post, fetched: now}
	if now.Sub(c.lastPrune) > c.ttl {
		c.pruneLocked()
		c.lastPrune = now
	}
	c.mu.Unlock()
	return post, nil
}

// Len returns the number of cached post details.
func (c *PostCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

func (c *PostCache) pruneLocked() {
	for uid, cp := range c.posts {
		if !c.fresh(cp.fetched) {
			delete(c.posts, uid)
		}
	}
}
