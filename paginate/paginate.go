// Package paginate accumulates results from a cursor-paginated content API.
//
// A State is a plain value holding every item fetched so far, the cursor of
// the next page and whether the listing is exhausted. An Accumulator owns one
// State, fetches the next page on demand and allows at most one fetch in
// flight. The cursor is opaque: it is stored and replayed verbatim.
package paginate

//go:generate mockgen -source=paginate.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrInFlight is returned by LoadMore when another load on the same
// Accumulator has not completed yet. State is left unchanged.
var ErrInFlight = errors.New("paginate: load already in flight")

// Page is one batch of results plus the cursor for the next batch.
// An empty NextCursor means there are no further pages.
type Page[T any] struct {
	Results    []T
	NextCursor string
}

// Fetcher fetches the page identified by cursor.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, cursor string) (Page[T], error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// FetchPage calls f(ctx, cursor).
func (f FetcherFunc[T]) FetchPage(ctx context.Context, cursor string) (Page[T], error) {
	return f(ctx, cursor)
}

// State is the accumulated result of a listing. Exhausted is true iff
// NextCursor is empty. Items only ever get appended.
type State[T any] struct {
	Posts      []T
	NextCursor string
	Exhausted  bool
}

// NewState builds the state for a first page.
func NewState[T any](initial []T, cursor string) State[T] {
	return State[T]{
		Posts:      slices.Clip(initial),
		NextCursor: cursor,
		Exhausted:  cursor == "",
	}
}

// HasMore reports whether another page can be fetched.
func (s State[T]) HasMore() bool {
	return !s.Exhausted
}

// Merge returns the state after appending p. The receiver is not modified and
// the returned Posts never shares a backing array with it. A page with no
// results but a cursor does not exhaust the listing.
func (s State[T]) Merge(p Page[T]) State[T] {
	posts := make([]T, 0, len(s.Posts)+len(p.Results))
	posts = append(posts, s.Posts...)
	posts = append(posts, p.Results...)
	return State[T]{
		Posts:      posts,
		NextCursor: p.NextCursor,
		Exhausted:  p.NextCursor == "",
	}
}

// Accumulator owns a State and extends it one page at a time.
type Accumulator[T any] struct {
	fetcher Fetcher[T]

	mu       sync.Mutex
	state    State[T]
	inFlight bool
	subs     map[int]chan State[T]
	nextSub  int
}

// New creates an Accumulator seeded with the first page.
func New[T any](f Fetcher[T], initial []T, cursor string) *Accumulator[T] {
	return &Accumulator[T]{
		fetcher: f,
		state:   NewState(initial, cursor),
		subs:    make(map[int]chan State[T]),
	}
}

// State returns a snapshot of the current state.
func (a *Accumulator[T]) State() State[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Posts returns the accumulated items in arrival order.
func (a *Accumulator[T]) Posts() []T {
	return a.State().Posts
}

// Len returns the number of accumulated items.
func (a *Accumulator[T]) Len() int {
	return len(a.State().Posts)
}

// Cursor returns the stored cursor and whether one is present.
func (a *Accumulator[T]) Cursor() (string, bool) {
	s := a.State()
	return s.NextCursor, s.NextCursor != ""
}

// HasMore reports whether another page can be fetched.
func (a *Accumulator[T]) HasMore() bool {
	return a.State().HasMore()
}

// Loading reports whether a LoadMore call is outstanding.
func (a *Accumulator[T]) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// LoadMore fetches the next page and appends its results.
//
// When the listing is exhausted it returns (nil, nil) without calling the
// fetcher. When another load is in flight it returns ErrInFlight. A fetch
// error is returned unchanged and leaves the state exactly as it was; no
// retry is attempted. On success it returns the appended results.
func (a *Accumulator[T]) LoadMore(ctx context.Context) ([]T, error) {
	a.mu.Lock()
	if a.state.Exhausted {
		a.mu.Unlock()
		return nil, nil
	}
	if a.inFlight {
		a.mu.Unlock()
		return nil, ErrInFlight
	}
	a.inFlight = true
	cursor := a.state.NextCursor
	a.mu.Unlock()

	page, err := a.fetcher.FetchPage(ctx, cursor)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
	if err != nil {
		return nil, err
	}
	a.state = a.state.Merge(page)
	a.publish(a.state)
	return slices.Clip(a.state.Posts[len(a.state.Posts)-len(page.Results):]), nil
}

// Subscribe returns a channel that receives the new state after every
// successful merge. Deliveries are non-blocking: a subscriber whose buffer is
// full misses that update. The returned func unsubscribes and closes the
// channel.
func (a *Accumulator[T]) Subscribe(buffer int) (<-chan State[T], func()) {
	ch := make(chan State[T], buffer)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with a.mu held.
func (a *Accumulator[T]) publish(s State[T]) {
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Drain calls LoadMore until the listing is exhausted or maxPages pages have
// been merged. maxPages <= 0 means no limit. It returns the number of pages
// merged and stops at the first error.
func Drain[T any](ctx context.Context, a *Accumulator[T], maxPages int) (int, error) {
	pages := 0
	for a.HasMore() {
		if maxPages > 0 && pages >= maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if _, err := a.LoadMore(ctx); err != nil {
			return pages, err
		}
		pages++
	}
	return pages, nil
}
