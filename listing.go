package spacetraveling

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/paginate"
)

// ErrListingNotFound is returned for listing ids that are unknown or expired.
var ErrListingNotFound = errors.New("spacetraveling: listing not found")

// Listing is the post listing of one visitor.
type Listing = paginate.Accumulator[content.PostSummary]

// ListingRegistry keeps the listings of active visitors keyed by a random id.
// The browser only ever sees the id; CMS cursors stay on the server. Listings
// idle for longer than the TTL are dropped, and when the registry is full the
// least recently used listing is evicted.
type ListingRegistry struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*listingEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type listingEntry struct {
	listing  *Listing
	lastUsed time.Time
}

// NewListingRegistry creates a registry. Call Stop to end its cleanup
// goroutine.
func NewListingRegistry(ttl time.Duration, max int) *ListingRegistry {
	r := &ListingRegistry{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*listingEntry),
		stop:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

func (r *ListingRegistry) cleanup() {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep drops expired listings and returns how many were dropped.
func (r *ListingRegistry) sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) >= r.ttl {
			delete(r.entries, id)
			dropped++
		}
	}
	return dropped
}

// Create stores l and returns its id.
func (r *ListingRegistry) Create(l *Listing) string {
	id := uuid.NewString()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.entries) >= r.max {
		r.evictOldestLocked()
	}
	r.entries[id] = &listingEntry{listing: l, lastUsed: now}
	return id
}

func (r *ListingRegistry) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range r.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	delete(r.entries, oldestID)
}

// Get returns the listing with the given id and marks it as used.
func (r *ListingRegistry) Get(id string) (*Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrListingNotFound
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	if now.Sub(e.lastUsed) >= r.ttl {
		delete(r.entries, id)
		return nil, ErrListingNotFound
	}
	e.lastUsed = now
	return e.listing, nil
}

// Drop removes the listing with the given id.
func (r *ListingRegistry) Drop(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len returns the number of stored listings.
func (r *ListingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (r *ListingRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}
