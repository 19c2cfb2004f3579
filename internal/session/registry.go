package session

import (
	"sync"
	"time"
)

// Registry holds the open reviews of a long-running server between the
// requests that drive them. Reviews idle for longer than the TTL are dropped.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	reviews map[string]*registered
}

type registered struct {
	review  *Review
	touched time.Time
}

// NewRegistry creates a Registry. A non-positive ttl keeps reviews until
// they are removed.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, now: time.Now, reviews: make(map[string]*registered)}
}

// Add registers r under its ID.
func (g *Registry) Add(r *Review) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.sweepLocked(now)
	g.reviews[r.ID] = &registered{review: r, touched: now}
}

// Get returns the review with the given ID and marks it as used.
func (g *Registry) Get(id string) (*Review, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.sweepLocked(now)
	e, ok := g.reviews[id]
	if !ok {
		return nil, false
	}
	e.touched = now
	return e.review, true
}

// Remove forgets the review with the given ID.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reviews, id)
}

// Len returns the number of live reviews.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(g.now())
	return len(g.reviews)
}

func (g *Registry) sweepLocked(now time.Time) {
	if g.ttl <= 0 {
		return
	}
	for id, e := range g.reviews {
		if now.Sub(e.touched) > g.ttl {
			delete(g.reviews, id)
		}
	}
}
