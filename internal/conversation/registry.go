package conversation

import (
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a view may go unused before the registry forgets it.
const DefaultIdleTimeout = 24 * time.Hour

// Registry keeps one View per browser session key. Views unused for longer than the idle timeout are
// evicted, except while an answer is streaming into them.
type Registry struct {
	mu        sync.Mutex
	views     map[string]*entry
	idle      time.Duration
	lastSweep time.Time
}

type entry struct {
	view     *View
	lastUsed time.Time
}

// NewRegistry creates an empty Registry. A non-positive idle timeout disables eviction.
func NewRegistry(idle time.Duration) *Registry {
	return &Registry{
		views:     make(map[string]*entry),
		idle:      idle,
		lastSweep: time.Now(),
	}
}

// View returns the view of key, creating it on first use.
func (r *Registry) View(key string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.idle > 0 && now.Sub(r.lastSweep) >= r.idle {
		r.sweepLocked(now)
	}

	e, ok := r.views[key]
	if !ok {
		e = &entry{view: &View{}}
		r.views[key] = e
	}
	e.lastUsed = now
	return e.view
}

// Drop forgets the view of key. Streams still writing to it keep a detached copy.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.views, key)
}

// Sweep evicts the views idle at now and returns how many were evicted. View calls it periodically.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sweepLocked(now)
}

func (r *Registry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	if r.idle <= 0 {
		return 0
	}

	var n int
	for key, e := range r.views {
		if now.Sub(e.lastUsed) < r.idle || e.view.Streaming() {
			continue
		}
		delete(r.views, key)
		n++
	}
	return n
}
