package form

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
)

// Registry keeps one Controller per browser session
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Controller
	predictor Predictor
	ttl       time.Duration
	onSweep   func(remaining int)
}

// NewRegistry creates a registry whose sessions expire after ttl of inactivity
func NewRegistry(p Predictor, ttl time.Duration) *Registry {
	return &Registry{
		sessions:  make(map[string]*Controller),
		predictor: p,
		ttl:       ttl,
	}
}

// Get returns the controller for id. Unknown or empty ids get a fresh session;
// the returned id is the one the caller should keep using.
func (r *Registry) Get(id string) (*Controller, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[id]; ok && id != "" {
		return c, id
	}

	id = uuid.NewString()
	c := NewController(r.predictor)
	r.sessions[id] = c
	logger.Debug("Session created", "session", id, "total_sessions", len(r.sessions))
	return c, id
}

// OnSweep registers fn to receive the live session count after each sweep
func (r *Registry) OnSweep(fn func(remaining int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSweep = fn
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL. Sessions with a
// prediction in flight are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.sessions {
		idle, busy := c.idleSince(now)
		if !busy && idle > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("Expired sessions swept", "removed", removed, "remaining", len(r.sessions))
	}
	if r.onSweep != nil {
		r.onSweep(len(r.sessions))
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
