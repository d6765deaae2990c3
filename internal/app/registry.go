package app

import (
	"sync"
	"time"
)

// FlowRegistry tracks in-flight confirmation flows keyed by the pending
// transaction id the biller handed back on initiate. Entries expire after a
// TTL so an abandoned flow cannot pin a coordinator forever; the upstream
// pending transaction has its own server-side expiry and a late confirm
// against it fails with a typed error anyway.
type FlowRegistry struct {
	mu      sync.Mutex
	entries map[string]flowEntry
	ttl     time.Duration
	now     func() time.Time
}

type flowEntry struct {
	coordinator *Coordinator
	expiresAt   time.Time
}

const defaultFlowTTL = 15 * time.Minute

func NewFlowRegistry(ttl time.Duration) *FlowRegistry {
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}
	return &FlowRegistry{
		entries: make(map[string]flowEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Register stores the coordinator under the pending transaction id,
// replacing any stale entry with the same key.
func (r *FlowRegistry) Register(pendingID string, c *Coordinator) {
	if pendingID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[pendingID] = flowEntry{
		coordinator: c,
		expiresAt:   r.now().Add(r.ttl),
	}
}

// Lookup returns the live coordinator for a pending transaction id.
func (r *FlowRegistry) Lookup(pendingID string) (*Coordinator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[pendingID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	if r.now().After(entry.expiresAt) {
		delete(r.entries, pendingID)
		return nil, ErrFlowNotFound
	}
	return entry.coordinator, nil
}

// Remove drops a flow once it reaches a terminal state.
func (r *FlowRegistry) Remove(pendingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, pendingID)
}

// sweepLocked evicts expired entries. Called from Register so the map is
// bounded without a background goroutine.
func (r *FlowRegistry) sweepLocked() {
	now := r.now()
	for id, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, id)
		}
	}
}
