package client

import (
	"sync"

	"github.com/Guyuepp/engagement-sync/domain"
)

// StateCache holds the current belief about liked-state and view count for
// every subject on screen. It is the single mutable point of truth on the
// client: the optimistic value lives here, not in controller-local state, so
// rapid repeated toggles compose against whatever the cache currently holds.
//
// StateCache does no I/O and has no error conditions. Its lifecycle is one
// page session: construct it, seed it, drop it on navigation.
type StateCache struct {
	mu    sync.RWMutex
	liked map[domain.SubjectRef]bool
	views map[domain.SubjectRef]int64

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(domain.SubjectRef)
}

func NewStateCache() *StateCache {
	return &StateCache{
		liked: make(map[domain.SubjectRef]bool),
		views: make(map[domain.SubjectRef]int64),
		subs:  make(map[int]func(domain.SubjectRef)),
	}
}

// Liked returns the current liked belief, false for an unknown subject.
func (c *StateCache) Liked(ref domain.SubjectRef) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liked[ref]
}

// SetLiked overwrites the liked belief unconditionally. Used both for the
// optimistic apply and for reconciliation.
func (c *StateCache) SetLiked(ref domain.SubjectRef, liked bool) {
	c.setLiked(ref, liked)
	c.notify(ref)
}

// setLiked is the mutation without the notification, for callers that must
// delay the callback until their own lock is released.
func (c *StateCache) setLiked(ref domain.SubjectRef, liked bool) {
	c.mu.Lock()
	c.liked[ref] = liked
	c.mu.Unlock()
}

// ToggleLiked flips the belief and returns the new value, so the caller can
// remember the prior value for rollback in one step.
func (c *StateCache) ToggleLiked(ref domain.SubjectRef) bool {
	next := c.toggleLiked(ref)
	c.notify(ref)
	return next
}

func (c *StateCache) toggleLiked(ref domain.SubjectRef) bool {
	c.mu.Lock()
	next := !c.liked[ref]
	c.liked[ref] = next
	c.mu.Unlock()
	return next
}

func (c *StateCache) ViewCount(ref domain.SubjectRef) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.views[ref]
}

func (c *StateCache) SetViewCount(ref domain.SubjectRef, n int64) {
	c.mu.Lock()
	c.views[ref] = n
	c.mu.Unlock()
	c.notify(ref)
}

// SeedMany bulk-overwrites from a server snapshot. It never merges: the
// snapshot is authoritative at load time. Skipping subjects with an in-flight
// toggle is the Controller's contract, not the cache's.
func (c *StateCache) SeedMany(snaps []domain.EngagementSnapshot) {
	c.seedMany(snaps)
	for i := range snaps {
		c.notify(snaps[i].Subject)
	}
}

func (c *StateCache) seedMany(snaps []domain.EngagementSnapshot) {
	if len(snaps) == 0 {
		return
	}
	c.mu.Lock()
	for i := range snaps {
		c.liked[snaps[i].Subject] = snaps[i].Liked
		c.views[snaps[i].Subject] = snaps[i].ViewCount
	}
	c.mu.Unlock()
}

// Subscribe registers fn to be called with each subject whose entry changed,
// so re-render stays confined to the affected item. Callbacks run with no
// lock held, so fn may read the cache and call back into the Controller. The
// returned func cancels the subscription.
func (c *StateCache) Subscribe(fn func(domain.SubjectRef)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// notify runs outside the data lock so a subscriber may read the cache.
func (c *StateCache) notify(ref domain.SubjectRef) {
	c.subMu.Lock()
	fns := make([]func(domain.SubjectRef), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ref)
	}
}
