package client

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/engagement-sync/domain"
)

// ResultStatus tells the UI what a finished toggle needs from it.
type ResultStatus int8

const (
	// ResultApplied means the cache now holds the confirmed value
	// (includes the duplicate/idempotent case).
	ResultApplied ResultStatus = iota + 1
	// ResultSignInRequired means the toggle was rolled back and the UI
	// should prompt for sign-in.
	ResultSignInRequired
	// ResultDenied means a policy gate rejected the action; Notice carries
	// the server's reason verbatim.
	ResultDenied
	// ResultGone means the subject vanished; rolled back silently.
	ResultGone
	// ResultRetryable means a transient failure was rolled back; the caller
	// may invoke Toggle again to retry.
	ResultRetryable
	// ResultSuperseded means a newer toggle for the same subject was issued
	// while this one was in flight; this response was discarded.
	ResultSuperseded
)

type ToggleResult struct {
	Liked  bool
	Status ResultStatus
	Notice string
}

const (
	SignInNotice = "sign in to continue"
	RetryNotice  = "something went wrong, please try again"
)

type pendingToggle struct {
	previousLiked bool
	seq           uint64
}

// Controller orchestrates one user-initiated toggle or one page-view event:
// it applies the optimistic mutation to the StateCache, issues exactly one
// request through the Syncer, and reconciles the result (confirm or roll
// back). Per subject it keeps a monotonic sequence number; a response that is
// no longer the latest issued request is discarded instead of racing the
// newer one to the cache.
type Controller struct {
	cache *StateCache
	sync  Syncer

	mu      sync.Mutex
	seq     map[domain.SubjectRef]uint64
	pending map[domain.SubjectRef]pendingToggle
}

func NewController(cache *StateCache, syncer Syncer) *Controller {
	return &Controller{
		cache:   cache,
		sync:    syncer,
		seq:     make(map[domain.SubjectRef]uint64),
		pending: make(map[domain.SubjectRef]pendingToggle),
	}
}

// Toggle flips the liked-state of ref optimistically and reconciles it with
// the server. The cache is updated before this returns control to the
// network, so the UI re-renders with zero perceived latency. Safe to call
// again for the same subject while a previous call is still blocked: the
// second call re-runs the optimistic step against the current cache value
// and supersedes the first.
func (c *Controller) Toggle(ctx context.Context, ref domain.SubjectRef) ToggleResult {
	c.mu.Lock()
	wasLiked := c.cache.Liked(ref)
	newLiked := c.cache.toggleLiked(ref)
	c.seq[ref]++
	mySeq := c.seq[ref]
	c.pending[ref] = pendingToggle{previousLiked: wasLiked, seq: mySeq}
	c.mu.Unlock()
	// Notify outside the lock: a subscriber may call back into the controller.
	c.cache.notify(ref)

	out := c.sync.RequestToggle(ctx, ref, newLiked)

	c.mu.Lock()

	if c.seq[ref] != mySeq {
		// A newer toggle owns the pending entry now; this response must
		// not touch the cache.
		liked := c.cache.Liked(ref)
		c.mu.Unlock()
		return ToggleResult{Liked: liked, Status: ResultSuperseded}
	}
	delete(c.pending, ref)

	var res ToggleResult
	reconciled := true
	switch out.Status {
	case ToggleConfirmed:
		// The optimistic value is the confirmed value.
		reconciled = false
		res = ToggleResult{Liked: newLiked, Status: ResultApplied}
	case ToggleAlreadyApplied:
		// Same effective value, but make the "already true" case explicit.
		c.cache.setLiked(ref, newLiked)
		res = ToggleResult{Liked: newLiked, Status: ResultApplied}
	case ToggleRequiresAuth:
		c.cache.setLiked(ref, wasLiked)
		res = ToggleResult{Liked: wasLiked, Status: ResultSignInRequired, Notice: SignInNotice}
	case ToggleForbidden:
		c.cache.setLiked(ref, wasLiked)
		res = ToggleResult{Liked: wasLiked, Status: ResultDenied, Notice: out.Message}
	case ToggleNotFound:
		c.cache.setLiked(ref, wasLiked)
		logrus.Infof("toggle target %s is gone, rolled back", ref)
		res = ToggleResult{Liked: wasLiked, Status: ResultGone}
	default:
		c.cache.setLiked(ref, wasLiked)
		logrus.Warnf("toggle for %s failed: %s", ref, out.Message)
		res = ToggleResult{Liked: wasLiked, Status: ResultRetryable, Notice: RetryNotice}
	}
	c.mu.Unlock()

	if reconciled {
		c.cache.notify(ref)
	}
	return res
}

// SeedSettled writes server snapshots into the cache, skipping any subject
// whose toggle is still in flight. Filtering and writing happen under the
// controller lock, so a toggle cannot start between the pending check and
// the write and then be clobbered by the stale snapshot.
func (c *Controller) SeedSettled(snaps []domain.EngagementSnapshot) {
	c.mu.Lock()
	settled := make([]domain.EngagementSnapshot, 0, len(snaps))
	for i := range snaps {
		if _, ok := c.pending[snaps[i].Subject]; ok {
			continue
		}
		settled = append(settled, snaps[i])
	}
	c.cache.seedMany(settled)
	c.mu.Unlock()

	for i := range settled {
		c.cache.notify(settled[i].Subject)
	}
}

// RecordView applies the optimistic +1 so the viewer sees the bump without
// delay, then fires one best-effort increment. A confirmed response
// overwrites with the server's authoritative count (other viewers may have
// raced in); a skipped one keeps the optimistic value — undercounting a real
// view is worse than a transient overcount, so views are never rolled back.
// Returns the count now held in the cache.
func (c *Controller) RecordView(ctx context.Context, ref domain.SubjectRef) int64 {
	optimistic := c.cache.ViewCount(ref) + 1
	c.cache.SetViewCount(ref, optimistic)

	out := c.sync.RequestViewIncrement(ctx, ref)
	if out.Confirmed {
		c.cache.SetViewCount(ref, out.Count)
		return out.Count
	}
	return c.cache.ViewCount(ref)
}

// HasPending reports whether a toggle for ref is still unreconciled. The
// Bootstrapper consults this so a list refresh cannot clobber an optimistic
// value mid-flight.
func (c *Controller) HasPending(ref domain.SubjectRef) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[ref]
	return ok
}
