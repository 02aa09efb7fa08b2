package cache

import (
	"context"
	"errors"
	"time"

	"github.com/mozilla-services/tiles-edge/internal/adm"
	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// Outcome names which branch of the request protocol was taken, so the
// front door can pick an HTTP status and the right counter without
// re-deriving either from Result's other fields.
type Outcome int

const (
	// OutcomeHit served a Fresh, unexpired slot. Counter tiles_cache.hit.
	OutcomeHit Outcome = iota
	// OutcomeHitRefreshing served a Refreshing slot's stale content.
	// Counter tiles_cache.hit.refreshing.
	OutcomeHitRefreshing
	// OutcomeMissPopulating found another caller already populating this
	// key and returned immediately without running C5. Counter
	// tiles_cache.miss.populating.
	OutcomeMissPopulating
	// OutcomePopulated ran C5 to completion and installed a Fresh slot.
	// Counter tiles_cache.miss.
	OutcomePopulated
	// OutcomeBadAdmResponse ran C5, got an unparseable upstream body,
	// and cached the empty response to suppress repeat bad calls.
	OutcomeBadAdmResponse
	// OutcomeFetchError ran C5 and failed with LoadError, ServerError, or
	// anything else; the slot was left untouched for the next retry.
	OutcomeFetchError
)

// Result is what Resolve returns; Content is meaningful for every Outcome
// except OutcomeMissPopulating and OutcomeFetchError.
type Result struct {
	Outcome Outcome
	Content tiles.Content
	Err     error
}

// Populate runs C5 (tiles.Assemble, bound to one audience key and
// request) and returns either the serialized content or a fetch-level
// error.
type Populate func(ctx context.Context) (tiles.Content, error)

// Resolve runs the ten-step request protocol: consult the slot, and on a
// miss or stale hit, single-flight exactly one populate call per key.
func (c *AudienceCache) Resolve(ctx context.Context, key string, populate Populate, ttlBase time.Duration, jitterPercent int) Result {
	now := time.Now()
	expired := false

	if slot, ok := c.Get(key); ok {
		switch slot.Kind {
		case KindFresh:
			if !slot.Expired(now) {
				return Result{Outcome: OutcomeHit, Content: slot.Cached.Content}
			}
			expired = true
		case KindRefreshing:
			return Result{Outcome: OutcomeHitRefreshing, Content: slot.Cached.Content}
		case KindPopulating:
			return Result{Outcome: OutcomeMissPopulating}
		}
	}

	handle := c.PrepareWrite(key, expired)
	defer handle.Close()

	if handle.noop {
		// Another caller reserved the slot between Get and PrepareWrite;
		// serve whatever that caller left behind instead of fetching again.
		if slot, ok := c.Get(key); ok {
			switch slot.Kind {
			case KindFresh:
				return Result{Outcome: OutcomeHit, Content: slot.Cached.Content}
			case KindRefreshing:
				return Result{Outcome: OutcomeHitRefreshing, Content: slot.Cached.Content}
			}
		}
		return Result{Outcome: OutcomeMissPopulating}
	}

	content, err := populate(ctx)
	if err != nil {
		var fetchErr *adm.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Kind == adm.KindBadAdmResponse {
			handle.Insert(Slot{Kind: KindFresh, Cached: Cached{
				Content:   tiles.EmptyContent,
				ExpiresAt: ExpiryWith(now, ttlBase, jitterPercent),
			}})
			return Result{Outcome: OutcomeBadAdmResponse, Content: tiles.EmptyContent, Err: err}
		}
		return Result{Outcome: OutcomeFetchError, Err: err}
	}

	handle.Insert(Slot{Kind: KindFresh, Cached: Cached{
		Content:   content,
		ExpiresAt: ExpiryWith(now, ttlBase, jitterPercent),
	}})
	return Result{Outcome: OutcomePopulated, Content: content}
}
