package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 64

// AudienceCache is a concurrent map from audience-key string to Slot,
// sharded by key hash so that unrelated keys never contend on the same
// lock. Slot transitions are atomic with respect to other writers on the
// same key: the shard lock guards only the state transition itself, never
// the upstream fetch that happens between prepare and insert.
type AudienceCache struct {
	shards []*shard
	mask   uint64
}

type shard struct {
	mu    sync.Mutex
	slots map[string]Slot
}

// New constructs an AudienceCache with shardCount shards, rounded up to
// the next power of two so the shard index can be a mask instead of a
// modulo. shardCount <= 0 selects a default.
func New(shardCount int) *AudienceCache {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{slots: map[string]Slot{}}
	}
	return &AudienceCache{shards: shards, mask: uint64(n - 1)}
}

func (c *AudienceCache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)&c.mask]
}

// Get is the O(1), non-blocking snapshot read of the public contract.
func (c *AudienceCache) Get(key string) (Slot, bool) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	slot, ok := sh.slots[key]
	sh.mu.Unlock()
	return slot, ok
}

// WriteHandle reserves a slot for one caller's single-flight population.
// If Insert is never called before Close runs, the handle restores
// whatever state it found the slot in (or removes it, if the slot didn't
// exist) — callers should always `defer handle.Close()` immediately after
// PrepareWrite, the same way a scoped cleanup runs in languages that lack
// destructors.
type WriteHandle struct {
	cache     *AudienceCache
	key       string
	hadPrior  bool
	priorSlot Slot
	noop      bool
	committed bool
}

// PrepareWrite reserves key for this caller per the policy in the audience
// cache's request protocol:
//   - no slot exists: install Populating, rollback removes the slot.
//   - Fresh and expiredHint: transition to Refreshing, rollback restores
//     the prior Fresh value.
//   - anything else (already Populating/Refreshing, or Fresh and not
//     expired): the caller raced past a stale Get; return a handle that
//     does nothing on Insert or Close.
func (c *AudienceCache) PrepareWrite(key string, expiredHint bool) *WriteHandle {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	slot, exists := sh.slots[key]
	switch {
	case !exists:
		sh.slots[key] = Slot{Kind: KindPopulating}
		return &WriteHandle{cache: c, key: key, hadPrior: false}
	case slot.Kind == KindFresh && expiredHint:
		sh.slots[key] = Slot{Kind: KindRefreshing, Cached: slot.Cached}
		return &WriteHandle{cache: c, key: key, hadPrior: true, priorSlot: slot}
	default:
		return &WriteHandle{cache: c, key: key, noop: true}
	}
}

// Insert atomically replaces the slot with newSlot and disarms the
// rollback. Calling Insert more than once, or calling it on a no-op
// handle, has no further effect after the first call.
func (h *WriteHandle) Insert(newSlot Slot) {
	if h == nil || h.noop || h.committed {
		return
	}
	sh := h.cache.shardFor(h.key)
	sh.mu.Lock()
	sh.slots[h.key] = newSlot
	sh.mu.Unlock()
	h.committed = true
}

// Close runs the rollback if Insert was never called. Safe to call
// multiple times and safe to call on a no-op handle.
func (h *WriteHandle) Close() {
	if h == nil || h.noop || h.committed {
		return
	}
	sh := h.cache.shardFor(h.key)
	sh.mu.Lock()
	if h.hadPrior {
		sh.slots[h.key] = h.priorSlot
	} else {
		delete(sh.slots, h.key)
	}
	sh.mu.Unlock()
	h.committed = true
}
