// Package cache implements the audience cache (C6): a sharded concurrent
// map from audience key to slot state, backing the single-flight fetch
// discipline described for the tile-serving request path.
package cache

import (
	"time"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// Kind is a slot's position in the state machine.
type Kind int

const (
	KindPopulating Kind = iota
	KindFresh
	KindRefreshing
)

// Cached is a previously-assembled response along with when it stops
// being servable without a refresh.
type Cached struct {
	Content   tiles.Content
	ExpiresAt time.Time
}

// Slot is one audience key's current cache entry. Cached is meaningful
// only when Kind is KindFresh or KindRefreshing.
type Slot struct {
	Kind   Kind
	Cached Cached
}

// Expired reports whether a Fresh slot's TTL has passed as of now. Callers
// should only call this on a KindFresh slot.
func (s Slot) Expired(now time.Time) bool {
	return !s.Cached.ExpiresAt.After(now)
}
