package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

func TestPrepareWrite_NoPriorSlotRollsBackToAbsent(t *testing.T) {
	c := New(4)
	handle := c.PrepareWrite("k", false)

	_, ok := c.Get("k")
	require.True(t, ok, "slot should be Populating while the handle is open")

	handle.Close()
	_, ok = c.Get("k")
	assert.False(t, ok, "rollback should remove a slot that had no prior value")
}

func TestPrepareWrite_InsertDisarmsRollback(t *testing.T) {
	c := New(4)
	handle := c.PrepareWrite("k", false)
	handle.Insert(Slot{Kind: KindFresh})
	handle.Close()

	slot, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, KindFresh, slot.Kind)
}

func TestPrepareWrite_ExpiredFreshTransitionsToRefreshingAndRollsBack(t *testing.T) {
	c := New(4)
	seed := c.PrepareWrite("k", false)
	seed.Insert(Slot{Kind: KindFresh, Cached: Cached{Content: tiles.EmptyContent}})

	handle := c.PrepareWrite("k", true)
	slot, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, KindRefreshing, slot.Kind)

	handle.Close()
	slot, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, KindFresh, slot.Kind, "rollback should restore the prior Fresh slot")
}

func TestPrepareWrite_ContendingCallerGetsNoopHandle(t *testing.T) {
	c := New(4)
	first := c.PrepareWrite("k", false)

	second := c.PrepareWrite("k", false)
	second.Insert(Slot{Kind: KindFresh})
	second.Close()

	slot, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, KindPopulating, slot.Kind, "a no-op handle must not disturb the real handle's slot")

	first.Insert(Slot{Kind: KindFresh})
	slot, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, KindFresh, slot.Kind)
}
