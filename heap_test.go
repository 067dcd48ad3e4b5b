package tcmalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeap_AllocFreeRoundTrip(t *testing.T) {
	h := NewHeap(nil)
	ptr := h.Alloc(64)
	assert.NotNil(t, ptr)
	h.Free(ptr, 64)
}

func TestHeap_AllocZeroReturnsNil(t *testing.T) {
	h := NewHeap(nil)
	assert.Nil(t, h.Alloc(0))
}

func TestHeap_AllocLargeGoesStraightToPageCache(t *testing.T) {
	h := NewHeap(nil)
	ptr := h.Alloc(MaxSmall + 1)
	assert.NotNil(t, ptr)
	assert.Zero(t, h.Stats().CachedBytes)
	h.Free(ptr, MaxSmall+1)
}

func TestHeap_RecycleThresholdRoundTrip(t *testing.T) {
	h := NewHeap(nil)
	h.SetRecycleThreshold(1024)
	assert.Equal(t, uint64(1024), h.GetRecycleThreshold())
}

func TestHeap_DrainThreadCacheEmptiesCaches(t *testing.T) {
	h := NewHeap(nil)
	ptr := h.Alloc(16)
	h.Free(ptr, 16)

	h.DrainThreadCache()
	assert.Zero(t, h.Stats().CachedBytes)
}

func TestHeap_StatsReflectsObtainedMemory(t *testing.T) {
	h := NewHeap(nil)
	_ = h.Alloc(16)
	assert.NotZero(t, h.Stats().ObtainedBytes)
}

func TestHeap_ShutdownReleasesEverything(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHeap(cfg)
	_ = h.Alloc(16)
	h.Shutdown()
	assert.Zero(t, h.Stats().ObtainedBytes)
}
