package tcmalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/leslie-fei/tcmalloc/osmem"
)

func newTestPageCache() *pageCache {
	return newPageCache(osmem.NewHeapPageSource(), 4, zap.NewNop())
}

func TestPageCache_AllocRunObtainsFromSource(t *testing.T) {
	pc := newTestPageCache()
	base, err := pc.allocRun(1)
	assert.NoError(t, err)
	assert.NotZero(t, base)
	// BulkPages is 4, so 3 pages should remain free.
	assert.Equal(t, uint64(3*PageSize), pc.freeBytes())
}

func TestPageCache_AllocRunReusesFreedRun(t *testing.T) {
	pc := newTestPageCache()
	base, err := pc.allocRun(4)
	assert.NoError(t, err)

	pc.deallocRun(base, 4)
	again, err := pc.allocRun(4)
	assert.NoError(t, err)
	assert.Equal(t, base, again)
	assert.Equal(t, uint64(0), pc.freeBytes())
}

func TestPageCache_DeallocCoalescesAdjacentRuns(t *testing.T) {
	pc := newTestPageCache()
	base, err := pc.allocRun(2)
	assert.NoError(t, err)
	second, err := pc.allocRun(2)
	assert.NoError(t, err)
	assert.Equal(t, base+2*PageSize, second)

	pc.deallocRun(base, 2)
	pc.deallocRun(second, 2)

	// The two adjacent 2-page runs must have merged into one 4-page run.
	merged, _, ok := pc.bestFit(4)
	assert.True(t, ok)
	assert.Equal(t, base, merged)
}

func TestPageCache_AllocLargeRecordsExactSize(t *testing.T) {
	pc := newTestPageCache()
	base, err := pc.allocLarge(PageSize + 1)
	assert.NoError(t, err)

	size, ok := pc.largeSize(base)
	assert.True(t, ok)
	assert.Equal(t, uint64(PageSize+1), size)

	pc.deallocLarge(base)
	_, ok = pc.largeSize(base)
	assert.False(t, ok)
}

func TestPageCache_ShutdownReleasesEverything(t *testing.T) {
	pc := newTestPageCache()
	_, err := pc.allocRun(1)
	assert.NoError(t, err)

	pc.shutdown()
	assert.Equal(t, uint64(0), pc.obtainedBytes())
}
