package tcmalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// classCache is one size class's slice of a thread cache: a private free
// list plus the adaptive refill batch size of spec.md §4.2.
type classCache struct {
	free intrusiveList
	// nextBatch is prev_batch_c: the batch size computed after the last
	// refill, floored to 4 and doubled (capped) each time it is consulted.
	nextBatch uint32
}

// computeRefillBatch returns the batch size to request this refill and
// advances nextBatch per spec.md §4.2's formula.
func (c *classCache) computeRefillBatch(slotSize uintptr, watermarkBytes uint64) uint32 {
	batch := c.nextBatch
	if batch < 4 {
		batch = 4
	}
	next := batch * 2
	if next > uint32(MaxUnits) {
		next = uint32(MaxUnits)
	}
	budgetCap := uint32(watermarkBytes / uint64(slotSize) / 2)
	if budgetCap == 0 {
		// A watermark too small to fit even one pair of slots still caps
		// the batch rather than disabling the cap outright; the next
		// call's max(prev, 4) floor brings it back up to a sane minimum.
		budgetCap = 1
	}
	if next > budgetCap {
		next = budgetCap
	}
	c.nextBatch = next
	return batch
}

// halveNextBatch implements the release policy's damping step: after a
// budget-triggered drain to the central cache, the next refill asks for
// less.
func (c *classCache) halveNextBatch() {
	if c.nextBatch > 4 {
		c.nextBatch /= 2
	}
}

// threadCache is a single "thread"'s (in Go terms, a single P's; see
// procpin.go) private set of per-class free lists plus its own recycle
// threshold, the per-thread tunable of spec.md §4.1/§4.2.
type threadCache struct {
	classes          [NumClasses]classCache
	recycleThreshold uint64
}

func newThreadCache(defaultThreshold uint64) *threadCache {
	return &threadCache{recycleThreshold: defaultThreshold}
}

// threadCacheSet is the whole top tier: one threadCache per P, grown lazily
// as procPin() reports P ids, plus the shared handles to the lower tiers.
// A real OS-thread-TLS allocator tears its thread cache down on thread
// exit; Go exposes no such hook for goroutines, so entries here live for
// the life of the process and DrainThreadCache exists as a cooperative
// escape hatch (see SPEC_FULL.md §1).
type threadCacheSet struct {
	shards  atomic.Pointer[[]*threadCache]
	growMu  sync.Mutex
	central *centralCache
	pages   *pageCache
	// watermarkBytes is the fixed WATERMARK_BYTES of spec.md §4.2: the
	// per-class cache-budget constant that caps computeRefillBatch's
	// growth. It does not change per thread cache.
	watermarkBytes uint64
	// defaultThreshold seeds each new threadCache's recycleThreshold, the
	// per-thread tunable read/set by Get/SetRecycleThreshold that drives
	// dealloc's release-policy drain trigger.
	defaultThreshold uint64
	log              *zap.Logger
}

func newThreadCacheSet(central *centralCache, pages *pageCache, watermarkBytes, defaultThreshold uint64, log *zap.Logger) *threadCacheSet {
	return &threadCacheSet{central: central, pages: pages, watermarkBytes: watermarkBytes, defaultThreshold: defaultThreshold, log: log}
}

func (tcs *threadCacheSet) shardFor(pid int) *threadCache {
	for {
		if s := tcs.shards.Load(); s != nil && pid < len(*s) && (*s)[pid] != nil {
			return (*s)[pid]
		}

		tcs.growMu.Lock()
		var cur []*threadCache
		if s := tcs.shards.Load(); s != nil {
			cur = append(cur, *s...)
		}
		if pid >= len(cur) {
			grown := make([]*threadCache, pid+1)
			copy(grown, cur)
			cur = grown
		}
		if cur[pid] == nil {
			cur[pid] = newThreadCache(tcs.defaultThreshold)
		}
		tcs.shards.Store(&cur)
		tcs.growMu.Unlock()
	}
}

// eachShard runs fn over every shard that currently exists, used by
// DrainThreadCache and Stats.
func (tcs *threadCacheSet) eachShard(fn func(*threadCache)) {
	s := tcs.shards.Load()
	if s == nil {
		return
	}
	for _, tc := range *s {
		if tc != nil {
			fn(tc)
		}
	}
}

// alloc is the fast path of spec.md §4.2.
func (tcs *threadCacheSet) alloc(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}
	rounded := alignUp(size, Align)

	if !isSmall(rounded) {
		base, err := tcs.pages.allocLarge(rounded)
		if err != nil {
			return nil, err
		}
		return unsafe.Pointer(base), nil
	}

	class := sizeClassOf(rounded)
	slotSize := classSlotSize(class)

	pid := procPin()
	tc := tcs.shardFor(pid)
	if slot := tc.classes[class].free.pop(); slot != nil {
		procUnpin()
		return slot, nil
	}
	batch := tc.classes[class].computeRefillBatch(slotSize, tcs.watermarkBytes)
	procUnpin()

	head, got, err := tcs.central.allocBatch(class, batch)
	if err != nil {
		return nil, err
	}
	if got == 0 {
		return nil, ErrOutOfMemory
	}

	slot := head
	rest := *(*unsafe.Pointer)(slot)

	pid = procPin()
	tc = tcs.shardFor(pid)
	tc.classes[class].free.pushBatch(rest, got-1)
	procUnpin()

	*(*unsafe.Pointer)(slot) = nil
	return slot, nil
}

// dealloc is the release path of spec.md §4.2.
func (tcs *threadCacheSet) dealloc(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil || size == 0 {
		return
	}
	rounded := alignUp(size, Align)

	if !isSmall(rounded) {
		tcs.central.freeLarge(uintptr(ptr))
		return
	}

	class := sizeClassOf(rounded)
	slotSize := classSlotSize(class)

	pid := procPin()
	tc := tcs.shardFor(pid)
	cc := &tc.classes[class]
	cc.free.push(ptr)

	budget := atomic.LoadUint64(&tc.recycleThreshold) / uint64(slotSize)
	var drainHead unsafe.Pointer
	var drainCount uint32
	if uint64(cc.free.len) > budget {
		drainHead, drainCount = cc.free.detachHalf()
		cc.halveNextBatch()
	}
	procUnpin()

	if drainCount > 0 {
		tcs.central.freeBatch(class, drainHead, drainCount)
	}
}

// drainAll hands every shard's every class back to the central cache,
// implementing the exported DrainThreadCache operation.
func (tcs *threadCacheSet) drainAll() {
	tcs.eachShard(func(tc *threadCache) {
		for class := range tc.classes {
			cc := &tc.classes[class]
			head, count := cc.detachAllLocked()
			if count > 0 {
				tcs.central.freeBatch(uint8(class), head, count)
			}
		}
	})
}

func (c *classCache) detachAllLocked() (unsafe.Pointer, uint32) {
	return c.free.detachAll()
}

// cachedBytes sums every shard's bookkept bytes for Stats.
func (tcs *threadCacheSet) cachedBytes() uint64 {
	var total uint64
	tcs.eachShard(func(tc *threadCache) {
		for class := range tc.classes {
			total += uint64(tc.classes[class].free.len) * uint64(classSlotSize(uint8(class)))
		}
	})
	return total
}
