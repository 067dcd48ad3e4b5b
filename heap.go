package tcmalloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/leslie-fei/tcmalloc/osmem"
)

// Heap ties the three tiers of spec.md §4 together behind the four public
// operations of §4.1. Distinct Heap values are fully independent; the
// package-level functions in api.go wrap one process-wide default Heap.
type Heap struct {
	threads *threadCacheSet
	central *centralCache
	pages   *pageCache

	defaultThreshold uint64
}

// NewHeap builds a Heap from cfg, or from DefaultConfig if cfg is nil.
func NewHeap(cfg *Config) *Heap {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log := newLogger(cfg.Log)

	var source osmem.Source
	switch cfg.PageSource {
	case UnixMmap:
		source = osmem.NewUnixPageSource()
	default:
		source = osmem.NewHeapPageSource()
	}

	pages := newPageCache(source, cfg.BulkPages, log)
	central := newCentralCache(pages, log)
	threads := newThreadCacheSet(central, pages, cfg.WatermarkBytes, cfg.RecycleThreshold, log)

	return &Heap{
		threads:          threads,
		central:          central,
		pages:            pages,
		defaultThreshold: cfg.RecycleThreshold,
	}
}

// Alloc implements allocate(size) of spec.md §4.1.
func (h *Heap) Alloc(size uintptr) unsafe.Pointer {
	ptr, err := h.threads.alloc(size)
	if err != nil {
		return nil
	}
	return ptr
}

// Free implements deallocate(pointer, size) of spec.md §4.1.
func (h *Heap) Free(ptr unsafe.Pointer, size uintptr) {
	h.threads.dealloc(ptr, size)
}

// SetRecycleThreshold implements set_recycle_threshold(n) of spec.md §4.1,
// scoped to the calling "thread" (in Go terms, the calling P; see
// procpin.go).
func (h *Heap) SetRecycleThreshold(n uint64) {
	pid := procPin()
	tc := h.threads.shardFor(pid)
	atomic.StoreUint64(&tc.recycleThreshold, n)
	procUnpin()
}

// GetRecycleThreshold implements get_recycle_threshold() of spec.md §4.1.
func (h *Heap) GetRecycleThreshold() uint64 {
	pid := procPin()
	tc := h.threads.shardFor(pid)
	n := atomic.LoadUint64(&tc.recycleThreshold)
	procUnpin()
	return n
}

// DrainThreadCache forces every per-P cache to hand its free slots back to
// the central cache. Go has no per-goroutine exit hook to do this
// automatically the way a real thread-local destructor would (see
// SPEC_FULL.md §1); call this explicitly, e.g. before reporting Stats or
// shutting the Heap down.
func (h *Heap) DrainThreadCache() {
	h.threads.drainAll()
}

// Stats is a diagnostic snapshot, supplementing spec.md's four operations
// with the sort of introspection original_source's allocator exposed (see
// SPEC_FULL.md §4).
type Stats struct {
	// CachedBytes is memory sitting in per-P thread-cache free lists.
	CachedBytes uint64
	// FreePageBytes is memory sitting in the page cache's free-run index.
	FreePageBytes uint64
	// ObtainedBytes is every byte this Heap has ever obtained from the OS.
	ObtainedBytes uint64
}

// Stats reports a point-in-time diagnostic snapshot.
func (h *Heap) Stats() Stats {
	return Stats{
		CachedBytes:   h.threads.cachedBytes(),
		FreePageBytes: h.pages.freeBytes(),
		ObtainedBytes: h.pages.obtainedBytes(),
	}
}

// Shutdown returns every page this Heap has ever obtained from the OS. The
// Heap must not be used afterward.
func (h *Heap) Shutdown() {
	h.threads.drainAll()
	h.pages.shutdown()
}
