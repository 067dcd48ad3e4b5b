package tcmalloc

import "unsafe"

// defaultHeap is the process-wide allocator the package-level functions
// below delegate to. It is built from DefaultConfig when the package is
// initialized, not on first call; it obtains no pages from the OS until
// the first allocation.
var defaultHeap = NewHeap(nil)

// Alloc returns a region of at least align_up(size, Align) bytes, or nil
// under memory exhaustion. size == 0 returns nil.
func Alloc(size uintptr) unsafe.Pointer {
	return defaultHeap.Alloc(size)
}

// Free returns a previously issued region. size must be either the
// original requested size or any value that rounds to the same size
// class; a nil pointer or zero size is a no-op. Freeing with the wrong
// size class is undefined, per spec.md §4.1.
func Free(ptr unsafe.Pointer, size uintptr) {
	defaultHeap.Free(ptr, size)
}

// SetRecycleThreshold sets the calling thread's per-class cache budget.
func SetRecycleThreshold(n uint64) {
	defaultHeap.SetRecycleThreshold(n)
}

// GetRecycleThreshold reads the calling thread's current cache budget.
func GetRecycleThreshold() uint64 {
	return defaultHeap.GetRecycleThreshold()
}

// DrainThreadCache hands every per-P cache's free slots back to the
// central cache; see Heap.DrainThreadCache.
func DrainThreadCache() {
	defaultHeap.DrainThreadCache()
}

// GetStats reports a diagnostic snapshot of the default Heap.
func GetStats() Stats {
	return defaultHeap.Stats()
}
