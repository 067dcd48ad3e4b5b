package tcmalloc

import (
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/btree"
)

// pageSpan is the bookkeeping record for one contiguous run of pages that
// has been carved into fixed-size slots of a single size class. It never
// holds caller bytes itself: per the ABI contract the allocator's
// bookkeeping lives outside the slot, so a span is an ordinary Go heap
// object pointing at raw OS memory, never embedded inside it.
type pageSpan struct {
	base     uintptr // first byte of the managed region
	numPages uintptr
	class    uint8
	slotSize uintptr
	numSlots uint32
	// allocated has one bit per slot; bit k set means slot k is handed out.
	allocated *bitset.BitSet
	used      uint32 // population count, kept incrementally to avoid a scan
}

func newPageSpan(base uintptr, numPages uintptr, class uint8) *pageSpan {
	slotSize := classSlotSize(class)
	numSlots := uint32((numPages * PageSize) / slotSize)
	return &pageSpan{
		base:      base,
		numPages:  numPages,
		class:     class,
		slotSize:  slotSize,
		numSlots:  numSlots,
		allocated: bitset.New(uint(numSlots)),
	}
}

func (s *pageSpan) regionLen() uintptr {
	return s.numPages * PageSize
}

// slotIndex asserts ptr is slot-aligned within the span and returns its
// index; it panics on misuse, matching spec.md's "contract violation is
// undefined behavior; debug builds may check and abort" clause.
func (s *pageSpan) slotIndex(ptr uintptr) uint32 {
	off := ptr - s.base
	if off%s.slotSize != 0 {
		panic("tcmalloc: pointer is not slot-aligned within its span")
	}
	idx := off / s.slotSize
	if idx >= uintptr(s.numSlots) {
		panic("tcmalloc: pointer falls outside its span")
	}
	return uint32(idx)
}

func (s *pageSpan) slotPtr(idx uint32) unsafe.Pointer {
	return unsafe.Pointer(s.base + uintptr(idx)*s.slotSize)
}

func (s *pageSpan) contains(ptr uintptr) bool {
	return ptr >= s.base && ptr < s.base+s.regionLen()
}

func (s *pageSpan) markAllocated(idx uint32) {
	s.allocated.Set(uint(idx))
	s.used++
}

func (s *pageSpan) markFree(idx uint32) {
	s.allocated.Clear(uint(idx))
	s.used--
}

func (s *pageSpan) isEmpty() bool {
	return s.used == 0
}

func (s *pageSpan) isFull() bool {
	return s.used == s.numSlots
}

// Less orders spans by base address so the central cache can keep them in
// a btree for O(log n) "which span owns this pointer" lookups.
func (s *pageSpan) Less(than btree.Item) bool { return s.base < than.(*pageSpan).base }
