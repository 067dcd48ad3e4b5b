package tcmalloc

import (
	"unsafe"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// centralClass is the per-size-class shared pool of spec.md §4.3: a single
// spin lock guards both a flat free list of individual slots (shared across
// every span of this class) and a btree of the spans themselves, keyed by
// base address, used to map a freed pointer back to its owning span.
type centralClass struct {
	mu       spinLock
	class    uint8
	slotSize uintptr
	free     intrusiveList
	spans    *btree.BTree // *pageSpan, ordered by base
}

// centralCache is the middle tier: one centralClass per size class, plus a
// shared handle to the page cache it refills from and returns empty spans
// to (spec.md §4.3, §4.4).
type centralCache struct {
	classes [NumClasses]*centralClass
	pages   *pageCache
	log     *zap.Logger
}

func newCentralCache(pages *pageCache, log *zap.Logger) *centralCache {
	cc := &centralCache{pages: pages, log: log}
	for i := range cc.classes {
		cc.classes[i] = &centralClass{
			class:    uint8(i),
			slotSize: classSlotSize(uint8(i)),
			spans:    btree.New(32),
		}
	}
	return cc
}

// spanFor finds the span owning ptr, or nil. Callers must hold cc's lock.
func (c *centralClass) spanFor(ptr uintptr) *pageSpan {
	var found *pageSpan
	c.spans.DescendLessOrEqual(&pageSpan{base: ptr}, func(item btree.Item) bool {
		cand := item.(*pageSpan)
		if cand.contains(ptr) {
			found = cand
		}
		return false
	})
	return found
}

// refillLocked obtains one brand-new, full-capacity span from the page
// cache and links every one of its slots into the free list. Spec.md §4.3:
// "a refill always fetches a full-capacity span from the page cache,
// regardless of how many objects the thread cache actually asked for."
func (c *centralClass) refillLocked(pages *pageCache, log *zap.Logger) error {
	pageCount := pagesForSpan(c.slotSize)
	base, err := pages.allocRun(pageCount)
	if err != nil {
		return err
	}
	span := newPageSpan(base, pageCount, c.class)
	c.spans.ReplaceOrInsert(span)

	for i := uint32(0); i < span.numSlots; i++ {
		c.free.push(span.slotPtr(i))
	}
	log.Debug("central cache: refilled span",
		zap.Uint8("class", c.class), zap.Uintptr("base", base), zap.Uint32("slots", span.numSlots))
	return nil
}

// allocBatch pops up to n slots for this class, refilling from the page
// cache (once) if the free list can't satisfy the request outright.
func (cc *centralCache) allocBatch(class uint8, n uint32) (head unsafe.Pointer, got uint32, err error) {
	c := cc.classes[class]
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.free.len < n {
		if refillErr := c.refillLocked(cc.pages, cc.log); refillErr != nil && c.free.empty() {
			return nil, 0, refillErr
		}
	}

	var tail unsafe.Pointer
	for got < n {
		slot := c.free.pop()
		if slot == nil {
			break
		}
		owner := c.spanFor(uintptr(slot))
		owner.markAllocated(owner.slotIndex(uintptr(slot)))
		*(*unsafe.Pointer)(slot) = nil
		if head == nil {
			head = slot
		} else {
			*(*unsafe.Pointer)(tail) = slot
		}
		tail = slot
		got++
	}
	return head, got, nil
}

// freeBatch links a caller-supplied chain of count slots for one class back
// into the central free list, marking each slot free in its span's bitmap.
// Any span whose last outstanding slot is freed here is fully reclaimed:
// its remaining free-list entries are pulled back out and the whole region
// is returned to the page cache (spec.md §4.3's span reclamation rule).
func (cc *centralCache) freeBatch(class uint8, head unsafe.Pointer, count uint32) {
	c := cc.classes[class]
	c.mu.Lock()
	defer c.mu.Unlock()

	emptied := make(map[*pageSpan]struct{})
	cur := head
	for i := uint32(0); i < count && cur != nil; i++ {
		next := *(*unsafe.Pointer)(cur)
		owner := c.spanFor(uintptr(cur))
		owner.markFree(owner.slotIndex(uintptr(cur)))
		c.free.push(cur)
		if owner.isEmpty() {
			emptied[owner] = struct{}{}
		}
		cur = next
	}

	for span := range emptied {
		removed := c.free.removeMatching(func(slot unsafe.Pointer) bool { return span.contains(uintptr(slot)) })
		if uint32(len(removed)) != span.numSlots {
			// Defensive check: c.mu is held across the markFree loop and
			// this sweep, so every slot of an empty span is expected on the
			// free list. If fewer come back, the span is kept and the swept
			// slots are pushed back.
			for _, slot := range removed {
				c.free.push(slot)
			}
			continue
		}
		c.spans.Delete(span)
		cc.pages.deallocRun(span.base, span.numPages)
		cc.log.Debug("central cache: reclaimed empty span",
			zap.Uint8("class", c.class), zap.Uintptr("base", span.base))
	}
}

// freeLarge forwards a large deallocation straight through to the page
// cache. Spec.md §4.2 routes large frees through the central cache even
// though large regions have no size class and no central free list entry;
// this method exists only to preserve that routing.
func (cc *centralCache) freeLarge(base uintptr) {
	cc.pages.deallocLarge(base)
}

// freeListLen reports the free-list length for Stats.
func (cc *centralCache) freeListLen(class uint8) uint32 {
	c := cc.classes[class]
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.free.len
}
