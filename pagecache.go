package tcmalloc

import (
	"sync"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/leslie-fei/tcmalloc/osmem"
)

// addrItem orders a free page run by its base address; it is the page
// cache's pointer-keyed view of spec.md §3's free-page index.
type addrItem struct {
	base  uintptr
	pages uintptr
}

func (a *addrItem) Less(than btree.Item) bool { return a.base < than.(*addrItem).base }

// lengthBucket groups every free run of one exact page length, again
// ordered by base address, so a best-fit search can break ties by lowest
// address without scanning. This is the length-keyed view of spec.md §3.
type lengthBucket struct {
	pages uintptr
	addrs *btree.BTree // of *addrItem, ordered by base
}

func (l *lengthBucket) Less(than btree.Item) bool { return l.pages < than.(*lengthBucket).pages }

// pageCache is the single global structure of spec.md §4.4: it owns every
// page ever obtained from the OS, tracks free runs via two cross-referenced
// ordered views, and remembers outstanding large-object regions so their
// exact byte length survives a round trip through the page-granular free
// views.
type pageCache struct {
	mu sync.Mutex

	byAddr *btree.BTree // *addrItem, ordered by base: neighbour lookups for coalescing
	byLen  *btree.BTree // *lengthBucket, ordered by pages: best-fit search

	// regions records every region ever handed to us by the OS, so
	// shutdown can give all of it back.
	regions map[uintptr]uintptr // base -> pages, every OS region ever obtained

	// large maps a live large-object's base pointer to its exact byte
	// length (spec.md §3's large-object record).
	large map[uintptr]uint64

	source    osmem.Source
	bulkPages uintptr

	log *zap.Logger
}

func newPageCache(source osmem.Source, bulkPages uintptr, log *zap.Logger) *pageCache {
	if bulkPages == 0 {
		bulkPages = DefaultBulkPages
	}
	return &pageCache{
		byAddr:    btree.New(32),
		byLen:     btree.New(32),
		regions:   make(map[uintptr]uintptr),
		large:     make(map[uintptr]uint64),
		source:    source,
		bulkPages: bulkPages,
		log:       log,
	}
}

// addFreeRun inserts a free run into both cross-referenced views. Callers
// must hold mu.
func (p *pageCache) addFreeRun(base, pages uintptr) {
	p.byAddr.ReplaceOrInsert(&addrItem{base: base, pages: pages})

	bucket := p.lengthBucketFor(pages, true)
	bucket.addrs.ReplaceOrInsert(&addrItem{base: base, pages: pages})
}

// removeFreeRun deletes a free run from both views. Callers must hold mu.
func (p *pageCache) removeFreeRun(base, pages uintptr) {
	p.byAddr.Delete(&addrItem{base: base})

	if bi := p.byLen.Get(&lengthBucket{pages: pages}); bi != nil {
		bucket := bi.(*lengthBucket)
		bucket.addrs.Delete(&addrItem{base: base})
		if bucket.addrs.Len() == 0 {
			p.byLen.Delete(&lengthBucket{pages: pages})
		}
	}
}

func (p *pageCache) lengthBucketFor(pages uintptr, create bool) *lengthBucket {
	if bi := p.byLen.Get(&lengthBucket{pages: pages}); bi != nil {
		return bi.(*lengthBucket)
	}
	if !create {
		return nil
	}
	bucket := &lengthBucket{pages: pages, addrs: btree.New(32)}
	p.byLen.ReplaceOrInsert(bucket)
	return bucket
}

// bestFit finds the smallest free run of length >= k pages, breaking ties
// by lowest base address (spec.md §4.4 step 1). Callers must hold mu.
func (p *pageCache) bestFit(k uintptr) (base, pages uintptr, ok bool) {
	var found *lengthBucket
	p.byLen.AscendGreaterOrEqual(&lengthBucket{pages: k}, func(item btree.Item) bool {
		found = item.(*lengthBucket)
		return false
	})
	if found == nil {
		return 0, 0, false
	}
	min := found.addrs.Min()
	if min == nil {
		return 0, 0, false
	}
	it := min.(*addrItem)
	return it.base, it.pages, true
}

// allocRun returns a k-page region, obtaining more OS memory if no free run
// is large enough (spec.md §4.4 "Allocate k pages").
func (p *pageCache) allocRun(k uintptr) (uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocRunLocked(k)
}

func (p *pageCache) allocRunLocked(k uintptr) (uintptr, error) {
	base, pages, ok := p.bestFit(k)
	if !ok {
		request := k
		if request < p.bulkPages {
			request = p.bulkPages
		}
		newBase, err := p.source.Obtain(request)
		if err != nil {
			p.log.Warn("page cache: OS page request failed", zap.Uintptr("pages", request), zap.Error(err))
			return 0, ErrOutOfMemory
		}
		p.regions[newBase] = request
		p.addFreeRun(newBase, request)
		p.log.Debug("page cache: obtained pages from OS", zap.Uintptr("base", newBase), zap.Uintptr("pages", request))
		base, pages, ok = p.bestFit(k)
		if !ok {
			return 0, ErrOutOfMemory
		}
	}

	p.removeFreeRun(base, pages)
	if pages > k {
		p.addFreeRun(base+k*PageSize, pages-k)
	}
	return base, nil
}

// allocLarge rounds size up to a whole number of pages, allocates that run,
// and records the exact byte length so deallocLarge can recover it.
func (p *pageCache) allocLarge(size uintptr) (uintptr, error) {
	pages := (size + PageSize - 1) / PageSize
	p.mu.Lock()
	base, err := p.allocRunLocked(pages)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}
	p.large[base] = uint64(size)
	p.mu.Unlock()
	return base, nil
}

// deallocRun returns a page run, coalescing with any immediately adjacent
// free run (spec.md §4.4 "Deallocate a page-run region").
func (p *pageCache) deallocRun(base, pages uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deallocRunLocked(base, pages)
}

func (p *pageCache) deallocRunLocked(base, pages uintptr) {
	regionEnd := base + pages*PageSize

	// Upper neighbour: a free run whose base is exactly regionEnd.
	if item := p.byAddr.Get(&addrItem{base: regionEnd}); item != nil {
		upper := item.(*addrItem)
		p.removeFreeRun(upper.base, upper.pages)
		pages += upper.pages
	}

	// Lower neighbour: the greatest free run base <= our base whose
	// region ends exactly at our base.
	var lowerBase, lowerPages uintptr
	found := false
	p.byAddr.DescendLessOrEqual(&addrItem{base: base}, func(item btree.Item) bool {
		cand := item.(*addrItem)
		if cand.base+cand.pages*PageSize == base {
			lowerBase, lowerPages = cand.base, cand.pages
			found = true
		}
		return false
	})
	if found {
		p.removeFreeRun(lowerBase, lowerPages)
		base = lowerBase
		pages += lowerPages
	}

	p.addFreeRun(base, pages)
}

// deallocLarge recovers a large object's exact byte length and feeds the
// underlying page run into deallocRun.
func (p *pageCache) deallocLarge(base uintptr) {
	p.mu.Lock()
	size, ok := p.large[base]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.large, base)
	pages := (uintptr(size) + PageSize - 1) / PageSize
	p.deallocRunLocked(base, pages)
	p.mu.Unlock()
}

// largeSize returns the exact byte length of a still-live large object.
func (p *pageCache) largeSize(base uintptr) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	size, ok := p.large[base]
	return size, ok
}

// shutdown returns every region ever obtained from the OS. Pages are never
// released before this (spec.md §4.4: "the design prefers reuse over
// release").
func (p *pageCache) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for base, pages := range p.regions {
		_ = p.source.Release(base, pages)
	}
	p.regions = make(map[uintptr]uintptr)
	p.byAddr = btree.New(32)
	p.byLen = btree.New(32)
	p.large = make(map[uintptr]uint64)
}

// freeBytes is a diagnostics helper for Stats.
func (p *pageCache) freeBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total uint64
	p.byAddr.Ascend(func(item btree.Item) bool {
		total += uint64(item.(*addrItem).pages) * PageSize
		return true
	})
	return total
}

// obtainedBytes is a diagnostics helper for Stats.
func (p *pageCache) obtainedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total uint64
	for _, pages := range p.regions {
		total += uint64(pages) * PageSize
	}
	return total
}
