package osmem

import (
	"sync"
	"unsafe"
)

// HeapPageSource serves pages from the ordinary Go heap instead of a real
// mmap syscall, wrapping each region in a make([]byte, n) and exposing it
// through unsafe.Pointer arithmetic. Used as the default Source (see
// Config.PageSource) so tests and non-Linux hosts never depend on a real
// anonymous-mmap syscall; the map of retained slices tracks many
// independently obtained regions rather than one.
type HeapPageSource struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

func NewHeapPageSource() *HeapPageSource {
	return &HeapPageSource{regions: make(map[uintptr][]byte)}
}

func (s *HeapPageSource) Obtain(pages uintptr) (uintptr, error) {
	b := make([]byte, pages*PageSize)
	base := uintptr(unsafe.Pointer(&b[0]))
	s.mu.Lock()
	s.regions[base] = b
	s.mu.Unlock()
	return base, nil
}

func (s *HeapPageSource) Release(base uintptr, _ uintptr) error {
	s.mu.Lock()
	delete(s.regions, base)
	s.mu.Unlock()
	return nil
}
