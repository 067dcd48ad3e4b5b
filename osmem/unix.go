//go:build !windows

package osmem

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UnixPageSource maps anonymous, private pages directly from the kernel
// via unix.Mmap(-1, 0, size, PROT_READ|PROT_WRITE, MAP_PRIVATE|MAP_ANONYMOUS),
// getting whole slabs straight from the kernel with no backing file.
type UnixPageSource struct {
	mu     sync.Mutex
	mapped map[uintptr][]byte // base -> backing slice, kept alive for Munmap
}

func NewUnixPageSource() *UnixPageSource {
	return &UnixPageSource{mapped: make(map[uintptr][]byte)}
}

func (s *UnixPageSource) Obtain(pages uintptr) (uintptr, error) {
	size := int(pages * PageSize)
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, &ErrMapFailed{Cause: err}
	}
	base := uintptr(unsafe.Pointer(&b[0]))
	s.mu.Lock()
	s.mapped[base] = b
	s.mu.Unlock()
	return base, nil
}

func (s *UnixPageSource) Release(base uintptr, _ uintptr) error {
	s.mu.Lock()
	b, ok := s.mapped[base]
	if ok {
		delete(s.mapped, base)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return unix.Munmap(b)
}
