// Package osmem is the page cache's OS page source: it hands back
// page-aligned, page-sized runs of raw memory and takes them back at
// shutdown. A single-process allocator has no use for cross-process
// shared-memory backends, so only the real anonymous-mmap path and a
// pure-Go heap-backed fallback are provided, at page granularity.
package osmem

import "fmt"

// PageSize is the OS page granularity pages are measured in.
const PageSize = 4096

// Source obtains and releases whole numbers of pages from the host.
// Regions returned by Obtain are zero-filled on first acquisition, matching
// typical OS mmap semantics (spec.md §6); Source makes no promise about the
// contents of a region it has already Released and re-Obtained.
type Source interface {
	// Obtain returns the base address of a freshly mapped region of
	// pages*PageSize bytes.
	Obtain(pages uintptr) (base uintptr, err error)
	// Release gives back a region previously returned by Obtain with the
	// same page count.
	Release(base uintptr, pages uintptr) error
}

// ErrMapFailed wraps a failed OS mapping call so callers can distinguish
// "host refused the request" (spec.md's OutOfMemory kind) from programmer
// error.
type ErrMapFailed struct{ Cause error }

func (e *ErrMapFailed) Error() string { return fmt.Sprintf("osmem: mmap failed: %v", e.Cause) }
func (e *ErrMapFailed) Unwrap() error { return e.Cause }
