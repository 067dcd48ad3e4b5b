package tcmalloc

import "errors"

var (
	// ErrOutOfMemory is the OutOfMemory kind of spec.md §7: the OS refused
	// a page request and no cached pages satisfy the need. Never returned
	// directly from Alloc (which reports failure as a nil pointer); it
	// surfaces from the lower-level page-cache allocRun/allocLarge paths
	// and from the thread cache's alloc.
	ErrOutOfMemory = errors.New("tcmalloc: out of memory")
	// ErrInvalidSize names a size outside (0, MaxSmall] for a size-class
	// lookup. sizeClassOf does not check its input, and no path in this
	// package returns ErrInvalidSize.
	ErrInvalidSize = errors.New("tcmalloc: invalid size")
	// ErrSpanNotFound indicates a pointer passed to Free could not be
	// mapped back to a registered span; under spec.md §7 this is a
	// contract violation (undefined behavior) and debug builds may choose
	// to panic on it rather than silently ignore it.
	ErrSpanNotFound = errors.New("tcmalloc: pointer does not belong to any registered span")
)
