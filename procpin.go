package tcmalloc

import _ "unsafe" // for go:linkname

// procPin/procUnpin reach into the runtime's per-P pinning primitives, the
// same pair sync.Pool uses internally to find its calling P's local slot
// without true OS-thread TLS. spec.md's thread cache is specified against
// an OS-thread-TLS model Go does not expose, so this module follows the
// same "pin to the calling P" idiom Go's own allocator (mcache) and
// sync.Pool use in place of it — see SPEC_FULL.md §1.
//
//go:linkname procPin runtime.procPin
func procPin() int

//go:linkname procUnpin runtime.procUnpin
func procUnpin()
