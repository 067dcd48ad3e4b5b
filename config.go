package tcmalloc

// PageSourceKind selects where the page cache gets its OS pages from. This
// allocator is single-process, so there are two backends: a real
// anonymous-mmap source and a pure-Go heap-backed fallback (see
// osmem/osmem.go).
type PageSourceKind int

const (
	// UnixMmap obtains pages via anonymous mmap(2)/munmap(2).
	UnixMmap PageSourceKind = iota
	// HeapBacked obtains pages from the Go heap via make([]byte, ...).
	// Used by default so that tests and non-Linux hosts do not depend on
	// a real mmap syscall.
	HeapBacked
)

// Config tunes the allocator. The zero Config is not valid; use
// DefaultConfig and override individual fields.
type Config struct {
	// PageSource selects the page cache's OS page source.
	PageSource PageSourceKind
	// WatermarkBytes is the fixed per-class thread-cache byte budget of
	// spec.md §4.2 (WATERMARK_BYTES): it caps how large the adaptive
	// refill batch (computeRefillBatch) is allowed to grow. It is a
	// module-wide constant, not a per-thread tunable.
	WatermarkBytes uint64
	// BulkPages is the minimum page count requested from the OS per
	// system call (spec.md §4.4, BULK_PAGES).
	BulkPages uintptr
	// RecycleThreshold is the default value of the per-thread-cache
	// recycle_threshold tunable of spec.md §4.1/§4.2 (the value
	// Get/SetRecycleThreshold read and write). It drives dealloc's
	// release-policy drain trigger, not the refill batch cap.
	RecycleThreshold uint64
	// Log configures the optional structured logger (logging.go). A zero
	// value keeps the allocator silent.
	Log LogConfig
}

// LogConfig configures the zap-backed logger. Silent (zap.NewNop) unless
// Enabled is set.
type LogConfig struct {
	Enabled bool
	// FilePath, when non-empty, routes log output through a rotating
	// lumberjack.Logger instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func DefaultConfig() *Config {
	return &Config{
		PageSource:       HeapBacked,
		WatermarkBytes:   DefaultWatermarkBytes,
		BulkPages:        DefaultBulkPages,
		RecycleThreshold: DefaultWatermarkBytes,
	}
}
