// Command example is a small interactive driver for the tcmalloc package:
// instead of set/get/del against a KV cache, it allocates and frees raw
// regions so the three-tier cache behavior is visible from a terminal.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/leslie-fei/tcmalloc"
)

func main() {
	var watermarkKB int
	flag.IntVar(&watermarkKB, "watermark", 256, "per-class thread-cache budget in KiB")
	flag.Parse()

	cfg := tcmalloc.DefaultConfig()
	cfg.WatermarkBytes = uint64(watermarkKB) * tcmalloc.KB
	cfg.RecycleThreshold = cfg.WatermarkBytes
	heap := tcmalloc.NewHeap(cfg)

	live := map[string]struct {
		ptr  unsafe.Pointer
		size uintptr
	}{}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Available commands: alloc <tag> <size>, free <tag>, stats, drain, exit")

	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit":
			return
		case "alloc":
			if len(parts) != 3 {
				fmt.Println("usage: alloc <tag> <size>")
				continue
			}
			size, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				fmt.Println("bad size:", err)
				continue
			}
			ptr := heap.Alloc(uintptr(size))
			if ptr == nil {
				fmt.Println("allocation failed")
				continue
			}
			live[parts[1]] = struct {
				ptr  unsafe.Pointer
				size uintptr
			}{ptr, uintptr(size)}
			fmt.Printf("allocated %s: %d bytes\n", parts[1], size)
		case "free":
			if len(parts) != 2 {
				fmt.Println("usage: free <tag>")
				continue
			}
			entry, ok := live[parts[1]]
			if !ok {
				fmt.Println("unknown tag")
				continue
			}
			heap.Free(entry.ptr, entry.size)
			delete(live, parts[1])
			fmt.Println("freed", parts[1])
		case "stats":
			s := heap.Stats()
			fmt.Printf("cached=%d free_pages=%d obtained=%d\n", s.CachedBytes, s.FreePageBytes, s.ObtainedBytes)
		case "drain":
			heap.DrainThreadCache()
			fmt.Println("drained")
		default:
			fmt.Println("unknown command. Try: alloc, free, stats, drain or exit")
		}
	}
}
