// Package goroutine extracts goroutine identities from the runtime.
//
// The profiler binds one Recorder to each goroutine that records events.
// Go has no goroutine-local storage, so the binding is keyed by the
// goroutine ID parsed from the first line of runtime.Stack output:
//
//	goroutine 123 [running]:
//
// LiveIDs enumerates every goroutine the same way, which lets the profiler
// drop bindings of goroutines that have exited.
package goroutine

import (
	"runtime"
	"sync"
)

const prefix = "goroutine "

// dumpSize is the starting buffer size for LiveIDs. It doubles until the
// dump of all goroutines fits.
const dumpSize = 64 * 1024

var dumpPool = sync.Pool{
	New: func() any {
		b := make([]byte, dumpSize)
		return &b
	},
}

// ID returns the ID of the calling goroutine, or 0 if it cannot be parsed.
//
// Performance: ~1µs per call, dominated by runtime.Stack. Callers on a hot
// path should cache the result for the lifetime of the goroutine's work.
func ID() int64 {
	// Only the first line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return ParseID(buf[:n])
}

// ParseID extracts the goroutine ID from the header line of a stack trace.
//
// Expected format: "goroutine 123 [running]:..."
// Returns 0 if buf does not start with the header.
func ParseID(buf []byte) int64 {
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// LiveIDs returns the IDs of all goroutines that exist at the time of the call.
//
// The buffer grows until runtime.Stack no longer truncates, so no live
// goroutine is ever missing from the result.
func LiveIDs() []int64 {
	bp := dumpPool.Get().(*[]byte)
	defer dumpPool.Put(bp)

	for {
		n := runtime.Stack(*bp, true)
		if n < len(*bp) {
			return ParseAllIDs((*bp)[:n])
		}
		*bp = make([]byte, 2*len(*bp))
	}
}

// ParseAllIDs extracts every goroutine ID from runtime.Stack(all=true) output.
//
// Input format:
//
//	goroutine 1 [running]:
//	main.main()
//	    /path/to/main.go:10 +0x20
//
//	goroutine 5 [chan receive]:
//	main.worker()
//	    /path/to/main.go:20 +0x40
//
// Result: [1, 5]
func ParseAllIDs(buf []byte) []int64 {
	var ids []int64
	for i := 0; i < len(buf); {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}
		if id := ParseID(buf[i:end]); id != 0 {
			ids = append(ids, id)
		}
		i = end + 1
	}
	return ids
}
