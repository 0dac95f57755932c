//go:build arm64

// Package atomic provides the small set of lock-free primitives the kernel
// needs before any allocator or scheduler exists: a compare-and-swap and a
// load/store pair over 32- and 64-bit words. It mirrors the shape of the Go
// runtime's internal/runtime/atomic package (LDAXR/STLXR-backed, no LSE
// assumption) but keeps only a handful of entry points; internal/spinlock
// is the only caller, and it uses Cas32 and Store32.
//
// atomic_portable.go backs the same API with sync/atomic for non-arm64
// `go test` runs, the way upstream Go's internal/runtime/atomic carries one
// file per GOARCH.
package atomic

//go:noescape
func Cas32(ptr *uint32, old, new uint32) bool

//go:noescape
func Cas64(ptr *uint64, old, new uint64) bool

//go:noescape
func Load32(ptr *uint32) uint32

//go:noescape
func Load64(ptr *uint64) uint64

//go:noescape
func Store32(ptr *uint32, val uint32)

//go:noescape
func Store64(ptr *uint64, val uint64)

//go:noescape
func Xadd32(ptr *uint32, delta int32) uint32
