//go:build !arm64

package atomic

import "sync/atomic"

func Cas32(ptr *uint32, old, new uint32) bool { return atomic.CompareAndSwapUint32(ptr, old, new) }
func Cas64(ptr *uint64, old, new uint64) bool { return atomic.CompareAndSwapUint64(ptr, old, new) }
func Load32(ptr *uint32) uint32               { return atomic.LoadUint32(ptr) }
func Load64(ptr *uint64) uint64               { return atomic.LoadUint64(ptr) }
func Store32(ptr *uint32, val uint32)         { atomic.StoreUint32(ptr, val) }
func Store64(ptr *uint64, val uint64)         { atomic.StoreUint64(ptr, val) }
func Xadd32(ptr *uint32, delta int32) uint32  { return atomic.AddUint32(ptr, uint32(delta)) }
