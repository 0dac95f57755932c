//go:build !arm64

package asm

import "unsafe"

// Portable stand-ins for host-side `go test` runs. None of these are part
// of the kernel image; see the package doc comment in asm_arm64.go.

func Dsb() {}
func Isb() {}
func Dmb() {}

func WriteMairEl1(uint64)    {}
func ReadMairEl1() uint64    { return 0 }
func WriteTcrEl1(uint64)     {}
func ReadTcrEl1() uint64     { return 0 }
func WriteSctlrEl1(uint64)   {}
func ReadSctlrEl1() uint64   { return 0 }
func WriteTtbr0El1(uintptr)  {}
func WriteTtbr1El1(uintptr)  {}
func ReadMpidrEl1() uint64   { return 0 }
func ReadEsrEl1() uint64     { return 0 }
func ReadFarEl1() uint64     { return 0 }
func ReadElrEl1() uint64     { return 0 }
func ReadSpsrEl1() uint64    { return 0 }
func SetVbarEl1(uintptr)     {}

// tpidrEl1 stands in for the register on host test runs: unlike the other
// stubs above, callers (internal/thread) actually rely on read-after-write
// round-tripping, so a fixed 0 return would break them.
var tpidrEl1 uint64

func ReadTpidrEl1() uint64      { return tpidrEl1 }
func WriteTpidrEl1(val uint64)  { tpidrEl1 = val }

func InvalidateTlbAll()             {}
func InvalidateTlbVa(uintptr)       {}
func CleanDcacheVa(uintptr)         {}
func InvalidateInstructionCacheAll() {}

func MmioRead32(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

func MmioWrite32(addr uintptr, val uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = val
}

func Load64(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

func Store64(addr uintptr, val uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = val
}

func Bzero(ptr unsafe.Pointer, n uintptr) {
	buf := unsafe.Slice((*byte)(ptr), n)
	for i := range buf {
		buf[i] = 0
	}
}

func WaitForEvent() {}

func DisableIrqs() uint64    { return 0 }
func RestoreIrqs(saved uint64) {}

func ImageBase() uintptr       { return 0 }
func ImageEnd() uintptr        { return 0 }
func TextBase() uintptr        { return 0 }
func TextEnd() uintptr         { return 0 }
func StaticBase() uintptr      { return 0 }
func StaticEnd() uintptr       { return 0 }
func BssBase() uintptr         { return 0 }
func BssEnd() uintptr          { return 0 }
func DataBase() uintptr        { return 0 }
func DataEnd() uintptr         { return 0 }
func StackBase() uintptr       { return 0 }
func StackEnd() uintptr        { return 0 }
func StackTop() uintptr        { return 0 }
func VectorTableEl1() uintptr  { return 0 }
