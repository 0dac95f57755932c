//go:build arm64

// Package asm declares the inline-assembly intrinsics the rest of the
// kernel treats as opaque leaf calls: barriers, TLB/cache maintenance,
// system-register access, raw MMIO, and linker-symbol addresses.
//
// Every function here is a //go:noescape declaration backed by a Plan 9
// assembly body in asm_arm64.s, the same split the teacher uses throughout
// (mazboot's "mazboot/asm" package: asm.Dsb(), asm.Isb(),
// asm.WriteMairEl1(), asm.GetStartAddr(), ...). Nothing in this package
// allocates, blocks, or touches Go's scheduler; it is safe to call before
// the MMU is enabled.
//
// asm_portable.go provides a non-arm64 build of the same API (system
// registers stubbed, MMIO and Bzero done in plain Go) purely so the
// architecture-independent packages that sit above this one (frame, pager,
// attrs, addr) can run their unit tests with `go test` on a development
// host; it is never linked into the kernel image itself.
package asm

import "unsafe"

// Barriers and synchronisation.

//go:noescape
func Dsb()

//go:noescape
func Isb()

//go:noescape
func Dmb()

// System-register access.

//go:noescape
func WriteMairEl1(val uint64)

//go:noescape
func ReadMairEl1() uint64

//go:noescape
func WriteTcrEl1(val uint64)

//go:noescape
func ReadTcrEl1() uint64

//go:noescape
func WriteSctlrEl1(val uint64)

//go:noescape
func ReadSctlrEl1() uint64

//go:noescape
func WriteTtbr0El1(phys uintptr)

//go:noescape
func WriteTtbr1El1(phys uintptr)

//go:noescape
func ReadMpidrEl1() uint64

//go:noescape
func ReadEsrEl1() uint64

//go:noescape
func ReadFarEl1() uint64

//go:noescape
func ReadElrEl1() uint64

//go:noescape
func ReadSpsrEl1() uint64

//go:noescape
func SetVbarEl1(addr uintptr)

// TPIDR_EL1 carries the running thread's control-block pointer: the one
// architectural thread-pointer register the thread table's current() reads.
//
//go:noescape
func ReadTpidrEl1() uint64

//go:noescape
func WriteTpidrEl1(val uint64)

// TLB and cache maintenance. Every mutation of a *valid* descriptor must be
// followed by an invalidate for the covered range and an Isb.

//go:noescape
func InvalidateTlbAll()

//go:noescape
func InvalidateTlbVa(va uintptr)

//go:noescape
func CleanDcacheVa(va uintptr)

//go:noescape
func InvalidateInstructionCacheAll()

// Raw memory and MMIO. These are the only primitives allowed to touch an
// address with no Go type behind it (a device register, a page-table slot
// reached through a PhysAddr).

//go:noescape
func MmioRead32(addr uintptr) uint32

//go:noescape
func MmioWrite32(addr uintptr, val uint32)

//go:noescape
func Load64(addr uintptr) uint64

//go:noescape
func Store64(addr uintptr, val uint64)

//go:noescape
func Bzero(ptr unsafe.Pointer, n uintptr)

// WaitForEvent parks the calling core on `wfe`. The boot core calls it in
// kernelInit's idle loop and on every halt path (cmd/kernel's haltWith,
// internal/fault's haltLoop).
//
//go:noescape
func WaitForEvent()

// DisableIrqs masks IRQs on the current core and returns the prior DAIF
// value so the caller can restore it. Every spinlock acquires with IRQs
// disabled.
//
//go:noescape
func DisableIrqs() uint64

// RestoreIrqs writes back a DAIF value saved by DisableIrqs.
//
//go:noescape
func RestoreIrqs(saved uint64)

// Linker symbols. Each returns the *address* of the named
// linker symbol, never a value stored there — the symbols are defined with
// zero size in the linker script and exist purely as address markers.

//go:noescape
func ImageBase() uintptr

//go:noescape
func ImageEnd() uintptr

//go:noescape
func TextBase() uintptr

//go:noescape
func TextEnd() uintptr

//go:noescape
func StaticBase() uintptr

//go:noescape
func StaticEnd() uintptr

//go:noescape
func BssBase() uintptr

//go:noescape
func BssEnd() uintptr

//go:noescape
func DataBase() uintptr

//go:noescape
func DataEnd() uintptr

//go:noescape
func StackBase() uintptr

//go:noescape
func StackEnd() uintptr

//go:noescape
func StackTop() uintptr

//go:noescape
func VectorTableEl1() uintptr
