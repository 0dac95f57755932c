// Package cpu reports the handful of processor facts the boot sequence
// needs before any other subsystem exists: which core is executing, and
// whether it is core 0.
package cpu

import "kcore/internal/arch/asm"

// CacheLinePad keeps adjacent fields from sharing a cache line.
type CacheLinePad struct{ _ [64]byte }

// ID identifies a physical core by its Aff0 affinity field, the only
// affinity level QEMU's `virt` machine populates for a single cluster.
type ID uint8

// Current reads MPIDR_EL1 and returns the running core's affinity-0 field.
// kernelInit's first statement re-checks it (through IsBootCore) after
// reset_arm64.s has already parked non-boot cores in assembly.
func Current() ID {
	return ID(asm.ReadMpidrEl1() & 0xFF)
}

// IsBootCore reports whether the running core is core 0. Every core other
// than 0 is expected to halt in a wait-for-event loop forever; no part of
// this kernel's scope brings up secondary cores.
func IsBootCore() bool {
	return Current() == 0
}
