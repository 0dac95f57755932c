// Package layout declares the kernel's virtual-address-space map: a
// compile-time constant table of named extents, iterated into
// concrete VirtAddrRanges starting at KernelBase. Grounded on the teacher's
// TTBR1 slot placement in mmu.go (entry 0 = RAM block, entry 8 = RAM block
// at the kernel's own base, entry 10 = device block), generalised from "one
// hand-placed 1 GiB block descriptor per slot" into a declarative table the
// way gopher-os's kernel/mem/vmm lays out its reserved regions.
package layout

import (
	"kcore/internal/addr"
	"kcore/internal/attrs"
)

const gib = 1 << 30

// TTBR1Base is the lowest virtual address TTBR1 covers: the 39-bit address
// space the boot TCR configures (T0SZ=T1SZ=25) puts the kernel half at
// 2^64-2^39, the same PAGE_OFFSET a 39-bit VA_BITS configuration always
// produces.
const TTBR1Base = addr.VirtAddr(0xFFFF_FF80_0000_0000)

// KernelBase is the kernel image's own base address: the 8th 1 GiB slot of
// TTBR1's top-level table, matching the boot tables' own RAM-at-slot-8
// placement.
func KernelBase() addr.VirtAddr {
	return TTBR1Base.Add(8 * gib)
}

// Kind names a layout extent's purpose.
type Kind uint8

const (
	RAM Kind = iota
	Image
	Device
	L3PageTables
	Heap
)

func (k Kind) String() string {
	switch k {
	case RAM:
		return "RAM"
	case Image:
		return "Image"
	case Device:
		return "Device"
	case L3PageTables:
		return "L3PageTables"
	case Heap:
		return "Heap"
	default:
		return "Kind(?)"
	}
}

// PhysRangeFunc produces the physical range a RAM or Image extent is 1:1
// backed by. Device, L3PageTables and Heap extents have no such producer:
// they start unmapped and are populated on demand.
type PhysRangeFunc func() addr.PhysAddrRange

// KernelExtent is one entry of the static layout table.
type KernelExtent struct {
	Kind      Kind
	SizeGiB   uintptr
	Attrs     attrs.Attributes
	PhysRange PhysRangeFunc
}

// KernelRange is what iterating the table yields: a concrete virtual
// extent, its backing physical range if any, and the attribute preset to
// map it with. Translator derives the translator to install for it.
type KernelRange struct {
	Kind    Kind
	Virt    addr.VirtAddrRange
	Phys    addr.PhysAddrRange // zero value if PhysRange is nil
	HasPhys bool
	Attrs   attrs.Attributes
}

// Table is the static layout: RAM, Image, Device, L3PageTables, Heap, each
// sized in GiB, RAM and Image 1:1 backed by a physical producer. Filled in
// by Init before first use, since the RAM and Image phys ranges are only
// known once the DTB has been parsed and the image's link-time extent read.
var Table []KernelExtent

// Init installs the table's physical-range producers for the two kinds that
// carry one. Must be called once, before Regions is first iterated.
func Init(ramRange, imageRange func() addr.PhysAddrRange) {
	Table = []KernelExtent{
		{Kind: RAM, SizeGiB: 4, PhysRange: ramRange, Attrs: attrs.RAM},
		{Kind: Image, SizeGiB: 1, PhysRange: imageRange, Attrs: attrs.KernelExecA},
		{Kind: Device, SizeGiB: 1, Attrs: attrs.DeviceA | attrs.OnDemand},
		{Kind: L3PageTables, SizeGiB: 8, Attrs: attrs.KernelData | attrs.OnDemand},
		{Kind: Heap, SizeGiB: 8, Attrs: attrs.KernelData | attrs.OnDemand},
	}
}

// Regions iterates Table, prefix-summing each extent's size starting at
// KernelBase, and yields the concrete KernelRange for each.
func Regions(yield func(KernelRange) bool) {
	base := KernelBase()
	for _, e := range Table {
		size := e.SizeGiB * gib
		v := addr.VirtAddrRange{Base: base, Length: size}
		kr := KernelRange{Kind: e.Kind, Virt: v, Attrs: e.Attrs}
		if e.PhysRange != nil {
			kr.Phys = e.PhysRange()
			kr.HasPhys = true
		}
		if !yield(kr) {
			return
		}
		base = v.Top()
	}
}

// Translator returns the FixedOffset translator for a RAM or Image range
// (HasPhys true), and false for the on-demand kinds, which have no fixed
// phys<->virt relationship until pager.DemandPage backs them a page at a
// time.
func (r KernelRange) Translator() (addr.FixedOffset, bool) {
	if !r.HasPhys {
		return addr.FixedOffset{}, false
	}
	return addr.NewFixedOffset(r.Phys.Base, r.Virt.Base), true
}

// TotalSize returns the sum of every extent's size in bytes.
func TotalSize() uintptr {
	var total uintptr
	for _, e := range Table {
		total += e.SizeGiB * gib
	}
	return total
}
