package main

import (
	"unsafe"

	"kcore/internal/addr"
	"kcore/internal/arch/asm"
	"kcore/internal/arch/cpu"
	"kcore/internal/dtb"
	"kcore/internal/fault"
	"kcore/internal/frame"
	"kcore/internal/layout"
	"kcore/internal/pager"
	"kcore/internal/thread"
	"kcore/internal/uart"
)

// defaultRamBase/defaultRamFrames back the frame table when the DTB cannot
// be read: QEMU's virt machine default of 4 GiB starting at 1 GiB.
const (
	defaultRamBase   = addr.PhysAddr(0x4000_0000)
	defaultRamFrames = (4 << 30) / addr.PageSize
)

var (
	frames    *frame.Table
	kernelDir pager.PageDirectory
	threads   *thread.Table
	faults    *fault.Handler
	console   *uart.Driver
)

// ramExtent resolves the physical RAM window dtbPhys describes, falling
// back to the fixed default if the pointer reset_arm64.s recorded does not
// look like a valid FDT blob — recordDTB stores whatever X0 held at reset,
// which QEMU populates but a direct-kernel-boot stub might not.
func ramExtent() (base addr.PhysAddr, frameCount int) {
	if dtbPhys == 0 {
		return defaultRamBase, defaultRamFrames
	}
	// dtbPhys sits inside the window ttbr0Boot[1] already identity-maps
	// (phys [1 GiB, 2 GiB)), so it is already a valid low VirtAddr without
	// going through any translator.
	blob, ok := dtb.Open(uintptr(dtbPhys))
	if !ok {
		return defaultRamBase, defaultRamFrames
	}
	ramBase, ramSize, ok := blob.RamRange()
	if !ok || ramSize == 0 {
		return defaultRamBase, defaultRamFrames
	}
	return addr.PhysAddr(ramBase), int(ramSize / addr.PageSize)
}

// reserveStack withdraws the reset stack's pages from Free: asm.StackBase/
// StackEnd are the same kind of link-time marker as ImageBase/ImageEnd, so
// the range they bracket is reserved the same way, rounded out to whole
// pages since the linker has no reason to page-align a stack.
func reserveStack() {
	base := addr.PhysAddr(asm.StackBase()).PageBase()
	end := addr.PhysAddr(asm.StackEnd()).AlignUp(addr.PageSize)
	if end <= base {
		return
	}
	frames.ReserveRange(addr.PhysAddrRange{Base: base, Length: uintptr(end - base)})
}

// reserveDTB withdraws the pages backing the live flattened device tree
// blob from Free, using the header's own totalsize field (dtb.Blob.Size) to
// learn the blob's extent — without it there is no way to know how much of
// RAM the blob occupies, so nothing stops a later allocation from handing
// those pages back out to something else.
func reserveDTB() {
	if dtbPhys == 0 {
		return
	}
	blob, ok := dtb.Open(uintptr(dtbPhys))
	if !ok {
		return
	}
	base := dtbPhys.PageBase()
	end := dtbPhys.Add(uintptr(blob.Size())).AlignUp(addr.PageSize)
	if end <= base {
		return
	}
	frames.ReserveRange(addr.PhysAddrRange{Base: base, Length: uintptr(end - base)})
}

// kernelInit runs in the high half with the MMU already enabled. It brings
// up the debug console, builds the real frame table and kernel page
// directory from internal/layout's declarative extent table, switches the
// live TTBR1 root over to that directory, and starts the thread table and
// fault handler that consult it from then on.
//
//go:noinline
func kernelInit() {
	// reset_arm64.s already parked every non-boot core in a wfe loop before
	// ever reaching this function; cpu.IsBootCore re-derives the same
	// MPIDR_EL1.Aff0 check in Go as a standing assertion that invariant
	// held, rather than trusting the hand-written assembly silently.
	if !cpu.IsBootCore() {
		haltWith("kernelInit reached on a non-boot core")
	}

	asm.SetVbarEl1(asm.VectorTableEl1())

	console = uart.New()
	console.Init()
	console.WriteString("kernelInit: starting\n")

	ramBase, ramFrames := ramExtent()

	imageBase := addr.PhysAddr(asm.ImageBase())
	layout.Init(
		func() addr.PhysAddrRange { return addr.PhysAddrRange{Base: ramBase, Length: uintptr(ramFrames) * addr.PageSize} },
		func() addr.PhysAddrRange { return addr.PhysAddrRange{Base: imageBase, Length: 1 << 30} },
	)

	// All of RAM, including every frame the page directory itself draws
	// for sub-tables, sits behind one fixed offset into the high half —
	// the same translator the RAM extent installs for ordinary mappings,
	// so the directory never needs a self-referential walk to find its
	// own tables.
	mx := addr.NewFixedOffset(ramBase, layout.KernelBase())

	frames = frame.New(ramBase, ramFrames)
	frames.Repoint(mx, ramBase)
	frame.ZeroPage = func(p addr.PhysAddr) {
		asm.Bzero(unsafe.Pointer(addr.As[byte](mx.TranslatePhys(p))), addr.PageSize)
	}

	// The kernel image (text/rodata/data/bss), the reset stack, and the
	// live DTB blob must never be handed out by AllocForPurpose/DemandPage.
	// The frame table's own backing storage (t.nodes/t.purposeOf) needs no
	// entry here: it comes from the Go allocator, not frame.New's RAM
	// window, so it carries no PhysAddrRange for ReserveRange to withdraw
	// in the first place — see DESIGN.md.
	frames.ReserveRange(addr.PhysAddrRange{Base: imageBase, Length: 1 << 30})
	reserveStack()
	reserveDTB()

	for r := range layout.Regions {
		if tr, ok := r.Translator(); ok {
			if _, err := kernelDir.MapTranslation(r.Virt, tr, r.Attrs, frames, mx); err != nil {
				haltWith(err.Error())
			}
			continue
		}
		if _, err := kernelDir.MapTranslation(r.Virt, addr.Null{}, r.Attrs, frames, mx); err != nil {
			haltWith(err.Error())
		}
	}

	// kernelDir now covers every declared region; point the live TTBR1 at
	// its root so the MMU actually consults it instead of the boot tables,
	// and flush stale translations the boot mapping may have cached.
	if kernelDir.Ttbr1 != nil {
		asm.WriteTtbr1El1(uintptr(*kernelDir.Ttbr1))
		asm.InvalidateTlbAll()
		asm.Isb()
	}

	threads = thread.New()
	faults = &fault.Handler{Dir: &kernelDir, Frames: frames, Mx: mx, Log: console}

	console.WriteString("kernelInit: ready\n")

	for {
		asm.WaitForEvent()
	}
}

func haltWith(msg string) {
	if console != nil {
		console.WriteString("halt: " + msg + "\n")
	}
	for {
		asm.WaitForEvent()
	}
}
