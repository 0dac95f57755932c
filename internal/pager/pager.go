// Package pager implements the four-level AArch64 page-directory engine:
// PageTable is a 512-entry descriptor array; PageDirectory
// owns a TTBR0 and TTBR1 root and the single lock that serialises mutation
// of the tree they head. Grounded on the teacher's descriptor encoding in
// mmu.go (MAIR/AP/SH/AttrIndx bit positions, TTBR0/TTBR1 population),
// generalised from "walk hand-written at each call site" into a single
// recursive installer the way gopher-os/kernel/hal/vmm/pdt.go separates the
// walk from the policy that drives it — adapted away from x86's recursive
// self-mapping trick (this kernel's RAM is always reachable through
// FixedOffset, so a walker never needs to map page tables into themselves
// to read them).
package pager

import (
	"kcore/internal/addr"
	"kcore/internal/attrs"
	"kcore/internal/frame"
	"kcore/internal/kerr"
	"kcore/internal/spinlock"
)

// levelOffsets[lvl] is the bit position of the index field a VirtAddr
// contributes at level lvl: 39, 30, 21, 12. Level 0 is unused by this
// kernel's 39-bit TCR configuration; the root level is 1.
var levelOffsets = [4]uint{39, 30, 21, 12}

const rootLevel = 1
const leafLevel = 3
const entriesPerTable = 512
const contiguousGroupEntries = 16

func entrySize(level int) uintptr { return uintptr(1) << levelOffsets[level] }

// PageTable is one 4 KiB, 512-entry level of the tree.
type PageTable struct {
	Entries [entriesPerTable]uint64
}

// MemXlat is the capability the engine needs to turn a table's physical
// address into a dereferenceable VirtAddr and back — satisfied by the
// FixedOffset that maps all of RAM into the kernel's high half, or by
// Identity before paging is enabled.
type MemXlat interface {
	addr.Translate
	addr.ReverseTranslate
}

func tableAt(mx MemXlat, p addr.PhysAddr) *PageTable {
	return addr.As[PageTable](mx.TranslatePhys(p))
}

// PageDirectory is the pair of root tables: TTBR0 (user, low half) and
// TTBR1 (kernel, high half). Both start absent and
// are allocated lazily, on the first MapTranslation or DemandPage that
// needs one.
type PageDirectory struct {
	lock  spinlock.Lock
	Ttbr0 *addr.PhysAddr
	Ttbr1 *addr.PhysAddr
}

func isKernelHalf(v addr.VirtAddr) bool { return int64(v) < 0 }

// purposeForLeaf picks the frame.Purpose a data page materialised by
// demand_page should be tracked under: UserCold for user-accessible pages
// (not yet touched enough to be warm), Kernel otherwise.
func purposeForLeaf(a attrs.Attributes) frame.Purpose {
	if a.Has(attrs.UserRead) || a.Has(attrs.UserWrite) {
		return frame.UserCold
	}
	return frame.Kernel
}

// rootBase returns the VirtAddr of index 0 of whichever root table covers
// v — the 512 GiB-aligned block v falls in — computed purely from v so the
// engine never needs to know TTBR0/TTBR1's absolute placement.
func rootBase(v addr.VirtAddr) addr.VirtAddr {
	return v.AlignDown(entriesPerTable * entrySize(rootLevel))
}

// rootTable returns the root table for v, allocating and zeroing one from
// frames (purpose frame.BranchPT) if it doesn't exist yet.
func (d *PageDirectory) rootTable(v addr.VirtAddr, frames *frame.Table, mx MemXlat) (addr.PhysAddr, error) {
	slot := &d.Ttbr0
	if isKernelHalf(v) {
		slot = &d.Ttbr1
	}
	if *slot != nil {
		return **slot, nil
	}
	f, err := frames.AllocForPurpose(frame.BranchPT)
	if err != nil {
		return 0, kerr.New(kerr.OutOfMemory, "pager", "root table allocation failed")
	}
	phys := frames.FrameAddr(f)
	*tableAt(mx, phys) = PageTable{}
	p := phys
	*slot = &p
	return phys, nil
}

// MapTranslation installs mappings so that every 4 KiB page p in target
// resolves to t.Translate(p.Base), or is left on-demand if attrs.OnDemand
// is set. Returns target unchanged on success.
func (d *PageDirectory) MapTranslation(target addr.VirtAddrRange, t addr.Translate, at attrs.Attributes, frames *frame.Table, mx MemXlat) (addr.VirtAddrRange, error) {
	d.lock.Acquire()
	defer d.lock.Release()

	root, err := d.rootTable(target.Base, frames, mx)
	if err != nil {
		return addr.VirtAddrRange{}, err
	}
	if err := d.mapLevel(rootLevel, root, rootBase(target.Base), target, t, at, frames, mx); err != nil {
		return addr.VirtAddrRange{}, err
	}
	return target, nil
}

// mapLevel installs target into the table at tablePhys, which spans
// [tableBase, tableBase+512*entrySize(level)).
func (d *PageDirectory) mapLevel(level int, tablePhys addr.PhysAddr, tableBase addr.VirtAddr, target addr.VirtAddrRange, t addr.Translate, at attrs.Attributes, frames *frame.Table, mx MemXlat) error {
	tbl := tableAt(mx, tablePhys)
	sz := entrySize(level)
	tableSpan := addr.VirtAddrRange{Base: tableBase, Length: entriesPerTable * sz}
	if tableSpan.Top() == 0 {
		tableSpan.Length-- // span ends at the top of the address space; Top() would wrap
	}
	clipped, ok := target.Intersection(tableSpan)
	if !ok {
		return nil
	}
	firstIdx := (uint64(clipped.Base) >> levelOffsets[level]) & 0x1FF

	for idx := firstIdx; idx < entriesPerTable; idx++ {
		entryBase := tableBase.Add(uintptr(idx) * sz)
		if !entryBase.Less(clipped.Top()) {
			break
		}
		entryRange := addr.VirtAddrRange{Base: entryBase, Length: sz}
		subRange, ok := target.Intersection(entryRange)
		if !ok {
			continue
		}
		fullEntry := subRange == entryRange

		if level == leafLevel || (level < leafLevel && at.Has(attrs.Block) && fullEntry) {
			if classify(tbl.Entries[idx], level) != kindNull && classify(tbl.Entries[idx], level) != kindNeutral {
				panic("pager: re-map of an already-valid descriptor")
			}
			if level == leafLevel && at.Has(attrs.OnDemand) {
				tbl.Entries[idx] = encodeNeutral(at)
				continue
			}
			phys, ok := t.TranslateMaybe(subRange.Base)
			if !ok {
				return kerr.New(kerr.UnexpectedValue, "pager", "translator has no mapping for leaf")
			}
			group := addr.VirtAddrRange{Base: entryBase.AlignDown(contiguousGroupEntries * sz), Length: contiguousGroupEntries * sz}
			enc := attrs.Lower(at, at.Has(attrs.Block) && target.Covers(group))
			tbl.Entries[idx] = encodeLeaf(level, phys, enc)
			continue
		}

		switch classify(tbl.Entries[idx], level) {
		case kindTable:
			if err := d.mapLevel(level+1, outputAddress(tbl.Entries[idx]), entryBase, subRange, t, at, frames, mx); err != nil {
				return err
			}
		case kindNull, kindNeutral:
			if at.Has(attrs.OnDemand) && fullEntry {
				tbl.Entries[idx] = encodeNeutral(at)
				continue
			}
			purpose := frame.BranchPT
			if level+1 == leafLevel {
				purpose = frame.LeafPT
			}
			f, err := frames.AllocForPurpose(purpose)
			if err != nil {
				return kerr.New(kerr.OutOfMemory, "pager", "sub-table allocation failed")
			}
			childPhys := frames.FrameAddr(f)
			*tableAt(mx, childPhys) = PageTable{}
			enc := attrs.Lower(at, false)
			tbl.Entries[idx] = encodeTable(childPhys, enc)
			if err := d.mapLevel(level+1, childPhys, entryBase, subRange, t, at, frames, mx); err != nil {
				return err
			}
		default:
			return kerr.New(kerr.UnexpectedValue, "pager", "unreachable descriptor classification")
		}
	}
	return nil
}

// DemandPage installs a single 4 KiB leaf mapping at faultAddr, backed by
// one newly allocated data frame, called only from the data-abort handler.
// It walks from the root, promoting any neutral placeholder it meets (each
// promotion allocates one more frame for the new table)
// into a real table (fanning the same on-demand Attributes out to every
// sibling entry, so faults elsewhere in the same lazily-declared span
// still find a neutral marker instead of a bare null), until it reaches
// level 3 and installs the page.
func (d *PageDirectory) DemandPage(faultAddr addr.VirtAddr, at attrs.Attributes, frames *frame.Table, mx MemXlat) error {
	d.lock.Acquire()
	defer d.lock.Release()

	slot := &d.Ttbr0
	if isKernelHalf(faultAddr) {
		slot = &d.Ttbr1
	}
	if *slot == nil {
		return kerr.New(kerr.UnexpectedValue, "pager", "demand_page: no root table for this address")
	}
	tablePhys := **slot
	tableBase := rootBase(faultAddr)

	for level := rootLevel; ; level++ {
		tbl := tableAt(mx, tablePhys)
		sz := entrySize(level)
		idx := (uint64(faultAddr) >> levelOffsets[level]) & 0x1FF
		entryBase := tableBase.Add(uintptr(idx) * sz)

		switch classify(tbl.Entries[idx], level) {
		case kindNeutral:
			wantAttrs := neutralAttrs(tbl.Entries[idx])
			if level == leafLevel {
				phys, err := frames.AllocForPurpose(purposeForLeaf(wantAttrs))
				if err != nil {
					return kerr.New(kerr.OutOfMemory, "pager", "demand_page: out of frames")
				}
				enc := attrs.Lower(wantAttrs, false)
				tbl.Entries[idx] = encodeLeaf(level, frames.FrameAddr(phys), enc)
				return nil
			}
			f, err := frames.AllocForPurpose(frame.BranchPT)
			if err != nil {
				return kerr.New(kerr.OutOfMemory, "pager", "demand_page: out of frames")
			}
			childPhys := frames.FrameAddr(f)
			child := tableAt(mx, childPhys)
			*child = PageTable{}
			for i := range child.Entries {
				child.Entries[i] = encodeNeutral(wantAttrs)
			}
			enc := attrs.Lower(wantAttrs, false)
			tbl.Entries[idx] = encodeTable(childPhys, enc)
			tablePhys = childPhys
			tableBase = entryBase
			continue
		case kindTable:
			tablePhys = outputAddress(tbl.Entries[idx])
			tableBase = entryBase
			continue
		case kindLeaf:
			return kerr.New(kerr.UnexpectedValue, "pager", "demand_page: fault on an already-mapped page")
		default:
			return kerr.New(kerr.UnexpectedValue, "pager", "demand_page: fault on a bare, never-declared address")
		}
	}
}

// Unmap removes every mapping target covers and frees any sub-table left
// entirely empty by doing so, walking post-order (children before parents)
// so a freed child is visible when its parent is examined. A root table left
// empty is freed too and its TTBR slot cleared. A removed leaf's frame is
// returned to Free only when it lies inside frames' RAM window; a leaf
// pointing outside it (a device or other untracked address) just has its
// entry cleared.
func (d *PageDirectory) Unmap(target addr.VirtAddrRange, frames *frame.Table, mx MemXlat) error {
	d.lock.Acquire()
	defer d.lock.Release()

	slot := &d.Ttbr0
	if isKernelHalf(target.Base) {
		slot = &d.Ttbr1
	}
	if *slot == nil {
		return nil
	}
	empty, err := d.unmapLevel(rootLevel, **slot, rootBase(target.Base), target, frames, mx)
	if err != nil {
		return err
	}
	if empty {
		frames.RemoveTo(frames.FrameIndexOf(**slot), frame.Free)
		*slot = nil
	}
	return nil
}

// unmapLevel returns whether the table at tablePhys is now entirely empty
// (every entry Null), so the caller can free it.
func (d *PageDirectory) unmapLevel(level int, tablePhys addr.PhysAddr, tableBase addr.VirtAddr, target addr.VirtAddrRange, frames *frame.Table, mx MemXlat) (bool, error) {
	tbl := tableAt(mx, tablePhys)
	sz := entrySize(level)
	tableSpan := addr.VirtAddrRange{Base: tableBase, Length: entriesPerTable * sz}
	if tableSpan.Top() == 0 {
		tableSpan.Length-- // span ends at the top of the address space; Top() would wrap
	}
	clipped, ok := target.Intersection(tableSpan)
	if !ok {
		return allNull(tbl), nil
	}
	firstIdx := (uint64(clipped.Base) >> levelOffsets[level]) & 0x1FF

	for idx := firstIdx; idx < entriesPerTable; idx++ {
		entryBase := tableBase.Add(uintptr(idx) * sz)
		if !entryBase.Less(clipped.Top()) {
			break
		}
		entryRange := addr.VirtAddrRange{Base: entryBase, Length: sz}
		subRange, ok := target.Intersection(entryRange)
		if !ok {
			continue
		}

		switch classify(tbl.Entries[idx], level) {
		case kindNull:
		case kindNeutral:
			tbl.Entries[idx] = 0
		case kindLeaf:
			if subRange != entryRange {
				return false, kerr.New(kerr.Unimplemented, "pager", "unmap: partial unmap of a block mapping")
			}
			if leaf := outputAddress(tbl.Entries[idx]); leaf >= frames.FrameAddr(0) && leaf < frames.FrameAddr(uint32(frames.NumFrames())) {
				frames.RemoveTo(frames.FrameIndexOf(leaf), frame.Free)
			}
			tbl.Entries[idx] = 0
		case kindTable:
			childPhys := outputAddress(tbl.Entries[idx])
			empty, err := d.unmapLevel(level+1, childPhys, entryBase, subRange, frames, mx)
			if err != nil {
				return false, err
			}
			if empty {
				frames.RemoveTo(frames.FrameIndexOf(childPhys), frame.Free)
				tbl.Entries[idx] = 0
			}
		}
	}
	return allNull(tbl), nil
}

func allNull(tbl *PageTable) bool {
	for _, e := range tbl.Entries {
		if e != 0 {
			return false
		}
	}
	return true
}

// Dump writes a debug description of the whole tree to w.
func (d *PageDirectory) Dump(mx MemXlat, w func(string)) {
	d.lock.Acquire()
	defer d.lock.Release()
	if d.Ttbr0 != nil {
		w("TTBR0:")
		dumpLevel(rootLevel, *d.Ttbr0, mx, w, 1)
	}
	if d.Ttbr1 != nil {
		w("TTBR1:")
		dumpLevel(rootLevel, *d.Ttbr1, mx, w, 1)
	}
}

func dumpLevel(level int, tablePhys addr.PhysAddr, mx MemXlat, w func(string), depth int) {
	tbl := tableAt(mx, tablePhys)
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for idx, e := range tbl.Entries {
		switch classify(e, level) {
		case kindNull:
			continue
		case kindNeutral:
			w(indent + "neutral")
		case kindLeaf:
			w(indent + "leaf -> " + hex(uint64(outputAddress(e))))
		case kindTable:
			w(indent + "table ->")
			dumpLevel(level+1, outputAddress(e), mx, w, depth+1)
		}
		_ = idx
	}
}

func hex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0x0"
	}
	buf := make([]byte, 0, 18)
	buf = append(buf, '0', 'x')
	started := false
	for shift := 60; shift >= 0; shift -= 4 {
		d := (v >> uint(shift)) & 0xF
		if d != 0 {
			started = true
		}
		if started {
			buf = append(buf, digits[d])
		}
	}
	return string(buf)
}
