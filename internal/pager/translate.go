package pager

import "kcore/internal/addr"

// Walker is the addr.Translate realisation backed by a live PageDirectory
// (kept here rather than in package addr to avoid an addr<->pager import
// cycle). Read-only lookups walk the tree without taking PageDirectory's
// lock: the spinlock protects mutation, not immutable reads.
type Walker struct {
	Dir *PageDirectory
	Mx  MemXlat
}

func (w Walker) Translate(v addr.VirtAddr) addr.PhysAddr {
	p, _ := w.TranslateMaybe(v)
	return p
}

func (w Walker) TranslateMaybe(v addr.VirtAddr) (addr.PhysAddr, bool) {
	slot := w.Dir.Ttbr0
	if isKernelHalf(v) {
		slot = w.Dir.Ttbr1
	}
	if slot == nil {
		return 0, false
	}
	tablePhys := *slot
	tableBase := rootBase(v)

	for level := rootLevel; ; level++ {
		tbl := tableAt(w.Mx, tablePhys)
		sz := entrySize(level)
		idx := (uint64(v) >> levelOffsets[level]) & 0x1FF
		entryBase := tableBase.Add(uintptr(idx) * sz)

		switch classify(tbl.Entries[idx], level) {
		case kindLeaf:
			offset := uintptr(v) - uintptr(entryBase)
			return outputAddress(tbl.Entries[idx]).Add(offset), true
		case kindTable:
			tablePhys = outputAddress(tbl.Entries[idx])
			tableBase = entryBase
			continue
		default:
			return 0, false
		}
	}
}
