package pager

import (
	"kcore/internal/addr"
	"kcore/internal/attrs"
)

// Bit positions from the architectural page/table descriptor layout.
const (
	bitValid = 1 << 0
	bitType  = 1 << 1 // table-or-page at this level, vs. block
	bitAF    = 1 << 10
	bitContig = 1 << 52
	bitPXN    = 1 << 53
	bitUXN    = 1 << 54
	bitPXNTable = 1 << 59
	bitUXNTable = 1 << 60

	outputAddrMask = 0x0000_FFFF_FFFF_F000 // bits [47:12]
	attrIndxShift  = 2
	apShift        = 6
	shShift        = 8

	// neutralMarker distinguishes a neutral placeholder — a mapping that
	// exists but has not yet drawn a frame — from a truly-null entry. Both
	// have bitValid clear, so hardware, which never sees bitValid clear as
	// anything but "absent", treats them identically; only software
	// (classify) tells them apart.
	neutralMarker = 1 << 1
)

// entryKind classifies a raw descriptor for the walker.
type entryKind uint8

const (
	kindNull entryKind = iota
	kindNeutral
	kindTable
	kindLeaf // block (level 1/2) or page (level 3)
)

func classify(e uint64, level int) entryKind {
	if e&bitValid == 0 {
		if e&neutralMarker != 0 {
			return kindNeutral
		}
		return kindNull
	}
	if level < 3 && e&bitType != 0 {
		return kindTable
	}
	return kindLeaf
}

// encodeLeaf builds a block (level 1/2) or page (level 3) descriptor.
func encodeLeaf(level int, phys addr.PhysAddr, e attrs.Encoded) uint64 {
	v := uint64(bitValid)
	if level == 3 {
		v |= bitType
	}
	v |= uint64(phys) & outputAddrMask
	v |= uint64(e.AttrIndx) << attrIndxShift
	v |= uint64(e.AP) << apShift
	v |= uint64(e.SH) << shShift
	if e.AF {
		v |= bitAF
	}
	if e.Contiguous {
		v |= bitContig
	}
	if e.PXN {
		v |= bitPXN
	}
	if e.UXN {
		v |= bitUXN
	}
	return v
}

// encodeTable builds a table descriptor pointing at nextLevelPhys.
func encodeTable(nextLevelPhys addr.PhysAddr, e attrs.Encoded) uint64 {
	v := uint64(bitValid | bitType)
	v |= uint64(nextLevelPhys) & outputAddrMask
	if e.PXNTable {
		v |= bitPXNTable
	}
	if e.UXNTable {
		v |= bitUXNTable
	}
	return v
}

// encodeNeutral builds the software-only placeholder for an on-demand
// mapping not yet backed by a frame: bitValid clear (so hardware ignores it
// entirely), neutralMarker set, and the Attributes DemandPage needs to
// promote it later packed above.
func encodeNeutral(a attrs.Attributes) uint64 {
	return neutralMarker | (uint64(a) << 8)
}

func neutralAttrs(e uint64) attrs.Attributes {
	return attrs.Attributes(e >> 8)
}

func outputAddress(e uint64) addr.PhysAddr {
	return addr.PhysAddr(e & outputAddrMask)
}
