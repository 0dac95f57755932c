// Package dtb reads the flattened device tree QEMU's virt machine hands the
// kernel at boot. Grounded on the teacher's dtb_qemu.go FDT walker
// (fdtMagic/fdtBeginNode/fdtProp tag constants, the big-endian be32/be64
// readers, the totalsize/offset-struct/offset-strings header fields),
// generalised from a single-purpose "find the PCI ECAM node" scan into a
// general per-node property iterator: kernel_init needs `/memory@...`'s
// `reg` (the RAM range) and the blob's own extent (to reserve its backing pages), not
// the PCI host bridge the teacher was chasing.
package dtb

import (
	"strings"
	"unsafe"
)

const fdtMagic = 0xd00d_feed

const (
	tagBeginNode = 1
	tagEndNode   = 2
	tagProp      = 3
	tagNop       = 4
	tagEnd       = 9
)

func be32(p uintptr) uint32 {
	b := (*[4]byte)(unsafe.Pointer(p))
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be64(p uintptr) uint64 {
	b := (*[8]byte)(unsafe.Pointer(p))
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func cString(p uintptr) string {
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
	return string(buf)
}

func align4(p uintptr) uintptr { return (p + 3) &^ 3 }

// Blob wraps one flattened device tree. base is the physical (pre-MMU) or
// translated (post-MMU) address of its header, whichever the caller already
// has a valid pointer for.
type Blob struct {
	base        uintptr
	totalSize   uint32
	structBase  uintptr
	stringsBase uintptr
}

// Open validates the FDT header at base and returns a Blob positioned to
// walk it, or ok=false if base does not point at a valid FDT_MAGIC blob.
func Open(base uintptr) (b Blob, ok bool) {
	if be32(base) != fdtMagic {
		return Blob{}, false
	}
	totalSize := be32(base + 4)
	offStruct := uintptr(be32(base + 8))
	offStrings := uintptr(be32(base + 12))
	return Blob{
		base:        base,
		totalSize:   totalSize,
		structBase:  base + offStruct,
		stringsBase: base + offStrings,
	}, true
}

// Size returns the FDT header's totalsize field: the full byte extent of
// the blob starting at the address passed to Open, header included. Callers
// that need to keep the allocator from handing out the pages backing a live
// blob reserve exactly this range.
func (b Blob) Size() uint64 { return uint64(b.totalSize) }

// Base returns the address passed to Open.
func (b Blob) Base() uintptr { return b.base }

// Node is one FDT node visited during a Walk: its name (empty for the root
// node), its depth (root is 0), and the properties declared directly on it.
type Node struct {
	Name    string
	Depth   int
	propFor map[string][]byte
}

// Property returns the raw value of name if Node declares it.
func (n Node) Property(name string) ([]byte, bool) {
	v, ok := n.propFor[name]
	return v, ok
}

// Uint32 reads a property as one big-endian cell, the encoding every
// `#address-cells`/`#size-cells`/`interrupt-parent`/`phandle` value uses.
func (n Node) Uint32(name string) (uint32, bool) {
	v, ok := n.propFor[name]
	if !ok || len(v) < 4 {
		return 0, false
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), true
}

// AddressCells returns `#address-cells`, defaulting to 2 (the FDT spec's
// default when a node omits it).
func (n Node) AddressCells() uint32 {
	if v, ok := n.Uint32("#address-cells"); ok {
		return v
	}
	return 2
}

// SizeCells returns `#size-cells`, defaulting to 1.
func (n Node) SizeCells() uint32 {
	if v, ok := n.Uint32("#size-cells"); ok {
		return v
	}
	return 1
}

// RegEntry is one (address, size) pair decoded from a `reg` property using
// the parent node's address/size cell counts.
type RegEntry struct {
	Addr uint64
	Size uint64
}

// Reg decodes this node's `reg` property using parentAddrCells/
// parentSizeCells cells per field, the FDT convention where a node's own
// #address-cells/#size-cells describe its *children*, not itself.
func (n Node) Reg(parentAddrCells, parentSizeCells uint32) []RegEntry {
	raw, ok := n.propFor["reg"]
	if !ok {
		return nil
	}
	stride := int(parentAddrCells+parentSizeCells) * 4
	if stride == 0 || len(raw) < stride {
		return nil
	}
	var entries []RegEntry
	for off := 0; off+stride <= len(raw); off += stride {
		entries = append(entries, RegEntry{
			Addr: readCells(raw[off:], parentAddrCells),
			Size: readCells(raw[off+int(parentAddrCells)*4:], parentSizeCells),
		})
	}
	return entries
}

// Interrupts decodes `interrupts` as a flat slice of big-endian cells,
// leaving interpretation of cell grouping (IRQ type/number/flags) to the
// caller: the cell count is interrupt-parent-controller-specific and this
// package does not walk `interrupt-parent` to resolve it.
func (n Node) Interrupts() []uint32 {
	raw, ok := n.propFor["interrupts"]
	if !ok || len(raw)%4 != 0 {
		return nil
	}
	cells := make([]uint32, len(raw)/4)
	for i := range cells {
		cells[i] = uint32(raw[4*i])<<24 | uint32(raw[4*i+1])<<16 | uint32(raw[4*i+2])<<8 | uint32(raw[4*i+3])
	}
	return cells
}

// InterruptParent returns the `interrupt-parent` phandle reference, if set.
func (n Node) InterruptParent() (uint32, bool) { return n.Uint32("interrupt-parent") }

// Phandle returns this node's own `phandle` value, if set.
func (n Node) Phandle() (uint32, bool) { return n.Uint32("phandle") }

func readCells(b []byte, cells uint32) uint64 {
	var v uint64
	n := int(cells) * 4
	if n > len(b) {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Walk iterates every node in the blob in depth-first document order,
// starting at the root (Depth 0, Name ""). Returning false from yield stops
// the walk early.
func (b Blob) Walk(yield func(Node) bool) {
	p := b.structBase
	depth := -1
	for {
		tag := be32(p)
		p += 4
		switch tag {
		case tagBeginNode:
			depth++
			name := cString(p)
			p = align4(p + uintptr(len(name)) + 1)
			node, next := b.collectNode(name, depth, p)
			p = next
			if !yield(node) {
				return
			}
		case tagEndNode:
			depth--
			if depth < -1 {
				return
			}
		case tagNop:
		case tagEnd:
			return
		default:
			return
		}
	}
}

// RamRange returns the physical range described by the root's
// "memory@..." child, the way the teacher's initDeviceTree/
// getPciEcamFromDTB pair resolved one fixed node by scanning the whole
// blob: here the target is `/memory@...`'s `reg` instead of the PCI ECAM
// window, decoded with the root's own #address-cells/#size-cells since reg
// is always sized by the *parent's* cell counts.
func (b Blob) RamRange() (base uint64, size uint64, ok bool) {
	var root Node
	haveRoot := false
	found := false

	b.Walk(func(n Node) bool {
		if n.Depth == 0 {
			root = n
			haveRoot = true
			return true
		}
		if !haveRoot || n.Depth != 1 {
			return true
		}
		if !strings.HasPrefix(n.Name, "memory@") {
			return true
		}
		if dt, ok := n.Property("device_type"); ok && !strings.HasPrefix(string(dt), "memory") {
			return true
		}
		regs := n.Reg(root.AddressCells(), root.SizeCells())
		if len(regs) == 0 {
			return true
		}
		base, size = regs[0].Addr, regs[0].Size
		found = true
		return false
	})
	return base, size, found
}

// collectNode reads every FDT_PROP entry immediately following a
// FDT_BEGIN_NODE tag (before the first nested FDT_BEGIN_NODE or an
// FDT_END_NODE), building the Node's property map, and returns the offset
// just past the last property it consumed.
func (b Blob) collectNode(name string, depth int, p uintptr) (Node, uintptr) {
	node := Node{Name: name, Depth: depth, propFor: map[string][]byte{}}
	for {
		tag := be32(p)
		if tag != tagProp {
			return node, p
		}
		p += 4
		plen := be32(p)
		nameOff := be32(p + 4)
		p += 8
		propName := cString(b.stringsBase + uintptr(nameOff))
		val := unsafe.Slice((*byte)(unsafe.Pointer(p)), plen)
		node.propFor[propName] = val
		p = align4(p + uintptr(plen))
	}
}
