// Package addr provides type-safe address wrappers and the Translate
// capability: PhysAddr and VirtAddr are distinct single-field wrappers over a
// machine word, never implicitly convertible into one another — a
// phys-to-virt mapping always goes through an explicit Translate. Grounded on
// the teacher's raw uintptr arithmetic in mazboot/golang/main/memory.go,
// generalised into typed wrappers the way gopher-os/kernel/mem.Size wraps a
// raw integer with typed accessors.
package addr

import "unsafe"

// PageSize is the base (4 KiB) page size this kernel maps at leaf level.
const PageSize = 1 << PageShift

// PageShift is log2(PageSize).
const PageShift = 12

// PhysAddr is a physical address. The zero value is physical address 0.
type PhysAddr uintptr

// VirtAddr is a virtual address. The zero value is virtual address 0.
type VirtAddr uintptr

// RamPage returns the physical address of the i'th 4 KiB page of RAM
// starting at ramBase.
func RamPage(ramBase PhysAddr, i uint64) PhysAddr {
	return ramBase + PhysAddr(i*PageSize)
}

// Frame returns the zero-based frame number of p relative to ramBase.
// Callers must ensure p >= ramBase; this is a pure arithmetic helper with no
// bounds check of its own, matching the teacher's unchecked pointer
// arithmetic.
func (p PhysAddr) Frame(ramBase PhysAddr) uint64 {
	return uint64(p-ramBase) / PageSize
}

// AlignUp rounds p up to the next multiple of k, a power of two.
func (p PhysAddr) AlignUp(k uintptr) PhysAddr {
	return PhysAddr(alignUp(uintptr(p), k))
}

// AlignDown rounds p down to the previous multiple of k, a power of two.
func (p PhysAddr) AlignDown(k uintptr) PhysAddr {
	return PhysAddr(alignDown(uintptr(p), k))
}

// PageBase aligns p down to the containing 4 KiB page.
func (p PhysAddr) PageBase() PhysAddr { return p.AlignDown(PageSize) }

// PageNumber right-shifts p by PageShift.
func (p PhysAddr) PageNumber() uint64 { return uint64(p) >> PageShift }

// Add returns p advanced by n bytes. On overflow (the wrapped result would
// be less than p) it returns the null address. The range types' Top (and so
// Contains, Covers and Intersection) are built on Add, so a range ending
// exactly at the top of the address space has a Top of 0.
func (p PhysAddr) Add(n uintptr) PhysAddr {
	r := p + PhysAddr(n)
	if r < p {
		return 0
	}
	return r
}

func (p PhysAddr) Less(q PhysAddr) bool  { return p < q }
func (p PhysAddr) Equal(q PhysAddr) bool { return p == q }

// AlignUp rounds v up to the next multiple of k, a power of two.
func (v VirtAddr) AlignUp(k uintptr) VirtAddr {
	return VirtAddr(alignUp(uintptr(v), k))
}

// AlignDown rounds v down to the previous multiple of k, a power of two.
func (v VirtAddr) AlignDown(k uintptr) VirtAddr {
	return VirtAddr(alignDown(uintptr(v), k))
}

// PageBase aligns v down to the containing 4 KiB page.
func (v VirtAddr) PageBase() VirtAddr { return v.AlignDown(PageSize) }

// PageNumber right-shifts v by PageShift.
func (v VirtAddr) PageNumber() uint64 { return uint64(v) >> PageShift }

// Add returns v advanced by n bytes, or the null address on overflow (see
// PhysAddr.Add).
func (v VirtAddr) Add(n uintptr) VirtAddr {
	r := v + VirtAddr(n)
	if r < v {
		return 0
	}
	return r
}

func (v VirtAddr) Less(w VirtAddr) bool  { return v < w }
func (v VirtAddr) Equal(w VirtAddr) bool { return v == w }

// Extend builds the VirtAddrRange [v, v+length).
func (v VirtAddr) Extend(length uintptr) VirtAddrRange {
	return VirtAddrRange{Base: v, Length: length}
}

// As reinterprets v as a pointer to a T of known layout. The caller asserts
// that v is live, mapped, and aligned for T; this is the one place in the
// type system where a VirtAddr stops being an opaque integer. Go methods
// cannot carry their own type parameter, so this is a free function rather
// than a method on VirtAddr.
func As[T any](v VirtAddr) *T {
	return (*T)(unsafe.Pointer(uintptr(v)))
}

func alignUp(a, k uintptr) uintptr   { return (a + k - 1) &^ (k - 1) }
func alignDown(a, k uintptr) uintptr { return a &^ (k - 1) }

// PhysAddrRange is a half-open byte range [Base, Base+Length).
type PhysAddrRange struct {
	Base   PhysAddr
	Length uintptr
}

// Top returns Base+Length.
func (r PhysAddrRange) Top() PhysAddr { return r.Base.Add(r.Length) }

// Contains reports whether p lies within [Base, Top).
func (r PhysAddrRange) Contains(p PhysAddr) bool {
	return p >= r.Base && p < r.Top()
}

// Covers reports whether other is entirely within r.
func (r PhysAddrRange) Covers(other PhysAddrRange) bool {
	return other.Base >= r.Base && other.Top() <= r.Top()
}

// Intersection returns the overlap of r and s, or false if disjoint.
// Intersection is commutative: r.Intersection(s) == s.Intersection(r).
func (r PhysAddrRange) Intersection(s PhysAddrRange) (PhysAddrRange, bool) {
	base := r.Base
	if s.Base > base {
		base = s.Base
	}
	top := r.Top()
	if s.Top() < top {
		top = s.Top()
	}
	if top <= base {
		return PhysAddrRange{}, false
	}
	return PhysAddrRange{Base: base, Length: uintptr(top - base)}, true
}

// Step advances r by its own length, returning the next same-sized range.
func (r PhysAddrRange) Step() PhysAddrRange {
	return PhysAddrRange{Base: r.Top(), Length: r.Length}
}

// PageCount returns the number of 4 KiB pages r spans, rounded up.
func (r PhysAddrRange) PageCount() uint64 {
	return uint64((r.Length + PageSize - 1) / PageSize)
}

// VirtAddrRange is a half-open byte range [Base, Base+Length).
type VirtAddrRange struct {
	Base   VirtAddr
	Length uintptr
}

// Top returns Base+Length.
func (r VirtAddrRange) Top() VirtAddr { return r.Base.Add(r.Length) }

// Contains reports whether v lies within [Base, Top).
func (r VirtAddrRange) Contains(v VirtAddr) bool {
	return v >= r.Base && v < r.Top()
}

// Covers reports whether other is entirely within r.
func (r VirtAddrRange) Covers(other VirtAddrRange) bool {
	return other.Base >= r.Base && other.Top() <= r.Top()
}

// Intersection returns the overlap of r and s, or false if disjoint.
func (r VirtAddrRange) Intersection(s VirtAddrRange) (VirtAddrRange, bool) {
	base := r.Base
	if s.Base > base {
		base = s.Base
	}
	top := r.Top()
	if s.Top() < top {
		top = s.Top()
	}
	if top <= base {
		return VirtAddrRange{}, false
	}
	return VirtAddrRange{Base: base, Length: uintptr(top - base)}, true
}

// Step advances r by its own length, returning the next same-sized range.
func (r VirtAddrRange) Step() VirtAddrRange {
	return VirtAddrRange{Base: r.Top(), Length: r.Length}
}

// PageCount returns the number of 4 KiB pages r spans, rounded up.
func (r VirtAddrRange) PageCount() uint64 {
	return uint64((r.Length + PageSize - 1) / PageSize)
}

// Chunks calls yield once per page-sized (or smaller, for the final chunk)
// sub-range of r, in ascending order.
func (r VirtAddrRange) Chunks(chunkSize uintptr, yield func(VirtAddrRange) bool) {
	cur := VirtAddrRange{Base: r.Base, Length: chunkSize}
	remaining := r.Length
	for remaining > 0 {
		n := chunkSize
		if n > remaining {
			n = remaining
		}
		cur.Length = n
		if !yield(cur) {
			return
		}
		cur = cur.Step()
		remaining -= n
	}
}
