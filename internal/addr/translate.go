package addr

// Translate maps a VirtAddr to a PhysAddr. Four realisations exist: Null,
// Identity, FixedOffset here, and a full PageDirectory walk implemented by
// package pager (kept out of this package to avoid an import cycle — pager
// imports addr, not the reverse). Callers that need to accept any of the
// four hold a Translate, never a concrete type, so a translator can be
// swapped without touching call sites.
type Translate interface {
	// Translate maps v to its physical address. Callers that cannot
	// tolerate an unmapped address should use TranslateMaybe instead.
	Translate(v VirtAddr) PhysAddr
	// TranslateMaybe maps v, reporting false if v has no mapping under
	// this translator (a PageDirectory walk may legitimately miss; Null
	// always reports false; Identity and FixedOffset never miss).
	TranslateMaybe(v VirtAddr) (PhysAddr, bool)
}

// ReverseTranslate is the optional reverse direction (phys -> virt).
// Most Translate values with a fixed, invertible relationship implement it;
// a PageDirectory walk generally does not, since many virtual addresses can
// map to the same frame.
type ReverseTranslate interface {
	TranslatePhys(p PhysAddr) VirtAddr
}

// Null always translates to the physical null address. It stands in for
// "no translator configured yet" without making every caller handle a nil
// interface.
type Null struct{}

func (Null) Translate(VirtAddr) PhysAddr                 { return 0 }
func (Null) TranslateMaybe(VirtAddr) (PhysAddr, bool)     { return 0, false }
func (Null) TranslatePhys(PhysAddr) VirtAddr              { return 0 }

// Identity treats the underlying integer as both the virtual and physical
// address — used for the low-half identity mapping installed before the
// MMU is enabled, and in tests.
type Identity struct{}

func (Identity) Translate(v VirtAddr) PhysAddr             { return PhysAddr(v) }
func (Identity) TranslateMaybe(v VirtAddr) (PhysAddr, bool) { return PhysAddr(v), true }
func (Identity) TranslatePhys(p PhysAddr) VirtAddr          { return VirtAddr(p) }

// FixedOffset translates through a constant signed delta such that
// phys = virt - delta. Used for "kernel high-half" (virt = phys + delta)
// and "kernel<->RAM" translations. The reference pair passed to New must
// have phys <= virt, since the kernel always lives in the high half.
type FixedOffset struct {
	delta uintptr // virt - phys, for the reference pair given to New
}

// NewFixedOffset builds a FixedOffset from a reference (phys, virt) pair.
// It fail-asserts (panics) if phys > virt, since that can only happen as
// the consequence of a boot-time programming mistake, not a runtime
// condition worth recovering from.
func NewFixedOffset(phys PhysAddr, virt VirtAddr) FixedOffset {
	if uintptr(phys) > uintptr(virt) {
		panic("addr: FixedOffset requires phys <= virt")
	}
	return FixedOffset{delta: uintptr(virt) - uintptr(phys)}
}

func (f FixedOffset) Translate(v VirtAddr) PhysAddr {
	return PhysAddr(uintptr(v) - f.delta)
}

func (f FixedOffset) TranslateMaybe(v VirtAddr) (PhysAddr, bool) {
	return f.Translate(v), true
}

// TranslatePhys is the inverse: virt = phys + delta.
func (f FixedOffset) TranslatePhys(p PhysAddr) VirtAddr {
	return VirtAddr(uintptr(p) + f.delta)
}
