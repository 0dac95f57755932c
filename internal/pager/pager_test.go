package pager

import (
	"testing"
	"unsafe"

	"kcore/internal/addr"
	"kcore/internal/attrs"
	"kcore/internal/frame"
)

const testRamBase = addr.PhysAddr(0x4000_0000)

func freshFrames(n int) *frame.Table { return frame.New(testRamBase, n) }

// testXlat backs physical addresses drawn from a frame.Table rooted at
// testRamBase with real host memory, so tableAt's unsafe dereference lands
// on an actual Go allocation rather than an arbitrary integer. Translate
// itself is identity, matching the low-half boot mapping these tests stand
// in for.
type testXlat struct{ ram []byte }

func newTestXlat(numFrames int) *testXlat {
	return &testXlat{ram: make([]byte, numFrames*addr.PageSize)}
}

func (x *testXlat) Translate(v addr.VirtAddr) addr.PhysAddr { return addr.PhysAddr(v) }
func (x *testXlat) TranslateMaybe(v addr.VirtAddr) (addr.PhysAddr, bool) {
	return addr.PhysAddr(v), true
}
func (x *testXlat) TranslatePhys(p addr.PhysAddr) addr.VirtAddr {
	off := uintptr(p) - uintptr(testRamBase)
	return addr.VirtAddr(uintptr(unsafe.Pointer(&x.ram[off])))
}

// Identity mapping, one page.
func TestMapTranslationIdentityOnePage(t *testing.T) {
	frames := freshFrames(64)
	mx := newTestXlat(64)
	var d PageDirectory

	before := frames.Len(frame.Free)
	target := addr.VirtAddrRange{Base: 0, Length: addr.PageSize}
	got, err := d.MapTranslation(target, addr.Identity{}, attrs.DeviceA, frames, mx)
	if err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}
	if got != target {
		t.Fatalf("MapTranslation returned %+v, want %+v", got, target)
	}
	drawn := before - frames.Len(frame.Free)
	if drawn != 3 {
		t.Fatalf("drew %d frames, want 3 (root, level2 table, level3 table)", drawn)
	}

	w := Walker{Dir: &d, Mx: mx}
	p, ok := w.TranslateMaybe(0)
	if !ok || p != 0 {
		t.Fatalf("TranslateMaybe(0) = (%#x, %v), want (0, true)", p, ok)
	}
}

// "Page-directory idempotence of translation lookup": repeated lookups of
// the same mapping return the same answer without side effects.
func TestMapTranslationIdempotentLookup(t *testing.T) {
	frames := freshFrames(4096)
	mx := newTestXlat(4096)
	var d PageDirectory

	target := addr.VirtAddrRange{Base: 0x10_0000, Length: 8 * addr.PageSize}
	if _, err := d.MapTranslation(target, addr.Identity{}, attrs.KernelData, frames, mx); err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}
	w := Walker{Dir: &d, Mx: mx}
	for v := target.Base; v.Less(target.Top()); v = v.Add(addr.PageSize) {
		want, _ := w.TranslateMaybe(v)
		for i := 0; i < 3; i++ {
			got, ok := w.TranslateMaybe(v)
			if !ok || got != want {
				t.Fatalf("TranslateMaybe(%#x) repeat %d = (%#x,%v), want (%#x,true)", v, i, got, ok, want)
			}
		}
	}
}

// On-demand mapping over a span of whole root-level (1 GiB) entries draws
// only the root sub-table itself, leaving every lower level neutral until
// faulted.
func TestMapTranslationOnDemandDrawsOnlyRootFrame(t *testing.T) {
	frames := freshFrames(8)
	mx := newTestXlat(8)
	var d PageDirectory

	before := frames.Len(frame.Free)
	const gib = 1 << 30
	target := addr.VirtAddrRange{Base: 0, Length: 4 * gib}
	if _, err := d.MapTranslation(target, addr.Identity{}, attrs.KernelData|attrs.OnDemand, frames, mx); err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}
	drawn := before - frames.Len(frame.Free)
	if drawn != 1 {
		t.Fatalf("drew %d frames, want 1 (root sub-table only)", drawn)
	}
}

// A demand fault materialises whatever page-table chain is missing down to
// the leaf and installs the page; a second fault at the same address is
// rejected because the entry is already valid, and a sibling address is
// unaffected.
func TestDemandPageMaterialisesThenRejectsSecondFault(t *testing.T) {
	frames := freshFrames(4096)
	mx := newTestXlat(4096)
	var d PageDirectory

	const gib = 1 << 30
	target := addr.VirtAddrRange{Base: 0, Length: gib}
	if _, err := d.MapTranslation(target, addr.Identity{}, attrs.KernelData|attrs.OnDemand, frames, mx); err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}

	fault := target.Base.Add(5 * addr.PageSize)
	if err := d.DemandPage(fault, attrs.KernelData|attrs.Accessed, frames, mx); err != nil {
		t.Fatalf("DemandPage: %v", err)
	}

	w := Walker{Dir: &d, Mx: mx}
	if _, ok := w.TranslateMaybe(fault); !ok {
		t.Fatalf("expected fault address to resolve after DemandPage")
	}

	if err := d.DemandPage(fault, attrs.KernelData|attrs.Accessed, frames, mx); err == nil {
		t.Fatalf("expected a second fault at the same address to be rejected")
	}

	other := target.Base.Add(200 * addr.PageSize)
	if _, ok := w.TranslateMaybe(other); ok {
		t.Fatalf("a sibling page must still be unmapped after a single DemandPage")
	}
	if err := d.DemandPage(other, attrs.KernelData|attrs.Accessed, frames, mx); err != nil {
		t.Fatalf("DemandPage on sibling: %v", err)
	}
}

func TestUnmapFreesLeafAndEmptySubTables(t *testing.T) {
	frames := freshFrames(64)
	mx := newTestXlat(64)
	var d PageDirectory

	before := frames.Len(frame.Free)
	target := addr.VirtAddrRange{Base: 0, Length: addr.PageSize}
	if _, err := d.MapTranslation(target, addr.Identity{}, attrs.DeviceA, frames, mx); err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}
	if err := d.Unmap(target, frames, mx); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if frames.Len(frame.Free) != before {
		t.Fatalf("Unmap did not return every drawn frame: free=%d, want %d", frames.Len(frame.Free), before)
	}

	w := Walker{Dir: &d, Mx: mx}
	if _, ok := w.TranslateMaybe(0); ok {
		t.Fatalf("expected no mapping after Unmap")
	}
}

func TestMapTranslationFailAssertsOnReMap(t *testing.T) {
	frames := freshFrames(64)
	mx := newTestXlat(64)
	var d PageDirectory

	target := addr.VirtAddrRange{Base: 0, Length: addr.PageSize}
	if _, err := d.MapTranslation(target, addr.Identity{}, attrs.DeviceA, frames, mx); err != nil {
		t.Fatalf("MapTranslation: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on re-mapping an already-valid leaf")
		}
	}()
	d.MapTranslation(target, addr.Identity{}, attrs.DeviceA, frames, mx)
}

// Descriptor encoding for a device-attributed table entry.
func TestEncodeTableDeviceAttrs(t *testing.T) {
	enc := attrs.Lower(attrs.DeviceA, false)
	got := encodeTable(addr.PhysAddr(0x0123_0000), enc)
	const want = 0x1800_0000_0123_0003
	if got != want {
		t.Fatalf("encodeTable = %#x, want %#x", got, uint64(want))
	}
}
