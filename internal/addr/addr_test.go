package addr

import "testing"

func TestAlignRoundTrip(t *testing.T) {
	cases := []uintptr{0, 1, 0x10, 0xFFF, 0x1000, 0x1001, 0x1000_0010}
	ks := []uintptr{0x10, 0x100, 0x1000}
	for _, a := range cases {
		for _, k := range ks {
			p := PhysAddr(a)
			down := p.AlignDown(k)
			up := p.AlignUp(k)
			if up.AlignDown(k) != up {
				t.Fatalf("align_up(%#x,%#x)=%#x not a multiple of k", a, k, up)
			}
			if uintptr(down) > uintptr(p) {
				t.Fatalf("align_down(%#x,%#x)=%#x > a", a, k, down)
			}
			if uintptr(up) < uintptr(p) {
				t.Fatalf("align_up(%#x,%#x)=%#x < a", a, k, up)
			}
			diff := uintptr(up) - uintptr(down)
			if diff != 0 && diff != k {
				t.Fatalf("align_up-align_down = %#x, want 0 or %#x", diff, k)
			}
		}
	}
}

func TestAlignUpConcrete(t *testing.T) {
	p := PhysAddr(0x1000_0010)
	if got := p.AlignUp(0x100); got != 0x1000_0100 {
		t.Fatalf("AlignUp = %#x, want 0x1000_0100", got)
	}
	if got := p.AlignDown(0x100); got != 0x1000_0000 {
		t.Fatalf("AlignDown = %#x, want 0x1000_0000", got)
	}
}

func TestRangeIntersectionCommutes(t *testing.T) {
	r := PhysAddrRange{Base: 0x345_0000, Length: 0x200_0000} // [0x345_0000, 0x545_0000)
	s := PhysAddrRange{Base: 0x445_0000, Length: 0x200_0000} // [0x445_0000, 0x645_0000)

	rs, ok1 := r.Intersection(s)
	sr, ok2 := s.Intersection(r)
	if !ok1 || !ok2 {
		t.Fatalf("expected overlap, got ok1=%v ok2=%v", ok1, ok2)
	}
	if rs != sr {
		t.Fatalf("intersection not commutative: %+v vs %+v", rs, sr)
	}
	want := PhysAddrRange{Base: 0x445_0000, Length: 0x100_0000}
	if rs != want {
		t.Fatalf("intersection = %+v, want %+v", rs, want)
	}
	if !r.Covers(rs) || !s.Covers(rs) {
		t.Fatalf("intersection not covered by both operands")
	}
}

func TestRangeIntersectionDisjoint(t *testing.T) {
	r := PhysAddrRange{Base: 0x345_0000, Length: 0x200_0000} // [0x345_0000, 0x545_0000)
	s := PhysAddrRange{Base: 0x745_0000, Length: 0xBB_0000}  // [0x745_0000, 0x800_0000)
	if _, ok := r.Intersection(s); ok {
		t.Fatalf("expected disjoint ranges to not intersect")
	}
	if _, ok := s.Intersection(r); ok {
		t.Fatalf("expected disjoint ranges to not intersect (reversed)")
	}
}

func TestFixedOffsetRoundTrip(t *testing.T) {
	fo := NewFixedOffset(PhysAddr(0x4000_0000), VirtAddr(0xFFFF_0000_4000_0000))
	for _, v := range []VirtAddr{
		0xFFFF_0000_4000_0000,
		0xFFFF_0000_4000_1000,
		0xFFFF_0000_7FFF_F000,
	} {
		p := fo.Translate(v)
		back := fo.TranslatePhys(p)
		if back != v {
			t.Fatalf("round trip failed: v=%#x -> p=%#x -> %#x", v, p, back)
		}
	}
}

func TestFixedOffsetRejectsInvertedInputs(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on phys > virt")
		}
	}()
	NewFixedOffset(PhysAddr(0xFFFF_0000_0000_0000), VirtAddr(0x1000))
}

func TestStepPreservesLength(t *testing.T) {
	r := VirtAddrRange{Base: 0x1000, Length: 0x1000}
	n := r.Step()
	if n.Length != r.Length {
		t.Fatalf("Step changed length: %d vs %d", n.Length, r.Length)
	}
	if n.Base != r.Top() {
		t.Fatalf("Step base = %#x, want %#x", n.Base, r.Top())
	}
}

func TestPageCountRoundsUp(t *testing.T) {
	r := VirtAddrRange{Base: 0, Length: PageSize + 1}
	if got := r.PageCount(); got != 2 {
		t.Fatalf("PageCount = %d, want 2", got)
	}
}

func TestChunksCoverWholeRange(t *testing.T) {
	r := VirtAddrRange{Base: 0x2000, Length: 3*PageSize + 10}
	var total uintptr
	var last VirtAddrRange
	r.Chunks(PageSize, func(c VirtAddrRange) bool {
		total += c.Length
		last = c
		return true
	})
	if total != r.Length {
		t.Fatalf("chunks covered %#x bytes, want %#x", total, r.Length)
	}
	if last.Top() != r.Top() {
		t.Fatalf("last chunk top = %#x, want %#x", last.Top(), r.Top())
	}
}

func TestIdentityTranslate(t *testing.T) {
	var id Identity
	v := VirtAddr(0x1234)
	if id.Translate(v) != PhysAddr(0x1234) {
		t.Fatalf("identity translate mismatch")
	}
	if id.TranslatePhys(PhysAddr(0x1234)) != v {
		t.Fatalf("identity reverse mismatch")
	}
}

func TestNullAlwaysZero(t *testing.T) {
	var n Null
	if p := n.Translate(VirtAddr(0xDEAD)); p != 0 {
		t.Fatalf("Null.Translate = %#x, want 0", p)
	}
	if _, ok := n.TranslateMaybe(VirtAddr(0xDEAD)); ok {
		t.Fatalf("Null.TranslateMaybe should report false")
	}
}
