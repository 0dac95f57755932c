package thread

import (
	"testing"
	"unsafe"

	"kcore/internal/addr"
	"kcore/internal/frame"
)

const testRamBase = addr.PhysAddr(0x4000_0000)

// testXlat backs physical addresses drawn from a frame.Table rooted at
// testRamBase with real host memory, the same harness pager_test.go uses.
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

func TestNewReservesSlotZeroBlocked(t *testing.T) {
	tbl := New()
	if got := tbl.State(0); got != Blocked {
		t.Fatalf("slot 0 state = %v, want Blocked", got)
	}
	if th := tbl.Thread(0); th != nil {
		t.Fatalf("slot 0 thread = %v, want nil (boot thread owns no frame-backed block)", th)
	}
}

func TestSpawnAllocatesAndInitialisesContext(t *testing.T) {
	tbl := New()
	frames := frame.New(testRamBase, 64)
	mx := newTestXlat(64)

	before := frames.Len(frame.Free)
	const entry = uintptr(0xFFFF_FF80_0010_0000)
	id, err := tbl.Spawn(entry, 5, frames, mx)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if id == 0 {
		t.Fatalf("Spawn returned reserved slot 0")
	}
	if frames.Len(frame.Free) != before-2 {
		t.Fatalf("Spawn drew %d frames, want 2 (tcb + stack)", before-frames.Len(frame.Free))
	}
	if got := tbl.State(id); got != Blocked {
		t.Fatalf("spawned slot state = %v, want Blocked", got)
	}

	th := tbl.Thread(id)
	if th == nil {
		t.Fatalf("Thread(%d) = nil after Spawn", id)
	}
	if th.ID != id {
		t.Fatalf("th.ID = %d, want %d", th.ID, id)
	}
	if th.Priority != 5 {
		t.Fatalf("th.Priority = %d, want 5", th.Priority)
	}
	if th.Ctx.ELR != uint64(entry) {
		t.Fatalf("th.Ctx.ELR = %#x, want %#x", th.Ctx.ELR, entry)
	}
	if th.Ctx.SP == 0 {
		t.Fatalf("th.Ctx.SP not initialised")
	}
}

func TestSpawnExhaustsSlotsThenErrors(t *testing.T) {
	tbl := New()
	frames := frame.New(testRamBase, 64)
	mx := newTestXlat(64)

	for i := 0; i < MaxThreads-1; i++ {
		if _, err := tbl.Spawn(0x1000, 0, frames, mx); err != nil {
			t.Fatalf("Spawn %d: %v", i, err)
		}
	}
	if _, err := tbl.Spawn(0x1000, 0, frames, mx); err == nil {
		t.Fatalf("expected an error once every non-reserved slot is spawned")
	}
}

func TestNextReadyScansAndBlocks(t *testing.T) {
	tbl := New()
	frames := frame.New(testRamBase, 64)
	mx := newTestXlat(64)

	id, err := tbl.Spawn(0x1000, 0, frames, mx)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, ok := tbl.NextReady(); ok {
		t.Fatalf("NextReady found a thread before any was marked Ready")
	}
	tbl.SetState(id, Ready)

	got, ok := tbl.NextReady()
	if !ok || got != id {
		t.Fatalf("NextReady = (%d, %v), want (%d, true)", got, ok, id)
	}
	if st := tbl.State(id); st != Blocked {
		t.Fatalf("state after NextReady = %v, want Blocked", st)
	}
}

func TestCurrentRoundTripsThroughThreadPointerRegister(t *testing.T) {
	tbl := New()
	frames := frame.New(testRamBase, 64)
	mx := newTestXlat(64)

	id, err := tbl.Spawn(0x1000, 0, frames, mx)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	th := tbl.Thread(id)

	SetCurrent(th)
	if got := Current(); got != th {
		t.Fatalf("Current() = %p, want %p", got, th)
	}
}
