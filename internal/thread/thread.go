// Package thread implements the kernel's thread control block table: a
// fixed-size set of cooperative kernel threads, each carrying an opaque
// architectural register-save area, guarded by a single IRQ-disabling
// spinlock. Grounded on the teacher's ExceptionInfo-shaped register-save
// area in exceptions.go for the shape of ArchContext, and on the teacher's
// single-global-table style (no per-thread allocator of its own). This is
// not a port of the teacher's goroutine scheduler (goroutine.go,
// scheduler_bootstrap.go, stack_growth.go, traceback.go): cooperative
// scheduling above the control-block data model is out of scope here.
package thread

import (
	"unsafe"

	"kcore/internal/addr"
	"kcore/internal/arch/asm"
	"kcore/internal/frame"
	"kcore/internal/kerr"
	"kcore/internal/pager"
	"kcore/internal/spinlock"
)

// MaxThreads bounds the table: every scan below is O(MaxThreads), a fixed
// 4 iterations.
const MaxThreads = 4

// State is a thread's position in the {Unused, Ready, Running, Blocked,
// Terminated} lifecycle. Transitions are point mutations; no state is
// skipped.
type State uint8

const (
	Unused State = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Unused:
		return "Unused"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Terminated:
		return "Terminated"
	default:
		return "State(?)"
	}
}

// stackSize is one page: frame.Table has no contiguous-run allocator, so a
// thread's kernel stack is sized to what a single frame can back rather
// than assuming several consecutive allocations land on adjacent frames.
const stackSize = addr.PageSize

// ArchContext is the opaque register-save area a context switch restores
// into, shaped after exceptions.go's ExceptionInfo saved-register fields:
// the general-purpose window plus the three registers eret consumes.
type ArchContext struct {
	X    [31]uint64 // x0..x30
	SP   uint64
	ELR  uint64 // resume PC; spawn points this at the entry function
	SPSR uint64
}

// Thread is one control block: `{id, priority, arch_ctx}` plus the frame
// indices backing its own storage and kernel stack, allocated by spawn
// rather than carved out of a shared static array (open question §9: the
// source's spawn path references a stack region the caller doesn't own;
// here spawn owns both the stack and the control block outright).
type Thread struct {
	ID         uint32
	Priority   int32
	Ctx        ArchContext
	tcbFrame   uint32
	stackFrame uint32
}

// Table is the thread control block table: MaxThreads slots, each either
// empty (no backing Thread) or pointing at one spawned from the frame
// table. Slot 0 is reserved for the boot path.
type Table struct {
	lock    spinlock.Lock
	threads [MaxThreads]*Thread
	states  [MaxThreads]State
}

// New returns a Table with slot 0 already Blocked for the boot thread: the
// code already running when New is called owns that slot without ever
// going through spawn.
func New() *Table {
	var t Table
	t.states[0] = Blocked
	return &t
}

// Spawn scans for an Unused slot, allocates its kernel stack and control
// block from frames, marks it Blocked, and initialises the saved context so
// a later eret resumes into entry. Returns the slot's thread id.
func (t *Table) Spawn(entry uintptr, priority int32, frames *frame.Table, mx pager.MemXlat) (uint32, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	slot := -1
	for i := 1; i < MaxThreads; i++ {
		if t.states[i] == Unused {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, kerr.New(kerr.OutOfMemory, "thread", "no free thread slot")
	}

	tcbFrame, err := frames.AllocForPurpose(frame.Kernel)
	if err != nil {
		return 0, kerr.New(kerr.OutOfMemory, "thread", "control block allocation failed")
	}
	stackFrame, err := frames.AllocForPurpose(frame.Kernel)
	if err != nil {
		return 0, kerr.New(kerr.OutOfMemory, "thread", "stack allocation failed")
	}

	th := addr.As[Thread](mx.TranslatePhys(frames.FrameAddr(tcbFrame)))
	*th = Thread{
		ID:         uint32(slot),
		Priority:   priority,
		tcbFrame:   tcbFrame,
		stackFrame: stackFrame,
	}
	stackTop := uintptr(mx.TranslatePhys(frames.FrameAddr(stackFrame))) + stackSize
	th.Ctx.SP = uint64(stackTop)
	th.Ctx.ELR = uint64(entry)
	th.Ctx.SPSR = 0x005 // EL1h, interrupts unmasked

	t.threads[slot] = th
	t.states[slot] = Blocked
	return uint32(slot), nil
}

// Current returns the running thread, read from the architectural
// thread-pointer register (TPIDR_EL1) a context switch is responsible for
// loading before eret.
func Current() *Thread {
	return addr.As[Thread](addr.VirtAddr(asm.ReadTpidrEl1()))
}

// SetCurrent points TPIDR_EL1 at th, the register a context switch updates
// right before resuming it.
func SetCurrent(th *Thread) {
	asm.WriteTpidrEl1(uint64(uintptr(unsafe.Pointer(th))))
}

// NextReady scans for a Ready slot and marks it Blocked, returning its
// thread id. ok is false if no thread is Ready.
func (t *Table) NextReady() (id uint32, ok bool) {
	t.lock.Acquire()
	defer t.lock.Release()

	for i := 0; i < MaxThreads; i++ {
		if t.states[i] == Ready {
			t.states[i] = Blocked
			return uint32(i), true
		}
	}
	return 0, false
}

// SetState performs one point transition, the only way state ever changes.
func (t *Table) SetState(id uint32, s State) {
	t.lock.Acquire()
	defer t.lock.Release()
	t.states[id] = s
}

// State reports the current state of slot id.
func (t *Table) State(id uint32) State {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.states[id]
}

// Thread returns the control block backing slot id, or nil for a slot with
// no spawned thread: an Unused slot, or slot 0, which is Blocked for the
// boot thread but has no frame-table-backed block of its own.
func (t *Table) Thread(id uint32) *Thread {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.threads[id]
}
