// Package frame implements the physical frame table: a
// fixed-size multi-queue allocator, one entry per RAM page, where every
// frame belongs to exactly one circular doubly-linked list named by its
// Purpose. Grounded on the teacher's linked free list in page.go
// (freePages *Page, next/prev fields, allocPage/freePage), generalised from
// "one list" into "one list per Purpose" the way gopher-os splits its pmm
// frame allocator from its higher-level vmm allocation policy.
package frame

import (
	"kcore/internal/addr"
	"kcore/internal/kerr"
	"kcore/internal/spinlock"
)

// Purpose names the queue a frame currently belongs to.
type Purpose uint8

const (
	Free Purpose = iota
	Zeroed
	UserHot
	UserWarm
	UserCold
	Kernel
	LeafPT
	BranchPT
	DMA
	Nailed
	numPurposes
)

func (p Purpose) String() string {
	switch p {
	case Free:
		return "Free"
	case Zeroed:
		return "Zeroed"
	case UserHot:
		return "UserHot"
	case UserWarm:
		return "UserWarm"
	case UserCold:
		return "UserCold"
	case Kernel:
		return "Kernel"
	case LeafPT:
		return "LeafPT"
	case BranchPT:
		return "BranchPT"
	case DMA:
		return "DMA"
	case Nailed:
		return "Nailed"
	default:
		return "Purpose(?)"
	}
}

// requiresZero reports whether a frame destined for p must be zero-filled
// before use. User-facing purposes always are, to avoid leaking whatever a
// previous owner left behind; kernel-internal purposes are not.
func (p Purpose) requiresZero() bool {
	switch p {
	case UserHot, UserWarm, UserCold:
		return true
	default:
		return false
	}
}

// node is one circular-doubly-linked-list link. Index i (i < numFrames)
// describes RAM frame i; index numFrames+int(q) is the sentinel of queue q.
type node struct {
	prev, next uint32
}

// Table is the frame table: a fixed-size array of nodes, one per RAM page
// plus one sentinel per Purpose. Ownership is process-wide and global,
// protected by a single spinlock.
type Table struct {
	lock sync

	nodes     []node
	purposeOf []Purpose
	lengths   [numPurposes]int

	numFrames int
	ramBase   addr.PhysAddr

	base addr.VirtAddr // current address the table itself is reachable at; see Repoint

	userWarmCount uint64
}

// sync is a local alias for spinlock.Lock; the lock field needs no setup in
// New, since spinlock.Lock's zero value is already a released lock.
type sync = spinlock.Lock

func (t *Table) sentinel(q Purpose) uint32 { return uint32(t.numFrames) + uint32(q) }

// New allocates a Table sized for numFrames RAM pages, all initially Free.
// ramBase is the physical address frame 0 corresponds to: an entry's array
// index equals its physical frame number, its page offset from ramBase.
func New(ramBase addr.PhysAddr, numFrames int) *Table {
	t := &Table{
		nodes:     make([]node, numFrames+int(numPurposes)),
		purposeOf: make([]Purpose, numFrames),
		numFrames: numFrames,
		ramBase:   ramBase,
	}
	for q := Purpose(0); q < numPurposes; q++ {
		s := t.sentinel(q)
		t.nodes[s] = node{prev: s, next: s}
	}
	// Chain every frame into Free, in ascending frame-number order, head
	// to tail, so frame 0 is Free's head.
	s := t.sentinel(Free)
	prev := s
	for i := 0; i < numFrames; i++ {
		t.nodes[i] = node{prev: prev, next: 0}
		t.nodes[prev].next = uint32(i)
		prev = uint32(i)
	}
	t.nodes[prev].next = s
	t.nodes[s].prev = prev
	t.lengths[Free] = numFrames
	return t
}

// NumFrames returns the number of RAM pages this table tracks.
func (t *Table) NumFrames() int { return t.numFrames }

// Len returns the current length of queue q.
func (t *Table) Len(q Purpose) int {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.lengths[q]
}

// PurposeOf returns the queue frame i currently belongs to.
func (t *Table) PurposeOf(i uint32) Purpose {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.purposeOf[i]
}

// FrameAddr returns the physical address of frame i.
func (t *Table) FrameAddr(i uint32) addr.PhysAddr {
	return addr.RamPage(t.ramBase, uint64(i))
}

// FrameIndexOf returns the frame number p falls on, the inverse of
// FrameAddr.
func (t *Table) FrameIndexOf(p addr.PhysAddr) uint32 {
	return uint32(p.Frame(t.ramBase))
}

// unlink detaches node i from whatever list it is currently in. Caller
// holds the lock.
func (t *Table) unlink(i uint32) {
	p, n := t.nodes[i].prev, t.nodes[i].next
	t.nodes[p].next = n
	t.nodes[n].prev = p
}

// pushHead inserts the already-detached node i at the head of queue q.
// Caller holds the lock.
func (t *Table) pushHead(i uint32, q Purpose) {
	s := t.sentinel(q)
	old := t.nodes[s].next
	t.nodes[s].next = i
	t.nodes[i].prev = s
	t.nodes[i].next = old
	t.nodes[old].prev = i
}

// pushChainHead inserts the already-detached chain [head..tail] (internal
// links already correct, in forward order) at the head of queue q. Caller
// holds the lock.
func (t *Table) pushChainHead(head, tail uint32, q Purpose) {
	s := t.sentinel(q)
	old := t.nodes[s].next
	t.nodes[s].next = head
	t.nodes[head].prev = s
	t.nodes[tail].next = old
	t.nodes[old].prev = tail
}

func (t *Table) adjustCounters(from, to Purpose) {
	if from == UserWarm {
		t.userWarmCount--
	}
	if to == UserWarm {
		t.userWarmCount++
	}
}

// RemoveTo detaches frame i from its current queue and pushes it at the
// head of q. O(1).
func (t *Table) RemoveTo(i uint32, q Purpose) {
	t.lock.Acquire()
	defer t.lock.Release()
	from := t.purposeOf[i]
	t.unlink(i)
	t.lengths[from]--
	t.pushHead(i, q)
	t.lengths[q]++
	t.purposeOf[i] = q
	t.adjustCounters(from, q)
}

// RemoveSeqTo splices the forward run [i..j] — which must be contiguous in
// its current queue, i.e. following next pointers from i reaches j without
// leaving the queue — out of that queue and onto the head of q. O(1) in the
// number of queues touched, O(run length) in the walk needed to relabel
// each frame's Purpose.
func (t *Table) RemoveSeqTo(i, j uint32, q Purpose) {
	t.lock.Acquire()
	defer t.lock.Release()
	from := t.purposeOf[i]

	count := 1
	for cur := i; cur != j; cur = t.nodes[cur].next {
		t.purposeOf[cur] = q
		count++
	}
	t.purposeOf[j] = q

	before, after := t.nodes[i].prev, t.nodes[j].next
	t.nodes[before].next = after
	t.nodes[after].prev = before

	t.pushChainHead(i, j, q)
	t.lengths[from] -= count
	t.lengths[q] += count
	for k := 0; k < count; k++ {
		t.adjustCounters(from, q)
	}
}

// DripTo pops the tail of qFrom and pushes it at the head of qTo, returning
// the frame moved. Fails with kerr.OutOfPages if qFrom is empty.
func (t *Table) DripTo(qFrom, qTo Purpose) (uint32, error) {
	t.lock.Acquire()
	defer t.lock.Release()
	if t.lengths[qFrom] == 0 {
		return 0, kerr.New(kerr.OutOfPages, "frame", "drip_to: "+qFrom.String()+" empty")
	}
	tail := t.nodes[t.sentinel(qFrom)].prev
	t.unlink(tail)
	t.lengths[qFrom]--
	t.pushHead(tail, qTo)
	t.lengths[qTo]++
	t.purposeOf[tail] = qTo
	t.adjustCounters(qFrom, qTo)
	return tail, nil
}

// DripNTo moves n frames, tail-first, from qFrom to qTo. Fails with
// kerr.OutOfPages — leaving both queues unchanged — if fewer than n frames
// are available.
func (t *Table) DripNTo(qFrom Purpose, n int, qTo Purpose) ([]uint32, error) {
	t.lock.Acquire()
	defer t.lock.Release()
	if t.lengths[qFrom] < n {
		return nil, kerr.New(kerr.OutOfPages, "frame", "drip_n_to: insufficient frames")
	}
	moved := make([]uint32, 0, n)
	for k := 0; k < n; k++ {
		tail := t.nodes[t.sentinel(qFrom)].prev
		t.unlink(tail)
		t.lengths[qFrom]--
		t.pushHead(tail, qTo)
		t.lengths[qTo]++
		t.purposeOf[tail] = qTo
		t.adjustCounters(qFrom, qTo)
		moved = append(moved, tail)
	}
	return moved, nil
}

// ClearTo detaches the entire qFrom sub-list and pushes it, as one chain,
// onto the head of qTo. If qFrom is already empty, it returns a non-nil
// error whose Kind is kerr.Success — the queue truly is "cleared" (there
// was nothing to move), but callers that branch on err != nil need a signal
// that no splice happened, so drained-queue detection stays a single error
// check at every call site.
func (t *Table) ClearTo(qFrom, qTo Purpose) error {
	t.lock.Acquire()
	defer t.lock.Release()
	if t.lengths[qFrom] == 0 {
		return kerr.New(kerr.Success, "frame", "clear_to: "+qFrom.String()+" already empty")
	}
	s := t.sentinel(qFrom)
	head, tail := t.nodes[s].next, t.nodes[s].prev
	count := t.lengths[qFrom]

	for cur := head; ; cur = t.nodes[cur].next {
		t.purposeOf[cur] = qTo
		if cur == tail {
			break
		}
	}

	t.nodes[s] = node{prev: s, next: s}
	t.lengths[qFrom] = 0

	t.pushChainHead(head, tail, qTo)
	t.lengths[qTo] += count
	for k := 0; k < count; k++ {
		t.adjustCounters(qFrom, qTo)
	}
	return nil
}

// ZeroPage is called to zero-fill a frame pulled from Free to satisfy a
// purpose that requires zeroed memory, when Zeroed itself was empty. Wired
// to asm.Bzero at boot; left nil in tests, where allocation correctness
// does not depend on page content.
var ZeroPage func(p addr.PhysAddr)

// AllocForPurpose implements the allocator policy: pull from Zeroed if p
// needs zero-filled memory, else from Free; if the preferred
// source is empty, fall back to the other one (zeroing in software if the
// fallback wasn't already zero); if both are empty, eviction would be the
// next fallback, which this kernel does not implement — it surfaces
// kerr.Unimplemented instead of silently failing.
func (t *Table) AllocForPurpose(p Purpose) (uint32, error) {
	primary, secondary := Free, Zeroed
	if p.requiresZero() {
		primary, secondary = Zeroed, Free
	}

	if i, err := t.DripTo(primary, p); err == nil {
		return i, nil
	}

	i, err := t.DripTo(secondary, p)
	if err != nil {
		return 0, kerr.New(kerr.Unimplemented, "frame", "alloc_for_purpose: eviction not implemented")
	}
	if p.requiresZero() && secondary == Free {
		if ZeroPage != nil {
			ZeroPage(t.FrameAddr(i))
		}
	}
	return i, nil
}

// UserCount returns the number of frames currently destined for any
// User-facing purpose.
func (t *Table) UserCount() int {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.lengths[UserHot] + t.lengths[UserWarm] + t.lengths[UserCold]
}

// UserWarmCount returns the number of frames currently in UserWarm.
func (t *Table) UserWarmCount() uint64 {
	t.lock.Acquire()
	defer t.lock.Release()
	return t.userWarmCount
}

// ReserveRange moves every frame in the physical range r into Kernel via
// RemoveSeqTo, protecting it from allocation: pages the kernel needs to
// itself protect are moved to the Kernel queue at init time. r must be
// frame-aligned and entirely within this table's RAM.
func (t *Table) ReserveRange(r addr.PhysAddrRange) {
	first := r.Base.Frame(t.ramBase)
	last := first + r.PageCount() - 1
	t.RemoveSeqTo(uint32(first), uint32(last), Kernel)
}

// Repoint records the virtual address this table is reachable at after the
// translator tr is installed: one pointer rewrite, the underlying storage
// unchanged. Only debug/trace
// code that must hold an explicit VirtAddr to the table uses Base(); every
// other access goes through the Table value itself, which Go's addressing
// keeps valid across the switch without a rewrite.
func (t *Table) Repoint(tr addr.ReverseTranslate, phys addr.PhysAddr) {
	t.base = tr.TranslatePhys(phys)
}

// Base returns the virtual address last recorded by Repoint, or the zero
// address before paging is enabled.
func (t *Table) Base() addr.VirtAddr { return t.base }
