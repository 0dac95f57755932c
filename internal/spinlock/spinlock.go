// Package spinlock implements the one locking primitive this kernel uses:
// a CAS-acquired spinlock taken with IRQs disabled on the current core,
// with no notion of blocking, priority, or fairness. It backs the frame
// table's single global lock, each PageDirectory's mutation lock, and the
// thread table's lock.
package spinlock

import (
	"kcore/internal/arch/asm"
	"kcore/internal/atomic"
)

// Lock is a single-CPU spinlock. The zero value is unlocked. There is no
// SMP cache-coherence protocol implemented beyond the architectural CAS
// instruction itself: this is sufficient for a single core with interrupts
// as the only source of concurrent entry.
type Lock struct {
	held  uint32
	saved uint64
}

// Acquire disables IRQs on the current core and spins until the lock is
// taken. Critical sections protected by a Lock must be short and must
// never block: a lock is never held across a potentially blocking
// operation.
func (l *Lock) Acquire() {
	saved := asm.DisableIrqs()
	for !atomic.Cas32(&l.held, 0, 1) {
	}
	l.saved = saved
}

// Release unlocks and restores the IRQ mask captured by Acquire. Release
// must be called from the same core that called Acquire, in strict LIFO
// order with any nested lock: drop order unwinds them.
func (l *Lock) Release() {
	saved := l.saved
	atomic.Store32(&l.held, 0)
	asm.RestoreIrqs(saved)
}
