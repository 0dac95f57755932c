// Package fault implements the synchronous-exception handler AArch64 hands
// control to on a data abort or any other EL1 trap. Grounded on the
// teacher's handleException dispatch in exceptions.go (EC field extraction,
// fast path for data aborts, generic per-class diagnostic switch for
// everything else), trimmed of the RPi exception-storm/nested-exception
// debugging scaffolding that file carries: this kernel never recurses into
// its own handler, so there is nothing to guard against.
package fault

import (
	"kcore/internal/addr"
	"kcore/internal/attrs"
	"kcore/internal/frame"
	"kcore/internal/pager"
	"kcore/internal/uart"
)

// Exception class values extracted from ESR_EL1 bits [31:26]. Only the
// classes this handler treats specially or reports by name are kept; every
// other value falls into the generic "unhandled" message the way the
// teacher's default case does.
const (
	ecDataAbortEL0 = 0b100100
	ecDataAbortELx = 0b100101
)

// dfsc extracts the Data/Instruction Fault Status Code from the low 6 bits
// of ESR_EL1's ISS field.
func dfsc(esr uint64) uint64 { return esr & 0x3F }

// isTranslationFault reports whether code is one of the four
// level-0..level-3 translation-fault DFSC values (0b0001LL).
func isTranslationFault(code uint64) bool { return code&0b111100 == 0b000100 }

func isKernelAddr(far uint64) bool { return int64(far) < 0 }

// Context is the subset of exception state Handle needs: the architectural
// registers a vector-table stub reads before calling in. The general-purpose
// register window around that call ("a callee-preserved window covering
// x0..x30") is the vector table's own responsibility, not this package's —
// it is assembly this kernel does not yet carry, and Handle has no need to
// see it either way.
type Context struct {
	ESR  uint64
	FAR  uint64
	ELR  uint64
	SPSR uint64
}

// Handler ties the page directory a fault resolves against to the frame
// allocator and translator MapTranslation/DemandPage need, plus the console
// a fatal fault prints to before halting.
type Handler struct {
	Dir    *pager.PageDirectory
	Frames *frame.Table
	Mx     pager.MemXlat
	Log    *uart.Driver

	// Halt is called to stop the core after printing a fatal fault. Defaults
	// to an asm.WaitForEvent loop; overridden in tests so a deliberately
	// fatal case doesn't hang the test binary.
	Halt func()
}

// Handle dispatches one synchronous exception. A translation fault at a
// kernel address is resolved by demand-paging the faulting page in; every
// other data abort, and every non-data-abort exception class, is fatal: the
// handler prints the saved state and halts.
func (h *Handler) Handle(c Context) {
	ec := (c.ESR >> 26) & 0x3F
	if ec != ecDataAbortELx && ec != ecDataAbortEL0 {
		h.fatal(c, "unhandled exception class")
		return
	}
	code := dfsc(c.ESR)
	if !isTranslationFault(code) {
		h.fatal(c, "data abort: fault status is not a translation fault")
		return
	}
	if !isKernelAddr(c.FAR) {
		h.fatal(c, "data abort: translation fault at a non-kernel address")
		return
	}
	if err := h.Dir.DemandPage(addr.VirtAddr(c.FAR), attrs.KernelData|attrs.Accessed, h.Frames, h.Mx); err != nil {
		h.fatal(c, "demand_page: "+err.Error())
		return
	}
}

// fatal prints the saved register state the way the teacher's handleException
// default case does (EC/ELR/ESR/FAR), then halts the core.
func (h *Handler) fatal(c Context, reason string) {
	if h.Log != nil {
		h.Log.WriteString("fault: " + reason + "\n")
		h.Log.WriteString("  ESR=")
		h.Log.WriteHex64(c.ESR)
		h.Log.WriteString(" FAR=")
		h.Log.WriteHex64(c.FAR)
		h.Log.WriteString(" ELR=")
		h.Log.WriteHex64(c.ELR)
		h.Log.WriteString(" SPSR=")
		h.Log.WriteHex64(c.SPSR)
		h.Log.WriteString("\n")
	}
	if h.Halt != nil {
		h.Halt()
		return
	}
	haltLoop()
}
