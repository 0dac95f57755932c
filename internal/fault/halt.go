package fault

import "kcore/internal/arch/asm"

// haltLoop parks the core when no Halt override is supplied. Split out from
// fatal so tests can stub Handler.Halt instead of ever reaching this.
func haltLoop() {
	for {
		asm.WaitForEvent()
	}
}
