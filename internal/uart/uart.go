// Package uart implements a polling driver for the PL011 UART QEMU's virt
// machine exposes at a fixed physical address, used as the kernel's only
// debug/log output. Grounded on the teacher's uart_qemu.go register layout
// (QEMU_UART_BASE/DR/FR/IBRD/FBRD/LCRH/CR/ICR), trimmed of its
// interrupt-driven ring buffer: the GIC that would deliver the TX interrupt
// is an external collaborator this kernel's scope does not include, so
// every write here polls the flag register instead of enqueuing.
package uart

import (
	"kcore/internal/addr"
	"kcore/internal/arch/asm"
)

// QEMUVirtBase is the PL011's physical base address on QEMU's virt machine.
const QEMUVirtBase = addr.PhysAddr(0x0900_0000)

const (
	regDR   = 0x00
	regFR   = 0x18
	regIBRD = 0x24
	regFBRD = 0x28
	regLCRH = 0x2C
	regCR   = 0x30
	regICR  = 0x44

	frTXFF = 1 << 5 // transmit FIFO full
	frRXFE = 1 << 4 // receive FIFO empty

	crUARTEN = 1 << 0
	crTXE    = 1 << 8
	crRXE    = 1 << 9

	lcrhFEN   = 1 << 4 // enable FIFOs
	lcrhWLEN8 = 3 << 5 // 8 data bits
)

// Driver is one PL011 instance. A Driver from New talks to the UART at its
// physical address directly; Remap switches every later access to a
// virtual alias instead.
type Driver struct {
	base addr.VirtAddr
}

// New returns a Driver addressing the UART at its physical base address,
// usable before the MMU is enabled (identity-mapped low half).
func New() *Driver {
	return &Driver{base: addr.VirtAddr(QEMUVirtBase)}
}

// Remap rewrites the driver's base address through tr — one pointer
// rewrite, mirroring frame.Table's own Repoint. kernelInit does not call
// it: the console keeps using the boot-time identity mapping of low device
// space.
func (d *Driver) Remap(tr addr.ReverseTranslate) {
	d.base = tr.TranslatePhys(QEMUVirtBase)
}

func (d *Driver) reg(offset uintptr) uintptr { return uintptr(d.base) + offset }

// Init programs the PL011 for 115200 8N1 at the virt machine's 24 MHz UART
// clock, with FIFOs enabled and interrupts left off.
func (d *Driver) Init() {
	asm.MmioWrite32(d.reg(regCR), 0)
	asm.MmioWrite32(d.reg(regIBRD), 13)
	asm.MmioWrite32(d.reg(regFBRD), 1)
	asm.MmioWrite32(d.reg(regLCRH), lcrhFEN|lcrhWLEN8)
	asm.MmioWrite32(d.reg(regICR), 0x7FF)
	asm.MmioWrite32(d.reg(regCR), crUARTEN|crTXE|crRXE)
}

// WriteByte blocks until the transmit FIFO has room, then writes c.
func (d *Driver) WriteByte(c byte) {
	for asm.MmioRead32(d.reg(regFR))&frTXFF != 0 {
	}
	asm.MmioWrite32(d.reg(regDR), uint32(c))
}

// WriteString writes s byte by byte, translating a bare "\n" into "\r\n"
// the way a serial terminal expects.
func (d *Driver) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			d.WriteByte('\r')
		}
		d.WriteByte(s[i])
	}
}

// ReadByte blocks until the receive FIFO has data, then returns it.
func (d *Driver) ReadByte() byte {
	for asm.MmioRead32(d.reg(regFR))&frRXFE != 0 {
	}
	return byte(asm.MmioRead32(d.reg(regDR)))
}

// WriteHex64 writes v as a fixed-width "0x"-prefixed hex string, the same
// shape the teacher's crash-path printing used, kept here since a halted
// kernel cannot rely on fmt.
func (d *Driver) WriteHex64(v uint64) {
	buf := formatHex64(v)
	for _, c := range buf {
		d.WriteByte(c)
	}
}

// formatHex64 is the pure formatting step WriteHex64 drives a byte at a
// time; split out so the format itself is testable without touching any
// register.
func formatHex64(v uint64) [18]byte {
	const digits = "0123456789abcdef"
	var buf [18]byte
	buf[0], buf[1] = '0', 'x'
	for i, shift := 2, 60; shift >= 0; i, shift = i+1, shift-4 {
		buf[i] = digits[(v>>uint(shift))&0xF]
	}
	return buf
}
