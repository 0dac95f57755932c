package uart

import (
	"testing"
	"unsafe"

	"kcore/internal/addr"
)

// fakeRegs backs a Driver with real host memory laid out like the PL011's
// register file, so WriteByte/ReadByte exercise the same MmioRead32/
// MmioWrite32 polling loop as on hardware.
type fakeRegs struct {
	regs [0x48 / 4]uint32
}

func newTestDriver() (*Driver, *fakeRegs) {
	fr := &fakeRegs{}
	d := &Driver{base: addr.VirtAddr(uintptr(unsafe.Pointer(&fr.regs[0])))}
	return d, fr
}

func (fr *fakeRegs) set(offset uintptr, v uint32) { fr.regs[offset/4] = v }
func (fr *fakeRegs) get(offset uintptr) uint32    { return fr.regs[offset/4] }

func TestWriteByteWaitsForFIFOSpace(t *testing.T) {
	d, fr := newTestDriver()
	fr.set(regFR, frTXFF) // FIFO reported full

	done := make(chan struct{})
	go func() {
		d.WriteByte('x')
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("WriteByte returned before TXFF cleared")
	default:
	}

	fr.set(regFR, 0)
	<-done

	if got := fr.get(regDR); got != 'x' {
		t.Fatalf("DR = %q, want 'x'", got)
	}
}

func TestReadByteWaitsForData(t *testing.T) {
	d, fr := newTestDriver()
	fr.set(regFR, frRXFE)
	fr.set(regDR, 'y')

	done := make(chan byte, 1)
	go func() { done <- d.ReadByte() }()

	select {
	case <-done:
		t.Fatalf("ReadByte returned before RXFE cleared")
	default:
	}

	fr.set(regFR, 0)
	if got := <-done; got != 'y' {
		t.Fatalf("ReadByte = %q, want 'y'", got)
	}
}

func TestInitProgramsBaudAndFIFOs(t *testing.T) {
	d, fr := newTestDriver()
	d.Init()
	if got := fr.get(regIBRD); got != 13 {
		t.Fatalf("IBRD = %d, want 13", got)
	}
	if got := fr.get(regFBRD); got != 1 {
		t.Fatalf("FBRD = %d, want 1", got)
	}
	if got := fr.get(regLCRH); got&lcrhFEN == 0 {
		t.Fatalf("LCRH = %#x, want FIFOs enabled", got)
	}
	if got := fr.get(regCR); got&crUARTEN == 0 {
		t.Fatalf("CR = %#x, want UARTEN set", got)
	}
}

func TestFormatHex64(t *testing.T) {
	got := formatHex64(0x1234)
	want := "0x0000000000001234"
	if string(got[:]) != want {
		t.Fatalf("formatHex64(0x1234) = %q, want %q", got, want)
	}
	got = formatHex64(0)
	if string(got[:]) != "0x0000000000000000" {
		t.Fatalf("formatHex64(0) = %q", got)
	}
}

func TestRemapRewritesBase(t *testing.T) {
	d := New()
	tr := addr.NewFixedOffset(QEMUVirtBase, addr.VirtAddr(0xFFFF_FF80_A000_0000))
	d.Remap(tr)
	if d.base != 0xFFFF_FF80_A000_0000 {
		t.Fatalf("Remap: base = %#x, want the remapped virtual address", d.base)
	}
}
