// Package attrs implements the page-attribute bit-set and
// its pure lowering into the architectural AArch64 descriptor fields (AP,
// SH, AttrIndx, UXN/PXN, AF, Contiguous). Grounded on the teacher's
// PTE_AP_*/PTE_SH_*/PTE_ATTR_* constant blocks in mmu.go, generalised from
// "pick one PTE_AP_RW-style constant per call site" into a single pure
// Attributes -> Encoded function, the way gopher-os's
// vmm.PageTableEntryFlag turns a flag set into encoded bits.
package attrs

// Attributes is a bit-set over the page-attribute flags.
type Attributes uint32

const (
	UserRead Attributes = 1 << iota
	UserWrite
	UserExec
	KernelRead
	KernelWrite
	KernelExec
	Device
	StreamIn
	StreamOut
	Block
	OnDemand
	Accessed
)

// Has reports whether all bits in want are set in a.
func (a Attributes) Has(want Attributes) bool { return a&want == want }

// Named presets for the common attribute combinations.
var (
	RAM         = KernelRead | KernelWrite
	KernelExecA = KernelRead | KernelExec
	KernelData  = KernelRead | KernelWrite
	DeviceA     = KernelRead | KernelWrite | Device
	UserExecA   = UserRead | UserExec | KernelRead
	UserData    = UserRead | UserWrite | KernelRead | KernelWrite
)

// Encoded is the result of lowering Attributes to descriptor bit fields.
// Field names match the architectural descriptor's bit layout table.
type Encoded struct {
	AP         APKind
	SH         SHKind
	AttrIndx   uint8
	UXN        bool
	PXN        bool
	AF         bool
	Contiguous bool
	Block      bool
	UXNTable   bool
	PXNTable   bool
}

// APKind enumerates the architectural AP[7:6] encodings.
type APKind uint8

const (
	PrivOnly     APKind = 0b00
	ReadWrite    APKind = 0b01
	PrivReadOnly APKind = 0b10
	ReadOnly     APKind = 0b11
)

// SHKind enumerates the shareability domain. This kernel only ever uses
// OuterShareable; the others exist so the encoding is total over the
// architectural field.
type SHKind uint8

const (
	NonShareable   SHKind = 0b00
	OuterShareable SHKind = 0b10
	InnerShareable SHKind = 0b11
)

// Lower derives the architectural descriptor fields from an attribute
// combination. It panics on a combination the AP table marks invalid — a
// fail-assert, not a recoverable error, since it can only follow a
// programming mistake in a caller that built Attributes by hand.
func Lower(a Attributes, contiguousGroup bool) Encoded {
	ur := a.Has(UserRead)
	uw := a.Has(UserWrite)
	kr := a.Has(KernelRead)
	kw := a.Has(KernelWrite)

	var ap APKind
	switch {
	case ur && uw && kr && kw:
		ap = ReadWrite
	case !ur && !uw && kr && kw:
		ap = PrivOnly
	case ur && !uw && kr && !kw:
		ap = ReadOnly
	case !ur && !uw && kr && !kw:
		ap = PrivReadOnly
	case !ur && !uw && !kr && !kw:
		ap = PrivReadOnly // execute-only
	default:
		panic("attrs: invalid (UserR,UserW,KernR,KernW) combination")
	}

	contiguous := a.Has(Block) && contiguousGroup

	return Encoded{
		AP:         ap,
		SH:         OuterShareable,
		AttrIndx:   attrIndx(a),
		UXN:        !a.Has(UserExec),
		PXN:        !a.Has(KernelExec),
		AF:         !a.Has(OnDemand),
		Contiguous: contiguous,
		Block:      a.Has(Block),
		UXNTable:   !a.Has(UserExec),
		PXNTable:   !a.Has(KernelExec),
	}
}

func attrIndx(a Attributes) uint8 {
	if a.Has(Device) {
		return 0
	}
	return 1
}
