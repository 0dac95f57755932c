// Package kerr defines the kernel-wide error taxonomy: one Error struct
// carrying a Kind, the raising module and a message, built with New at the
// point of failure — no errors.New, no fmt.Errorf, following the shape of
// gopher-os/kernel.Error.
package kerr

// Kind enumerates the error categories.
type Kind uint8

const (
	// Success is not a failure: frame.ClearTo returns it as a sentinel
	// meaning "the source queue was already empty, nothing moved".
	Success Kind = iota
	OutOfMemory
	OutOfPages
	SegmentFault
	UnexpectedValue
	UnInitialised
	DeviceIncompatible
	Unimplemented
	Undefined
	UnknownError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case OutOfMemory:
		return "out of memory"
	case OutOfPages:
		return "out of pages"
	case SegmentFault:
		return "segment fault"
	case UnexpectedValue:
		return "unexpected value"
	case UnInitialised:
		return "uninitialised"
	case DeviceIncompatible:
		return "device incompatible"
	case Unimplemented:
		return "unimplemented"
	case Undefined:
		return "undefined"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type every fallible kernel operation returns.
// Module names the package that raised it (e.g. "frame", "pager") so a
// halted-at-fault dump can report provenance without string formatting.
type Error struct {
	Kind    Kind
	Module  string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Module + ": " + e.Kind.String()
	}
	return e.Module + ": " + e.Kind.String() + ": " + e.Message
}

// New builds an Error. Kept as a function (rather than requiring call sites
// to build the struct literal) so every call site reads the same way. Each
// call returns a pointer to a newly allocated Error.
func New(kind Kind, module, message string) *Error {
	return &Error{Kind: kind, Module: module, Message: message}
}

// Is reports whether err is a *Error of the given Kind. Convenience for
// callers that only care about the category, not the message.
func Is(err error, kind Kind) bool {
	ke, ok := err.(*Error)
	return ok && ke.Kind == kind
}
