// Package errz defines the structured fault type used to report fatal
// invariant violations in the stack walker. A Fault indicates runtime
// corruption or a programming defect, never a recoverable condition, so
// the helpers in this package panic rather than return.
package errz

import (
	"fmt"
	"strings"
)

// FaultKind represents the category of an invariant violation.
type FaultKind int

const (
	// FaultBounds indicates an out-of-range or misaligned stack access.
	FaultBounds FaultKind = iota
	// FaultPatch indicates inconsistent return-address patch bookkeeping.
	FaultPatch
	// FaultAnchor indicates misuse of a frame anchor, e.g. a double capture.
	FaultAnchor
	// FaultResultKind indicates an unrecognized method result kind.
	FaultResultKind
	// FaultFrame indicates a malformed frame where a well-formed one was required.
	FaultFrame
	// FaultWalk indicates inconsistent walk state.
	FaultWalk
)

// String returns the string representation of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultBounds:
		return "bounds fault"
	case FaultPatch:
		return "patch fault"
	case FaultAnchor:
		return "anchor fault"
	case FaultResultKind:
		return "result kind fault"
	case FaultFrame:
		return "frame fault"
	case FaultWalk:
		return "walk fault"
	default:
		return "fault"
	}
}

// Fault is a rich error type carrying the frame context in which an
// invariant violation was observed. The zero addresses mean "not recorded".
type Fault struct {
	Message string
	Kind    FaultKind
	SP      uint64
	FP      uint64
	PC      uint64
	Cause   error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", f.Kind.String(), f.Message)
	if f.SP != 0 || f.FP != 0 || f.PC != 0 {
		fmt.Fprintf(&b, " (sp=%#x fp=%#x pc=%#x)", f.SP, f.FP, f.PC)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the fault.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// WithFrame records the (sp, fp, pc) triple the fault was observed at.
func (f *Fault) WithFrame(sp, fp, pc uint64) *Fault {
	f.SP = sp
	f.FP = fp
	f.PC = pc
	return f
}

// WithCause wraps the fault with a cause.
func (f *Fault) WithCause(cause error) *Fault {
	f.Cause = cause
	return f
}

// New creates a new Fault.
func New(kind FaultKind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Newf creates a new Fault with a formatted message.
func Newf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Fatalf panics with a new Fault. Used where the original runtime would
// terminate the process on an invariant violation.
func Fatalf(kind FaultKind, format string, args ...any) {
	panic(Newf(kind, format, args...))
}
