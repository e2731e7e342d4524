package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/stack"
)

// MetaspaceOracle answers plausibility questions about metadata pointers
// found on the stack. The walker never dereferences such a pointer until
// the oracle vouches for it.
type MetaspaceOracle interface {
	// MethodAt resolves a stack word to live method metadata, or nil when
	// the word is not a plausible method pointer.
	MethodAt(addr uint64) *code.Method
	// ValidConstantPoolCache reports whether the word is a plausible
	// constant-pool cache pointer.
	ValidConstantPoolCache(addr uint64) bool
}

// HeapOracle reports whether an object reference points into the managed
// heap (or is nil). Used as a sanity check when extracting object results.
type HeapOracle interface {
	InHeapOrNil(ref ObjRef) bool
}

// HeapOracleFunc adapts a function to the HeapOracle interface.
type HeapOracleFunc func(ref ObjRef) bool

func (fn HeapOracleFunc) InHeapOrNil(ref ObjRef) bool { return fn(ref) }

// ContinuationSupport is the collaborator that lets a walk cross into and
// out of separately-stored virtual stacks. A return-barrier pc is a
// marker, never real sender code; the walk either redirects to the
// continuation's saved top frame or rewrites the sender to the
// continuation's true bottom sender.
type ContinuationSupport interface {
	// IsReturnBarrier reports whether pc is the continuation return
	// barrier marker.
	IsReturnBarrier(pc code.PC) bool
	// FixBottomSender rewrites a sender (pc, sp) pair that hit the return
	// barrier into the continuation's true bottom sender.
	FixBottomSender(th *Thread, f Frame, pc code.PC, sp stack.Addr) (code.PC, stack.Addr)
	// TopFrame returns the top frame of the continuation's saved stack,
	// when the walk is configured to traverse continuations.
	TopFrame(f Frame, m *RegisterMap) (Frame, bool)
}

// NopContinuations is the default ContinuationSupport for runtimes
// without continuations: no pc is ever a return barrier.
type NopContinuations struct{}

func (NopContinuations) IsReturnBarrier(code.PC) bool { return false }

func (NopContinuations) FixBottomSender(_ *Thread, _ Frame, pc code.PC, sp stack.Addr) (code.PC, stack.Addr) {
	return pc, sp
}

func (NopContinuations) TopFrame(Frame, *RegisterMap) (Frame, bool) {
	return Frame{}, false
}

// AnchorSource resolves the frame anchor embedded in an optimized entry
// blob's frame data, keyed by the frame's unextended sp.
type AnchorSource interface {
	AnchorFor(r *code.Region, unextendedSP stack.Addr) *Anchor
}

// AnchorSourceFunc adapts a function to the AnchorSource interface.
type AnchorSourceFunc func(r *code.Region, unextendedSP stack.Addr) *Anchor

func (fn AnchorSourceFunc) AnchorFor(r *code.Region, unextendedSP stack.Addr) *Anchor {
	return fn(r, unextendedSP)
}

// Env bundles the read-only process-wide collaborators a walk needs. The
// walker performs lookups only; passing these as capabilities keeps
// synthetic stacks unit-testable without a live runtime.
type Env struct {
	// Code maps pcs to code regions.
	Code code.Registry
	// Interpreter is the region holding interpreter codelets.
	Interpreter *code.Region
	// Metaspace vouches for metadata pointers found on the stack.
	Metaspace MetaspaceOracle
	// Continuations handles return-barrier pcs. Nil means no support.
	Continuations ContinuationSupport
	// Heap sanity-checks extracted object references. Nil disables the check.
	Heap HeapOracle
	// EntryAnchors resolves optimized entry blob anchors. Nil is valid
	// for runtimes without optimized entry blobs.
	EntryAnchors AnchorSource
}

func (e *Env) continuations() ContinuationSupport {
	if e.Continuations == nil {
		return NopContinuations{}
	}
	return e.Continuations
}

// InterpreterContains reports whether pc lies in interpreter code.
func (e *Env) InterpreterContains(pc code.PC) bool {
	return e.Interpreter != nil && e.Interpreter.Contains(pc)
}

// ReturnsToCallStub reports whether pc is a return address inside the
// call stub, meaning the frame below it is an entry frame.
func (e *Env) ReturnsToCallStub(pc code.PC) bool {
	r := e.Code.FindRegion(pc)
	return r != nil && r.IsEntry()
}
