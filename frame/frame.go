// Package frame reconstructs logical activation records from raw stack
// memory. A Frame is an immutable snapshot of one activation: its stack
// pointer, frame pointer, logical pc and owning code region. The package
// provides the safety validator that decides whether a raw (sp, fp, pc)
// triple can be trusted, the per-kind sender resolution that steps a walk
// toward the stack base, deoptimization patching, and typed result
// extraction from completed interpreted frames.
package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// DeoptState records whether a frame's return address has been redirected
// into deoptimization handling.
type DeoptState uint8

const (
	NotDeoptimized DeoptState = 0
	Deoptimized    DeoptState = 1
)

// String returns a display name for the deopt state.
func (s DeoptState) String() string {
	if s == Deoptimized {
		return "deoptimized"
	}
	return "not-deoptimized"
}

// Frame is one activation record. Immutable once constructed except for
// PatchPC, which is the single sanctioned mutation. Frames are created
// per walk step and never shared across threads.
//
// pc is the logical pc: for a deoptimized frame it names the original
// compiled code while rawPC holds the deopt handler address sitting in
// the physical return slot.
type Frame struct {
	sp           stack.Addr
	unextendedSP stack.Addr
	fp           stack.Addr
	pc           code.PC
	rawPC        code.PC
	region       *code.Region
	deoptState   DeoptState
}

// New constructs a frame from a raw quadruple, resolving the owning code
// region and detecting an already-deoptimized activation: when pc is a
// compiled region's deopt handler, the logical pc is recovered from the
// frame's original-pc slot.
func New(th *Thread, env *Env, sp, unextendedSP, fp stack.Addr, pc code.PC) Frame {
	f := Frame{
		sp:           sp,
		unextendedSP: unextendedSP,
		fp:           fp,
		pc:           pc,
		rawPC:        pc,
		region:       env.Code.FindRegion(pc),
	}
	if f.region != nil && f.region.IsCompiled() && f.region.IsDeoptPC(pc) {
		orig := deoptOriginalPC(th, f.region, unextendedSP)
		verifyDeoptOriginalPC(f.region, orig)
		f.pc = orig
		f.deoptState = Deoptimized
	}
	return f
}

// NewRaw constructs a frame without registry lookup or deopt detection.
// Used for provisional senders built from data that has not been
// validated yet.
func NewRaw(sp, unextendedSP, fp stack.Addr, pc code.PC, region *code.Region) Frame {
	return Frame{
		sp:           sp,
		unextendedSP: unextendedSP,
		fp:           fp,
		pc:           pc,
		rawPC:        pc,
		region:       region,
	}
}

// SP returns the frame's stack pointer.
func (f *Frame) SP() stack.Addr { return f.sp }

// UnextendedSP returns the stack pointer as seen by the sender, before
// callee-inserted local or adapter space.
func (f *Frame) UnextendedSP() stack.Addr { return f.unextendedSP }

// FP returns the frame pointer.
func (f *Frame) FP() stack.Addr { return f.fp }

// PC returns the logical pc. For a deoptimized frame this is the original
// compiled code address, not the deopt handler in the physical slot.
func (f *Frame) PC() code.PC { return f.pc }

// RawPC returns the physical pc: what actually sits in the return slot.
func (f *Frame) RawPC() code.PC { return f.rawPC }

// Region returns the owning code region, or nil for a native frame.
func (f *Frame) Region() *code.Region { return f.region }

// DeoptState returns the frame's deoptimization state.
func (f *Frame) DeoptState() DeoptState { return f.deoptState }

// IsDeoptimized reports whether the frame has been deoptimized.
func (f *Frame) IsDeoptimized() bool { return f.deoptState == Deoptimized }

// IsInterpreted reports whether the frame belongs to interpreter code.
func (f *Frame) IsInterpreted() bool {
	return f.region != nil && f.region.IsInterpreter()
}

// IsEntry reports whether the frame is an entry (call stub) frame.
func (f *Frame) IsEntry() bool {
	return f.region != nil && f.region.IsEntry()
}

// IsOptimizedEntry reports whether the frame is an optimized native
// callback boundary.
func (f *Frame) IsOptimizedEntry() bool {
	return f.region != nil && f.region.IsOptimizedEntry()
}

// IsCompiled reports whether the frame belongs to a compiled method.
func (f *Frame) IsCompiled() bool {
	return f.region != nil && f.region.IsCompiled()
}

// IsNative reports whether the frame has no owning code region.
func (f *Frame) IsNative() bool { return f.region == nil }

// addrAt returns the address of the slot at the given word offset from fp.
func (f *Frame) addrAt(offset int) stack.Addr {
	return f.fp.Add(offset)
}

// at reads the slot at the given word offset from fp.
func (f *Frame) at(th *Thread, offset int) stack.Word {
	return th.Mem.Word(f.addrAt(offset))
}

// setAt writes the slot at the given word offset from fp.
func (f *Frame) setAt(th *Thread, offset int, w stack.Word) {
	th.Mem.SetWord(f.addrAt(offset), w)
}

// fatalf panics with a fault carrying the frame's triple.
func (f *Frame) fatalf(kind errz.FaultKind, format string, args ...any) {
	panic(errz.Newf(kind, format, args...).
		WithFrame(uint64(f.sp), uint64(f.fp), uint64(f.rawPC)))
}
