package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// InterpretedFrameValid is the stricter advisory predicate applied to an
// interpreted frame reconstructed from potentially-unreliable data, such
// as a sender derived from a questionable saved fp. Checks run in order
// and short-circuit on the first failure; once one fails no further
// memory is read.
func (f *Frame) InterpretedFrameValid(th *Thread, env *Env) bool {
	if f.fp == 0 || !f.fp.Aligned() {
		return false
	}
	if f.sp == 0 || !f.sp.Aligned() {
		return false
	}
	// The header must fit between sp and fp.
	if f.fp.Add(InterpInitialSPOffset) < f.sp {
		return false
	}
	if f.fp <= f.sp {
		return false
	}

	// Validate the method slot.
	methodWord, ok := th.Mem.TryWord(f.fp.Add(InterpMethodOffset))
	if !ok {
		return false
	}
	m := env.Metaspace.MethodAt(uint64(methodWord))
	if m == nil {
		return false
	}

	// Frames should not be much larger than max_stack elements. This uses
	// the unextended sp, the sp as seen by this frame, not the raw sp that
	// may point further down because of callee-inserted locals.
	if f.fp > f.unextendedSP {
		frameWords := int(f.fp-f.unextendedSP) / stack.WordSize
		if frameWords > interpFrameSlackWords+m.MaxStack*StackElementWords {
			return false
		}
	}

	// Validate the saved bytecode pointer.
	bcpWord, ok := th.Mem.TryWord(f.fp.Add(InterpBCPOffset))
	if !ok {
		return false
	}
	if !m.ValidBCP(code.PC(bcpWord)) {
		return false
	}

	// Validate the constant-pool cache pointer.
	cacheWord, ok := th.Mem.TryWord(f.fp.Add(InterpCacheOffset))
	if !ok {
		return false
	}
	if !env.Metaspace.ValidConstantPoolCache(uint64(cacheWord)) {
		return false
	}

	// Validate the locals pointer: it must lie between fp and the stack
	// base, where the caller left the arguments.
	localsWord, ok := th.Mem.TryWord(f.fp.Add(InterpLocalsOffset))
	if !ok {
		return false
	}
	return th.Bounds.InStackRangeIncl(stack.Addr(localsWord), f.fp)
}

// InterpreterFrameMethod resolves the frame's method slot through the
// metaspace oracle. Fatal when the slot does not name a live method; use
// InterpretedFrameValid first on untrusted frames.
func (f *Frame) InterpreterFrameMethod(th *Thread, env *Env) *code.Method {
	m := env.Metaspace.MethodAt(uint64(f.at(th, InterpMethodOffset)))
	if m == nil {
		f.fatalf(errz.FaultFrame, "interpreted frame method slot is not a live method")
	}
	return m
}

// InterpreterFrameBCP returns the saved bytecode pointer.
func (f *Frame) InterpreterFrameBCP(th *Thread) code.PC {
	return code.PC(f.at(th, InterpBCPOffset))
}

// InterpreterFrameSenderSP returns the sender sp slot contents.
func (f *Frame) InterpreterFrameSenderSP(th *Thread) stack.Addr {
	f.requireInterpreted()
	return stack.Addr(f.at(th, InterpSenderSPOffset))
}

// SetInterpreterFrameSenderSP stores the sender sp slot. Used by
// deoptimization when rebuilding interpreted activations.
func (f *Frame) SetInterpreterFrameSenderSP(th *Thread, sp stack.Addr) {
	f.requireInterpreted()
	f.setAt(th, InterpSenderSPOffset, stack.Word(sp))
}

// SetInterpreterFrameLastSP stores the top-of-expression-stack slot.
func (f *Frame) SetInterpreterFrameLastSP(th *Thread, sp stack.Addr) {
	f.requireInterpreted()
	f.setAt(th, InterpLastSPOffset, stack.Word(sp))
}

// InterpreterFrameTOSAddress returns the top-of-expression-stack address:
// the last sp slot when set, the raw sp otherwise.
func (f *Frame) InterpreterFrameTOSAddress(th *Thread) stack.Addr {
	lastSP := stack.Addr(f.at(th, InterpLastSPOffset))
	if lastSP == 0 {
		return f.sp
	}
	return lastSP
}

// InterpreterFrameTOSAt returns the address of the expression-stack slot
// at the given element offset from the top.
func (f *Frame) InterpreterFrameTOSAt(th *Thread, offset int) stack.Addr {
	return f.InterpreterFrameTOSAddress(th).Add(offset * StackElementWords)
}

// EntryFrameArgumentAt returns the address of the i'th argument slot of
// an entry frame. Entry frame arguments are always relative to the
// unextended sp.
func (f *Frame) EntryFrameArgumentAt(i int) stack.Addr {
	return f.unextendedSP.Add(i * StackElementWords)
}

// MonitorBegin returns the address of the bottom of the monitor block.
func (f *Frame) MonitorBegin() stack.Addr {
	return f.fp.Add(InterpMonitorBlockBottomOffset)
}

// MonitorEnd returns the address of the top of the monitor block. The
// value must point inside the frame: above sp, strictly below fp.
func (f *Frame) MonitorEnd(th *Thread) stack.Addr {
	end := stack.Addr(f.at(th, InterpMonitorBlockTopOffset))
	if end < f.sp {
		f.fatalf(errz.FaultFrame, "monitor end %#x below stack pointer", uint64(end))
	}
	if end >= f.fp {
		f.fatalf(errz.FaultFrame, "monitor end %#x not strictly below frame pointer", uint64(end))
	}
	return end
}

// SetMonitorEnd stores the top of the monitor block.
func (f *Frame) SetMonitorEnd(th *Thread, end stack.Addr) {
	f.requireInterpreted()
	f.setAt(th, InterpMonitorBlockTopOffset, stack.Word(end))
}

func (f *Frame) requireInterpreted() {
	if !f.IsInterpreted() {
		f.fatalf(errz.FaultFrame, "interpreted frame expected")
	}
}
