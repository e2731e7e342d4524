package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/stack"
)

// SafeForSender reports whether this frame's (sp, fp, pc) triple can be
// trusted enough to compute its sender. It is advisory: every branch is a
// read-only probe, nothing is mutated, and a false verdict means "abandon
// this walk path", never "retry". Used when a walk might race the target
// thread's own stack growth, e.g. asynchronous profiling.
//
// The stack guards are considered when deciding what a "safe" stack
// pointer is: sp must sit in the usable (non-guard) part of the stack.
func (f *Frame) SafeForSender(th *Thread, env *Env) bool {
	if !th.Bounds.InUsableStack(f.sp) {
		return false
	}

	// The unextended sp must be within the stack and above or equal sp.
	if !th.Bounds.InStackRangeIncl(f.unextendedSP, f.sp) {
		return false
	}

	// fp must be within the stack and strictly above sp, with the return
	// address slot it implies still inside mapped stack memory. We know
	// sp and unextendedSP are safe; only fp is questionable here.
	fpSafe := th.Bounds.InStackRangeExcl(f.fp, f.sp) &&
		th.Bounds.InFullStack(f.fp.Add(ReturnAddrOffset))

	if f.region == nil {
		// Native frame. The sender computation will follow fp to find
		// linkages, so fp must be safe and the return address non-null
		// (a null one marks the oldest frame).
		if !fpSafe {
			return false
		}
		ret, ok := th.Mem.TryWord(f.fp.Add(ReturnAddrOffset))
		return ok && ret != 0
	}

	// The frame is known to the code registry, so we can attempt to
	// construct the sender and validate it.

	// Frame completeness is only authoritative for compiled methods,
	// adapters and runtime stubs. Other generic blobs are optimistically
	// assumed complete; adapters never report completeness and are never ok.
	if !f.region.FrameCompleteAt(f.pc) {
		switch f.region.Kind {
		case code.KindCompiled, code.KindAdapter, code.KindRuntimeStub:
			return false
		}
	}

	// Could just be some random pointer within the region.
	if !f.region.Contains(f.pc) {
		return false
	}

	if f.IsEntry() {
		// An entry frame must have a valid fp and a plausible call wrapper.
		return fpSafe && f.entryFrameValid(th)
	}
	if f.IsOptimizedEntry() {
		return fpSafe
	}

	var senderSP, senderUnextendedSP, savedFP stack.Addr
	var senderPC code.PC

	if f.IsInterpreted() {
		if !fpSafe {
			return false
		}
		ret, ok := th.Mem.TryWord(f.fp.Add(ReturnAddrOffset))
		if !ok {
			return false
		}
		senderPC = code.PC(ret)
		// The sender's raw sp is the slot address itself; it can differ
		// from the sender's unextended sp because of this frame's locals.
		senderSP = f.fp.Add(SenderSPOffset)
		usp, ok := th.Mem.TryWord(f.fp.Add(InterpSenderSPOffset))
		if !ok {
			return false
		}
		senderUnextendedSP = stack.Addr(usp)
		link, ok := th.Mem.TryWord(f.fp.Add(LinkOffset))
		if !ok {
			return false
		}
		savedFP = stack.Addr(link)
	} else {
		// Some sort of compiled or runtime frame. fp does not have to be
		// safe. Without a valid declared frame size we are unlikely to
		// find a valid sender pc.
		if f.region.FrameSize <= 0 {
			return false
		}
		senderSP = f.unextendedSP.Add(f.region.FrameSize)
		if !th.Bounds.InFullStack(senderSP) {
			return false
		}
		senderUnextendedSP = senderSP
		// The return address is always the word below the sender sp.
		ret, ok := th.Mem.TryWord(senderSP.Add(-1))
		if !ok {
			return false
		}
		senderPC = code.PC(ret)
		link, ok := th.Mem.TryWord(senderSP.Add(-SenderSPOffset))
		if !ok {
			return false
		}
		savedFP = stack.Addr(link)
	}

	if env.continuations().IsReturnBarrier(senderPC) {
		senderPC, senderSP = env.continuations().FixBottomSender(th, *f, senderPC, senderSP)
	}

	// If the potential sender is the interpreter we can do more checking.
	// The saved fp is only certainly a real frame pointer when the sender
	// is interpreted or a call stub.
	if env.InterpreterContains(senderPC) {
		if !th.Bounds.InStackRangeExcl(savedFP, senderSP) {
			return false
		}
		sender := NewRaw(senderSP, senderUnextendedSP, savedFP, senderPC, env.Interpreter)
		return sender.InterpretedFrameValid(th, env)
	}

	// We must always be able to find a recognizable sender pc.
	if senderPC == 0 {
		return false
	}
	senderRegion := env.Code.FindRegion(senderPC)
	if senderRegion == nil {
		return false
	}
	if senderRegion.Zombie || senderRegion.Unloaded {
		return false
	}
	if !senderRegion.Contains(senderPC) {
		return false
	}

	// An adapter can never be directly called from a code-cache frame.
	if senderRegion.IsAdapter() {
		return false
	}

	if env.ReturnsToCallStub(senderPC) {
		if !th.Bounds.InStackRangeExcl(savedFP, senderSP) {
			return false
		}
		// Validate the call wrapper the entry frame must have.
		sender := NewRaw(senderSP, senderUnextendedSP, savedFP, senderPC, senderRegion)
		jcwWord, ok := th.Mem.TryWord(sender.fp.Add(EntryFrameCallWrapperOffset))
		if !ok {
			return false
		}
		return th.Bounds.InStackRangeExcl(stack.Addr(jcwWord), sender.fp)
	}
	if senderRegion.IsOptimizedEntry() {
		return false
	}

	if senderRegion.IsCompiled() {
		if senderRegion.IsDeoptMHEntry(senderPC) || senderRegion.IsDeoptEntry(senderPC) {
			return false
		}
		if senderRegion.Method != nil && senderRegion.Method.MethodHandleIntrinsic {
			return false
		}
	}

	// Every compiled method has a non-zero frame size, because the return
	// address counts against the callee's frame.
	if senderRegion.FrameSize <= 0 {
		return false
	}

	// Anything called from a code-cache frame other than the interpreter
	// or the call stub must itself be a compiled method.
	return senderRegion.IsCompiled()
}

// entryFrameValid checks the entry-frame specifics behind SafeForSender:
// the call wrapper address must lie between fp and the stack base, and
// the wrapper's anchor must record a frame above this one.
func (f *Frame) entryFrameValid(th *Thread) bool {
	jcwWord, ok := th.Mem.TryWord(f.fp.Add(EntryFrameCallWrapperOffset))
	if !ok {
		return false
	}
	jcw := stack.Addr(jcwWord)
	if !th.Bounds.InStackRangeExcl(jcw, f.fp) {
		return false
	}
	w := th.WrapperAt(jcw)
	if w == nil || w.Anchor() == nil {
		return false
	}
	return w.Anchor().LastSP() > f.sp
}
