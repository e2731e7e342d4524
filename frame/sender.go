package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// Sender computes the caller's frame. The frame must already be trusted
// (constructed by the owning thread at a safepoint, or vetted through
// SafeForSender); inconsistencies found here are fatal, not advisory.
//
// Each frame kind has its own closed, fixed slot layout, so sender
// resolution branches on kind rather than using any generic traversal.
func (f *Frame) Sender(m *RegisterMap, th *Thread, env *Env) Frame {
	if m == nil {
		f.fatalf(errz.FaultWalk, "sender resolution requires a register map")
	}
	if f.IsEntry() {
		return f.senderForEntryFrame(m, th, env)
	}
	if f.IsOptimizedEntry() {
		return f.senderForOptimizedEntryFrame(m, th, env)
	}
	if f.IsInterpreted() {
		return f.senderForInterpreterFrame(m, th, env)
	}
	if f.region != nil {
		return f.senderForCompiledFrame(m, th, env)
	}
	return f.senderForNativeFrame(th, env)
}

// IsFirstFrame reports whether the frame is the bottom of the managed
// stack: an entry boundary whose anchor records no older managed frame.
func (f *Frame) IsFirstFrame(th *Thread, env *Env) bool {
	if f.IsEntry() {
		return f.EntryFrameIsFirst(th)
	}
	if f.IsOptimizedEntry() {
		return f.OptimizedEntryFrameIsFirst(env)
	}
	return false
}

// EntryFrameCallWrapper resolves the call wrapper recorded in the entry
// frame's wrapper slot. Fatal if the slot does not name a registered
// wrapper: an entry frame without a wrapper is corrupt.
func (f *Frame) EntryFrameCallWrapper(th *Thread) *CallWrapper {
	addr := stack.Addr(f.at(th, EntryFrameCallWrapperOffset))
	w := th.WrapperAt(addr)
	if w == nil {
		f.fatalf(errz.FaultFrame, "entry frame has no call wrapper at %#x", uint64(addr))
	}
	return w
}

// EntryFrameIsFirst reports whether this entry frame is the oldest
// managed frame on the stack.
func (f *Frame) EntryFrameIsFirst(th *Thread) bool {
	return !f.EntryFrameCallWrapper(th).Anchor().HasLastFrame()
}

// OptimizedEntryFrameIsFirst reports whether this optimized entry frame
// is the oldest managed frame on the stack.
func (f *Frame) OptimizedEntryFrameIsFirst(env *Env) bool {
	return !f.optimizedEntryAnchor(env).HasLastFrame()
}

func (f *Frame) optimizedEntryAnchor(env *Env) *Anchor {
	if env.EntryAnchors == nil {
		f.fatalf(errz.FaultFrame, "optimized entry frame with no anchor source")
	}
	jfa := env.EntryAnchors.AnchorFor(f.region, f.unextendedSP)
	if jfa == nil {
		f.fatalf(errz.FaultFrame, "optimized entry frame has no anchor")
	}
	return jfa
}

// senderForEntryFrame returns the managed frame recorded by the entry
// frame's wrapper anchor: the walk skips all the native frames in between
// and resumes at the top managed frame of the older chunk.
func (f *Frame) senderForEntryFrame(m *RegisterMap, th *Thread, env *Env) Frame {
	jfa := f.EntryFrameCallWrapper(th).Anchor()
	if !jfa.HasLastFrame() {
		f.fatalf(errz.FaultWalk, "entry frame has no sender")
	}
	if jfa.LastSP() <= f.sp {
		f.fatalf(errz.FaultWalk, "anchor sp %#x not above entry frame", uint64(jfa.LastSP()))
	}
	return f.senderFromAnchor(jfa, m, th, env)
}

// senderForOptimizedEntryFrame is the same pattern as the entry frame,
// sourced from the blob's per-frame anchor lookup.
func (f *Frame) senderForOptimizedEntryFrame(m *RegisterMap, th *Thread, env *Env) Frame {
	jfa := f.optimizedEntryAnchor(env)
	if !jfa.HasLastFrame() {
		f.fatalf(errz.FaultWalk, "optimized entry frame has no sender")
	}
	if jfa.LastSP() <= f.sp {
		f.fatalf(errz.FaultWalk, "anchor sp %#x not above optimized entry frame", uint64(jfa.LastSP()))
	}
	return f.senderFromAnchor(jfa, m, th, env)
}

func (f *Frame) senderFromAnchor(jfa *Anchor, m *RegisterMap, th *Thread, env *Env) Frame {
	// Since we are walking the stack now, this nested anchor is walkable
	// even if it was not when it was stacked.
	if !jfa.Walkable() {
		jfa.CapturePC(th.Mem)
	}
	// Entry frames reset the tracked-register scope for everything above.
	m.Clear()
	if !m.IncludeArgumentOops() {
		f.fatalf(errz.FaultWalk, "register map clear must restore argument oops")
	}
	if jfa.LastPC() == 0 {
		f.fatalf(errz.FaultAnchor, "anchor not walkable after capture")
	}
	sp := jfa.LastSP()
	return New(th, env, sp, sp, jfa.LastFP(), jfa.LastPC())
}

// senderForInterpreterFrame reads the sender triple from the interpreted
// frame's fixed header slots. The raw sender sp is the address of the
// slot two words above fp; the unextended sp slot holds the sp the sender
// actually saw, which differs by the local-variable space this callee
// inserted.
func (f *Frame) senderForInterpreterFrame(m *RegisterMap, th *Thread, env *Env) Frame {
	senderSP := f.fp.Add(SenderSPOffset)
	unextendedSP := stack.Addr(f.at(th, InterpSenderSPOffset))
	senderFP := stack.Addr(f.at(th, LinkOffset))

	if m.UpdateMap() {
		f.updateMapWithSavedLink(m, f.fp.Add(LinkOffset))
	}

	senderPC := code.PC(f.at(th, ReturnAddrOffset))

	if env.continuations().IsReturnBarrier(senderPC) {
		if m.WalkCont() {
			// About to walk into a separately-stored virtual stack.
			if top, ok := env.continuations().TopFrame(*f, m); ok {
				return top
			}
		}
		senderPC, unextendedSP = env.continuations().FixBottomSender(th, *f, senderPC, unextendedSP)
	}

	return New(th, env, senderSP, unextendedSP, senderFP, senderPC)
}

// senderForCompiledFrame derives the sender from the region's declared
// frame size: compiled and stub frames are fixed-size, so the sender sp
// is a constant offset from the unextended sp, with the return address in
// the word below it and the saved fp at the fixed sender-sp offset.
func (f *Frame) senderForCompiledFrame(m *RegisterMap, th *Thread, env *Env) Frame {
	if f.region.FrameSize <= 0 {
		f.fatalf(errz.FaultFrame, "code region %q must have a non-zero frame size", f.region.Name)
	}
	senderSP := f.unextendedSP.Add(f.region.FrameSize)
	senderPC := code.PC(th.Mem.Word(senderSP.Add(PCReturnOffset)))
	savedFPAddr := senderSP.Add(-SenderSPOffset)

	if m.UpdateMap() {
		f.updateMapWithSavedLink(m, savedFPAddr)
	}

	if env.continuations().IsReturnBarrier(senderPC) {
		if m.WalkCont() {
			if top, ok := env.continuations().TopFrame(*f, m); ok {
				return top
			}
		}
		senderPC, senderSP = env.continuations().FixBottomSender(th, *f, senderPC, senderSP)
	}

	senderFP := stack.Addr(th.Mem.Word(savedFPAddr))
	return New(th, env, senderSP, senderSP, senderFP, senderPC)
}

// senderForNativeFrame follows the plain fp chain of a native frame.
func (f *Frame) senderForNativeFrame(th *Thread, env *Env) Frame {
	senderSP := f.fp.Add(SenderSPOffset)
	senderFP := stack.Addr(f.at(th, LinkOffset))
	senderPC := code.PC(f.at(th, ReturnAddrOffset))
	return New(th, env, senderSP, senderSP, senderFP, senderPC)
}

// updateMapWithSavedLink records where the caller's fp was spilled.
func (f *Frame) updateMapWithSavedLink(m *RegisterMap, addr stack.Addr) {
	m.SetLocation(RegFP, addr)
}
