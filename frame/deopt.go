package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// PatchPC rewrites the frame's physical return-address slot to newPC,
// typically redirecting the activation into deoptimization handling. The
// region owning newPC must be the frame's already-recorded region.
//
// The slot must hold the frame's recorded pc, already hold newPC
// (re-patching the same target is legal and idempotent), or be zero;
// anything else is a fatal inconsistency. When newPC is the region's
// deopt handler, the frame transitions to the deoptimized state: its
// logical pc becomes the original pc stashed in the frame, so everything
// downstream sees the original method, while the physical slot keeps the
// handler address.
func (f *Frame) PatchPC(th *Thread, env *Env, newPC code.PC) {
	if env.Code.FindRegion(newPC) != f.region {
		f.fatalf(errz.FaultPatch, "unexpected pc %#x outside the frame's code region", uint64(newPC))
	}
	pcAddr := f.sp.Add(PCReturnOffset)
	old := code.PC(th.Mem.Word(pcAddr))

	if env.continuations().IsReturnBarrier(old) {
		f.fatalf(errz.FaultPatch, "return slot holds a continuation return barrier")
	}
	if old != f.rawPC && old != newPC && old != 0 {
		f.fatalf(errz.FaultPatch, "return slot holds %#x, expected %#x", uint64(old), uint64(f.rawPC))
	}

	oldLogical := f.pc
	th.Mem.SetWord(pcAddr, stack.Word(newPC))
	f.rawPC = newPC
	f.pc = newPC

	if f.region != nil && f.region.IsCompiled() && f.region.IsDeoptPC(newPC) {
		orig := deoptOriginalPC(th, f.region, f.unextendedSP)
		verifyDeoptOriginalPC(f.region, orig)
		// The original pc must have been stored before patching.
		if orig != oldLogical {
			f.fatalf(errz.FaultPatch, "original pc %#x does not match recorded pc %#x",
				uint64(orig), uint64(oldLogical))
		}
		f.deoptState = Deoptimized
		f.pc = orig
	} else {
		f.deoptState = NotDeoptimized
	}

	if f.region != nil && f.region.IsCompiled() && f.region.IsDeoptEntry(f.pc) {
		f.fatalf(errz.FaultPatch, "logical pc must not be a deopt entry")
	}
}

// InitialDeoptimizationInfo returns the value deoptimization uses to
// reset the saved fp when rebuilding this activation.
func (f *Frame) InitialDeoptimizationInfo() stack.Addr {
	return f.fp
}

// deoptOriginalPC reads the original pc stashed in the frame once its
// return address was redirected to the region's deopt handler.
func deoptOriginalPC(th *Thread, r *code.Region, unextendedSP stack.Addr) code.PC {
	return code.PC(th.Mem.Word(unextendedSP.Add(r.OrigPCSlotOffset)))
}

// verifyDeoptOriginalPC checks that a recovered original pc lies in the
// main code section of the owning compiled region.
func verifyDeoptOriginalPC(r *code.Region, orig code.PC) {
	if !r.Contains(orig) {
		errz.Fatalf(errz.FaultPatch,
			"original pc %#x outside compiled region %q", uint64(orig), r.Name)
	}
}
