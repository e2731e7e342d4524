package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/internal/stackgen"
	"github.com/cloudcmds/framewalk/stack"
)

func TestPatchPCWithinRegion(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled

	newPC := ch.CompiledRegion.Start + 0x180
	f.PatchPC(ch.Thread, ch.Env, newPC)
	require.Equal(t, newPC, f.PC())
	require.Equal(t, newPC, f.RawPC())
	require.False(t, f.IsDeoptimized())

	// The physical return slot was rewritten.
	slot := ch.Mem.Word(f.SP().Add(frame.PCReturnOffset))
	require.Equal(t, stack.Word(newPC), slot)
}

func TestPatchPCDeoptimizes(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	r := ch.CompiledRegion

	// Stash the original pc where the deopt handler expects it.
	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), stack.Word(ch.CompiledPC))

	f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)
	require.True(t, f.IsDeoptimized())
	require.Equal(t, frame.Deoptimized, f.DeoptState())
	require.Equal(t, ch.CompiledPC, f.PC())
	require.Equal(t, r.DeoptHandler, f.RawPC())

	// Re-patching the same target is idempotent.
	f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)
	require.True(t, f.IsDeoptimized())
	require.Equal(t, ch.CompiledPC, f.PC())
}

func TestPatchPCDeoptOriginalMismatchIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	r := ch.CompiledRegion

	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), stack.Word(ch.CompiledPC))
	f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)

	// Corrupt the stashed original pc, then re-patch.
	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), stack.Word(r.Start+0x140))
	requireFault(t, errz.FaultPatch, func() {
		f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)
	})
}

func TestPatchPCFirstDeoptMismatchIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	r := ch.CompiledRegion

	// The stashed original pc is inside the region but is not the pc this
	// activation was running: it was not stored before patching.
	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), stack.Word(r.Start+0x140))
	requireFault(t, errz.FaultPatch, func() {
		f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)
	})
}

func TestPatchPCBadOriginalIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	r := ch.CompiledRegion

	// The stashed original pc points outside the region.
	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), 0x1234)
	requireFault(t, errz.FaultPatch, func() {
		f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)
	})
}

func TestPatchPCOutsideRegionIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	requireFault(t, errz.FaultPatch, func() {
		f.PatchPC(ch.Thread, ch.Env, stackgen.InterpreterStart)
	})
}

func TestPatchPCReturnSlotMismatchIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled

	// Someone else rewrote the slot to an unrelated pc.
	ch.Mem.SetWord(f.SP().Add(frame.PCReturnOffset), stack.Word(ch.CompiledRegion.Start+0x50))
	requireFault(t, errz.FaultPatch, func() {
		f.PatchPC(ch.Thread, ch.Env, ch.CompiledRegion.Start+0x180)
	})
}

func TestNewDetectsDeoptimizedFrame(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	f := ch.Compiled
	r := ch.CompiledRegion

	ch.Mem.SetWord(f.UnextendedSP().Add(r.OrigPCSlotOffset), stack.Word(ch.CompiledPC))
	f.PatchPC(ch.Thread, ch.Env, r.DeoptHandler)

	// Reconstructing the frame from the patched slot recovers the logical pc.
	g := frame.New(ch.Thread, ch.Env, f.SP(), f.UnextendedSP(), f.FP(), r.DeoptHandler)
	require.True(t, g.IsDeoptimized())
	require.Equal(t, ch.CompiledPC, g.PC())
	require.Equal(t, r.DeoptHandler, g.RawPC())
}

func TestInitialDeoptimizationInfo(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	require.Equal(t, ch.Compiled.FP(), ch.Compiled.InitialDeoptimizationInfo())
}
