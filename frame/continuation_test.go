package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/internal/stackgen"
	"github.com/cloudcmds/framewalk/stack"
)

// virtualStack is a ContinuationSupport test double: one barrier pc, a
// fixed bottom sender, and an optional saved top frame.
type virtualStack struct {
	barrier  code.PC
	bottomPC code.PC
	bottomSP stack.Addr
	top      frame.Frame
	hasTop   bool

	fixCalls int
	topCalls int
}

func (c *virtualStack) IsReturnBarrier(pc code.PC) bool {
	return pc == c.barrier
}

func (c *virtualStack) FixBottomSender(_ *frame.Thread, _ frame.Frame, pc code.PC, sp stack.Addr) (code.PC, stack.Addr) {
	c.fixCalls++
	if pc == c.barrier {
		return c.bottomPC, c.bottomSP
	}
	return pc, sp
}

func (c *virtualStack) TopFrame(_ frame.Frame, _ *frame.RegisterMap) (frame.Frame, bool) {
	c.topCalls++
	return c.top, c.hasTop
}

const barrierPC code.PC = 0x00f0_0000

// barrierAfterInterpreted rewires the interpreted frame's return address
// to the barrier, so its sender resolution must go through continuation
// support. The true bottom sender is the compiled frame.
func barrierAfterInterpreted(ch *stackgen.Chain) *virtualStack {
	ch.Mem.SetWord(ch.Interpreted.FP().Add(frame.ReturnAddrOffset), stack.Word(barrierPC))
	vs := &virtualStack{
		barrier:  barrierPC,
		bottomPC: ch.CompiledPC,
		bottomSP: ch.Compiled.SP(),
	}
	ch.Env.Continuations = vs
	return vs
}

// barrierAfterCompiled does the same for the compiled frame's return
// address; the true bottom sender is the entry frame.
func barrierAfterCompiled(ch *stackgen.Chain) *virtualStack {
	ch.Mem.SetWord(ch.Entry.SP().Add(-1), stack.Word(barrierPC))
	vs := &virtualStack{
		barrier:  barrierPC,
		bottomPC: ch.EntryReturnPC,
		bottomSP: ch.Entry.SP(),
	}
	ch.Env.Continuations = vs
	return vs
}

func TestInterpreterSenderBottomFixup(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	vs := barrierAfterInterpreted(ch)

	m := frame.NewRegisterMap(ch.Thread, false, false)
	sender := ch.Interpreted.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, 1, vs.fixCalls)
	require.Equal(t, 0, vs.topCalls)
	require.True(t, sender.IsCompiled())
	require.Equal(t, ch.Compiled.SP(), sender.SP())
	require.Equal(t, ch.Compiled.UnextendedSP(), sender.UnextendedSP())
	require.Equal(t, ch.CompiledPC, sender.PC())
}

func TestInterpreterSenderContinuationTop(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	vs := barrierAfterInterpreted(ch)
	vs.top = ch.Compiled
	vs.hasTop = true

	m := frame.NewRegisterMap(ch.Thread, false, true)
	sender := ch.Interpreted.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, 1, vs.topCalls)
	require.Equal(t, 0, vs.fixCalls)
	require.Equal(t, ch.Compiled.SP(), sender.SP())
	require.Equal(t, ch.CompiledPC, sender.PC())

	// With no saved top frame the walk falls back to the bottom sender
	// even when continuation traversal is on.
	vs.hasTop = false
	sender = ch.Interpreted.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, 2, vs.topCalls)
	require.Equal(t, 1, vs.fixCalls)
	require.Equal(t, ch.CompiledPC, sender.PC())
}

func TestCompiledSenderBottomFixup(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	vs := barrierAfterCompiled(ch)

	m := frame.NewRegisterMap(ch.Thread, false, false)
	sender := ch.Compiled.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, 1, vs.fixCalls)
	require.True(t, sender.IsEntry())
	require.Equal(t, ch.Entry.SP(), sender.SP())
	require.Equal(t, ch.Entry.FP(), sender.FP())
	require.Equal(t, ch.EntryReturnPC, sender.PC())
}

func TestCompiledSenderContinuationTop(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	vs := barrierAfterCompiled(ch)
	vs.top = ch.Entry
	vs.hasTop = true

	m := frame.NewRegisterMap(ch.Thread, false, true)
	sender := ch.Compiled.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, 1, vs.topCalls)
	require.Equal(t, 0, vs.fixCalls)
	require.True(t, sender.IsEntry())
	require.Equal(t, ch.Entry.SP(), sender.SP())
}

func TestSafeForSenderBarrierFixup(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())

	// Without continuation support the barrier pc resolves to no region
	// and the frame is unsafe.
	ch.Mem.SetWord(ch.Interpreted.FP().Add(frame.ReturnAddrOffset), stack.Word(barrierPC))
	require.False(t, ch.Interpreted.SafeForSender(ch.Thread, ch.Env))

	// With it the bottom sender is substituted and vetted instead.
	vs := barrierAfterInterpreted(ch)
	require.True(t, ch.Interpreted.SafeForSender(ch.Thread, ch.Env))
	require.Equal(t, 1, vs.fixCalls)
}

func TestSafeForSenderBarrierFixupCompiled(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())

	ch.Mem.SetWord(ch.Entry.SP().Add(-1), stack.Word(barrierPC))
	require.False(t, ch.Compiled.SafeForSender(ch.Thread, ch.Env))

	barrierAfterCompiled(ch)
	require.True(t, ch.Compiled.SafeForSender(ch.Thread, ch.Env))
}
