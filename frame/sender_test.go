package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/internal/stackgen"
	"github.com/cloudcmds/framewalk/stack"
)

func TestSenderChainToEntry(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	m := frame.NewRegisterMap(ch.Thread, false, false)

	compiled := ch.Interpreted.Sender(m, ch.Thread, ch.Env)
	require.True(t, compiled.IsCompiled())
	require.Equal(t, ch.Compiled.SP(), compiled.SP())
	require.Equal(t, ch.Compiled.FP(), compiled.FP())
	require.Equal(t, ch.CompiledPC, compiled.PC())

	entry := compiled.Sender(m, ch.Thread, ch.Env)
	require.True(t, entry.IsEntry())
	require.Equal(t, ch.Entry.SP(), entry.SP())
	require.Equal(t, ch.Entry.FP(), entry.FP())
	require.Equal(t, ch.EntryReturnPC, entry.PC())

	// sp strictly increases toward the stack base.
	require.Greater(t, compiled.SP(), ch.Interpreted.SP())
	require.Greater(t, entry.SP(), compiled.SP())

	require.True(t, entry.IsFirstFrame(ch.Thread, ch.Env))
	require.False(t, compiled.IsFirstFrame(ch.Thread, ch.Env))
}

func TestSenderCompiledFrameSizes(t *testing.T) {
	for _, words := range []int{4, 12, 32} {
		cfg := stackgen.DefaultChainConfig()
		cfg.CompiledFrameWords = words
		ch := stackgen.BuildChain(cfg)
		m := frame.NewRegisterMap(ch.Thread, false, false)

		entry := ch.Compiled.Sender(m, ch.Thread, ch.Env)
		require.Equal(t, ch.Compiled.UnextendedSP().Add(words), entry.SP())
		require.Equal(t, ch.EntryReturnPC, entry.PC())
	}
}

func TestSenderRecordsSavedLink(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	m := frame.NewRegisterMap(ch.Thread, true, false)
	require.True(t, m.UpdateMap())

	compiled := ch.Interpreted.Sender(m, ch.Thread, ch.Env)
	loc, ok := m.Location(frame.RegFP)
	require.True(t, ok)
	require.Equal(t, ch.Interpreted.FP().Add(frame.LinkOffset), loc)

	_ = compiled.Sender(m, ch.Thread, ch.Env)
	loc, ok = m.Location(frame.RegFP)
	require.True(t, ok)
	require.Equal(t, ch.Entry.SP().Add(-frame.SenderSPOffset), loc)
}

func TestSenderAcrossEntryFrameClearsMap(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	nestedPC := stackgen.InterpreterStart + 0x50
	ch.AttachNestedAnchor(ch.Entry.FP().Add(5), ch.Entry.FP().Add(6), nestedPC, true)

	m := frame.NewRegisterMap(ch.Thread, true, false)
	m.SetLocation(frame.RegFP, ch.Interpreted.FP())
	m.SetIncludeArgumentOops(false)

	older := ch.Entry.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, ch.Entry.FP().Add(5), older.SP())
	require.Equal(t, nestedPC, older.PC())
	require.True(t, older.IsInterpreted())

	_, ok := m.Location(frame.RegFP)
	require.False(t, ok)
	require.True(t, m.IncludeArgumentOops())
}

func TestSenderEntryFrameLazyCapture(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	nestedPC := stackgen.InterpreterStart + 0x60
	anchor := ch.AttachNestedAnchor(ch.Entry.FP().Add(5), ch.Entry.FP().Add(6), nestedPC, false)
	require.False(t, anchor.Walkable())

	m := frame.NewRegisterMap(ch.Thread, false, false)
	older := ch.Entry.Sender(m, ch.Thread, ch.Env)
	require.True(t, anchor.Walkable())
	require.Equal(t, nestedPC, older.PC())
}

func TestSenderEntryFrameWithoutSenderIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	m := frame.NewRegisterMap(ch.Thread, false, false)
	requireFault(t, errz.FaultWalk, func() {
		ch.Entry.Sender(m, ch.Thread, ch.Env)
	})
}

func TestSenderNilRegisterMapIsFatal(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	requireFault(t, errz.FaultWalk, func() {
		ch.Interpreted.Sender(nil, ch.Thread, ch.Env)
	})
}

func TestSenderNativeFrameFollowsLinkChain(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())

	// Lay out a native frame below the entry frame's fp chain.
	outerFP := ch.Entry.FP().Add(-20)
	innerFP := outerFP.Add(-6)
	ch.Mem.SetWord(innerFP.Add(frame.LinkOffset), stack.Word(outerFP))
	ch.Mem.SetWord(innerFP.Add(frame.ReturnAddrOffset), stack.Word(stackgen.NativeReturnPC))

	inner := frame.NewRaw(innerFP.Add(-2), innerFP.Add(-2), innerFP, 0x0088_0000, nil)
	require.True(t, inner.IsNative())

	m := frame.NewRegisterMap(ch.Thread, false, false)
	outer := inner.Sender(m, ch.Thread, ch.Env)
	require.Equal(t, innerFP.Add(frame.SenderSPOffset), outer.SP())
	require.Equal(t, outerFP, outer.FP())
	require.Equal(t, code.PC(stackgen.NativeReturnPC), outer.PC())
}

func TestThreadLastFrame(t *testing.T) {
	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	require.False(t, ch.Thread.HasLastFrame())
	_, ok := ch.Thread.LastFrame(ch.Env)
	require.False(t, ok)

	// Publish an anchor with a pending pc capture.
	ch.Mem.SetWord(ch.Interpreted.SP().Add(-1), stack.Word(ch.InterpretedPC))
	ch.Thread.Anchor = frame.NewAnchor(ch.Interpreted.SP(), ch.Interpreted.FP(), 0)
	require.True(t, ch.Thread.HasLastFrame())

	top, ok := ch.Thread.LastFrame(ch.Env)
	require.True(t, ok)
	require.Equal(t, ch.Interpreted.SP(), top.SP())
	require.Equal(t, ch.Interpreted.FP(), top.FP())
	require.Equal(t, ch.InterpretedPC, top.PC())
	require.True(t, ch.Thread.Anchor.Walkable())
}
