package stackgen

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/stack"
)

// ChainConfig tunes the canonical chain layout.
type ChainConfig struct {
	// CompiledFrameWords is the compiled region's declared frame size.
	CompiledFrameWords int
	// ExprWords is the interpreted frame's expression stack depth.
	ExprWords int
	// Result is the interpreted method's declared result kind.
	Result code.BasicKind
	// Native marks the interpreted method as native.
	Native bool
}

// DefaultChainConfig returns the layout used when no overrides are needed.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		CompiledFrameWords: 12,
		ExprWords:          4,
		Result:             code.BasicLong,
	}
}

// Chain is the canonical three-frame stack: an interpreted frame on top,
// a compiled frame under it, and an entry frame at the bottom whose call
// wrapper anchor records no older managed frame.
type Chain struct {
	*World

	Interpreted frame.Frame
	Compiled    frame.Frame
	Entry       frame.Frame

	CompiledRegion *code.Region
	Method         *code.Method

	Wrapper     *frame.CallWrapper
	WrapperAddr stack.Addr

	// InterpretedPC, CompiledPC and EntryReturnPC are the pcs the three
	// frames were laid out with, before any patching.
	InterpretedPC code.PC
	CompiledPC    code.PC
	EntryReturnPC code.PC
}

// BuildChain lays out the canonical chain in a fresh world.
func BuildChain(cfg ChainConfig) *Chain {
	w := NewWorld()
	ch := &Chain{World: w}

	ch.Method = &code.Method{
		Name:          "demo.run",
		Result:        cfg.Result,
		Native:        cfg.Native,
		MaxStack:      8,
		BytecodeStart: BytecodeStart,
		BytecodeSize:  BytecodeSize,
	}
	w.Metaspace.AddMethod(MethodAddr, ch.Method)
	w.Metaspace.AddCPCache(CPCacheAddr)

	ch.CompiledRegion = w.AddCompiledRegion("demo.hot", 0x0030_0000, cfg.CompiledFrameWords,
		&code.Method{Name: "demo.hot", Result: code.BasicVoid, MaxStack: 4})

	ch.InterpretedPC = InterpreterStart + 0x40
	ch.CompiledPC = ch.CompiledRegion.Start + 0x100
	ch.EntryReturnPC = CallStubStart + 0x20

	mem := w.Mem

	// Entry frame at the bottom. The call wrapper record lives above fp,
	// between fp and the stack base.
	entryFP := StackBase.Add(-8)
	entrySP := entryFP.Add(-10)
	ch.WrapperAddr = entryFP.Add(4)
	ch.Wrapper = frame.NewCallWrapper(frame.NewAnchor(0, 0, 0))
	w.Thread.RegisterWrapper(ch.WrapperAddr, ch.Wrapper)
	mem.SetWord(entryFP.Add(frame.LinkOffset), 0)
	mem.SetWord(entryFP.Add(frame.ReturnAddrOffset), stack.Word(NativeReturnPC))
	mem.SetWord(entryFP.Add(frame.EntryFrameCallWrapperOffset), stack.Word(ch.WrapperAddr))

	// Compiled frame: fixed size, so its sender sp is entrySP exactly.
	compiledSP := entrySP.Add(-cfg.CompiledFrameWords)
	mem.SetWord(entrySP.Add(-1), stack.Word(ch.EntryReturnPC))
	mem.SetWord(entrySP.Add(-2), stack.Word(entryFP))
	compiledFP := entrySP.Add(-2)

	// Interpreted frame on top. Its raw sender sp (fp + 2 words) must be
	// the compiled frame's sp.
	interpFP := compiledSP.Add(-2)
	mem.SetWord(interpFP.Add(frame.ReturnAddrOffset), stack.Word(ch.CompiledPC))
	mem.SetWord(interpFP.Add(frame.LinkOffset), stack.Word(compiledFP))
	mem.SetWord(interpFP.Add(frame.InterpSenderSPOffset), stack.Word(compiledSP))
	mem.SetWord(interpFP.Add(frame.InterpLastSPOffset), 0)
	mem.SetWord(interpFP.Add(frame.InterpMethodOffset), stack.Word(MethodAddr))
	mem.SetWord(interpFP.Add(frame.InterpMirrorOffset), 0)
	mem.SetWord(interpFP.Add(frame.InterpMDPOffset), 0)
	mem.SetWord(interpFP.Add(frame.InterpCacheOffset), stack.Word(CPCacheAddr))
	mem.SetWord(interpFP.Add(frame.InterpLocalsOffset), stack.Word(interpFP.Add(5)))
	mem.SetWord(interpFP.Add(frame.InterpBCPOffset), stack.Word(BytecodeStart+4))
	initialSP := interpFP.Add(frame.InterpInitialSPOffset)
	mem.SetWord(initialSP, stack.Word(initialSP))
	interpSP := initialSP.Add(-cfg.ExprWords)

	ch.Interpreted = frame.New(w.Thread, w.Env, interpSP, interpSP, interpFP, ch.InterpretedPC)
	ch.Compiled = frame.New(w.Thread, w.Env, compiledSP, compiledSP, compiledFP, ch.CompiledPC)
	ch.Entry = frame.New(w.Thread, w.Env, entrySP, entrySP, entryFP, ch.EntryReturnPC)
	return ch
}

// AttachNestedAnchor rewires the entry frame's wrapper anchor so the
// chain is no longer the oldest managed chunk: the anchor records an
// older managed frame at (lastSP, lastFP, pc). When captured is false the
// pc is instead written to the word below lastSP for a lazy capture.
func (ch *Chain) AttachNestedAnchor(lastSP, lastFP stack.Addr, pc code.PC, captured bool) *frame.Anchor {
	var anchor *frame.Anchor
	if captured {
		anchor = frame.NewAnchor(lastSP, lastFP, pc)
	} else {
		anchor = frame.NewAnchor(lastSP, lastFP, 0)
		ch.Mem.SetWord(lastSP.Add(-1), stack.Word(pc))
	}
	ch.Wrapper = frame.NewCallWrapper(anchor)
	ch.Thread.RegisterWrapper(ch.WrapperAddr, ch.Wrapper)
	return anchor
}
