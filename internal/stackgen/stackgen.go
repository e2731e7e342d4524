// Package stackgen builds deterministic synthetic stacks for tests and
// tooling: a thread with word-granular stack memory, a code registry with
// interpreter, call-stub and compiled regions, and frame chains laid out
// with the exact slot conventions the walker expects.
package stackgen

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/stack"
)

// Address-space constants for synthetic worlds. Stack, code, metaspace
// and heap each get their own distinct range so a confused pointer fails
// loudly in tests.
const (
	StackBase  stack.Addr = 0x7ffc_0000
	StackWords            = 512
	GuardWords            = 16

	InterpreterStart code.PC = 0x0010_0000
	InterpreterSize  uint64  = 0x1000
	CallStubStart    code.PC = 0x0020_0000
	CallStubSize     uint64  = 0x100

	MethodAddr    uint64  = 0x0050_0010
	CPCacheAddr   uint64  = 0x0050_0100
	BytecodeStart code.PC = 0x0060_0000
	BytecodeSize  int     = 64

	HeapStart uint64 = 0xd000_0000
	HeapSize  uint64 = 0x0100_0000

	NativeReturnPC code.PC = 0x0099_9000
)

// Metaspace is a test metaspace oracle: only explicitly registered
// addresses are plausible.
type Metaspace struct {
	methods  map[uint64]*code.Method
	cpCaches map[uint64]bool
}

// NewMetaspace creates an empty metaspace oracle.
func NewMetaspace() *Metaspace {
	return &Metaspace{
		methods:  map[uint64]*code.Method{},
		cpCaches: map[uint64]bool{},
	}
}

// AddMethod registers method metadata at a metaspace address.
func (ms *Metaspace) AddMethod(addr uint64, m *code.Method) {
	ms.methods[addr] = m
}

// AddCPCache registers a valid constant-pool cache address.
func (ms *Metaspace) AddCPCache(addr uint64) {
	ms.cpCaches[addr] = true
}

// MethodAt implements frame.MetaspaceOracle.
func (ms *Metaspace) MethodAt(addr uint64) *code.Method {
	return ms.methods[addr]
}

// ValidConstantPoolCache implements frame.MetaspaceOracle.
func (ms *Metaspace) ValidConstantPoolCache(addr uint64) bool {
	return ms.cpCaches[addr]
}

// World is a self-contained synthetic runtime: one thread, one registry,
// one metaspace, one environment.
type World struct {
	Mem         *stack.Segment
	Thread      *frame.Thread
	Registry    *code.TableRegistry
	Metaspace   *Metaspace
	Env         *frame.Env
	Interpreter *code.Region
	CallStub    *code.Region
}

// NewWorld creates a world with the standard interpreter and call-stub
// regions registered and an empty stack.
func NewWorld() *World {
	start := StackBase.Add(-StackWords)
	mem := stack.NewSegment(start, StackWords)
	bounds := stack.Bounds{Base: StackBase, End: start, GuardWords: GuardWords}

	registry := code.NewTableRegistry()
	interp := registry.MustAdd(&code.Region{
		Name:                "interpreter",
		Kind:                code.KindInterpreter,
		Start:               InterpreterStart,
		Size:                InterpreterSize,
		FrameCompleteOffset: code.NotFrameComplete,
	})
	callStub := registry.MustAdd(&code.Region{
		Name:                "call_stub",
		Kind:                code.KindEntry,
		Start:               CallStubStart,
		Size:                CallStubSize,
		FrameCompleteOffset: 0,
	})

	ms := NewMetaspace()
	th := frame.NewThread(mem, bounds)
	env := &frame.Env{
		Code:        registry,
		Interpreter: interp,
		Metaspace:   ms,
		Heap: frame.HeapOracleFunc(func(ref frame.ObjRef) bool {
			return ref == 0 || (uint64(ref) >= HeapStart && uint64(ref) < HeapStart+HeapSize)
		}),
	}
	return &World{
		Mem:         mem,
		Thread:      th,
		Registry:    registry,
		Metaspace:   ms,
		Env:         env,
		Interpreter: interp,
		CallStub:    callStub,
	}
}

// AddOptimizedEntryRegion registers an optimized entry blob: a native
// callback boundary whose frame anchors are resolved through the
// environment's anchor source rather than a stack-resident call wrapper.
func (w *World) AddOptimizedEntryRegion(name string, start code.PC, frameSize int) *code.Region {
	return w.Registry.MustAdd(&code.Region{
		Name:                name,
		Kind:                code.KindOptimizedEntry,
		Start:               start,
		Size:                0x100,
		FrameSize:           frameSize,
		FrameCompleteOffset: 0,
	})
}

// AddCompiledRegion registers a compiled region with the standard deopt
// entry points at fixed offsets from its start.
func (w *World) AddCompiledRegion(name string, start code.PC, frameSize int, m *code.Method) *code.Region {
	return w.Registry.MustAdd(&code.Region{
		Name:                name,
		Kind:                code.KindCompiled,
		Start:               start,
		Size:                0x2000,
		FrameSize:           frameSize,
		FrameCompleteOffset: 0x20,
		Method:              m,
		DeoptEntry:          start + 0x1800,
		DeoptMHEntry:        start + 0x1880,
		DeoptHandler:        start + 0x1900,
		OrigPCSlotOffset:    1,
	})
}
