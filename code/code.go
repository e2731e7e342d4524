// Package code describes generated machine-code regions and the registry
// that maps program counters to them. The walker consults this metadata
// to classify frames; it never allocates or mutates code memory.
package code

// PC is an address within generated code. Code addresses and stack
// addresses live in different address spaces and are distinct types.
type PC uint64

// Kind classifies a code region. The set is closed: frame classification
// switches over it exhaustively and an unknown kind is a defect, not a
// fallthrough.
type Kind uint8

const (
	KindInvalid        Kind = 0
	KindInterpreter    Kind = 1 // interpreter codelets
	KindCompiled       Kind = 2 // JIT-compiled method
	KindEntry          Kind = 3 // call stub: native -> managed trampoline
	KindOptimizedEntry Kind = 4 // optimized native callback boundary
	KindAdapter        Kind = 5 // calling-convention adapter
	KindRuntimeStub    Kind = 6 // runtime support stub
	KindBlob           Kind = 7 // generic buffer blob
)

// String returns a display name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInterpreter:
		return "interpreter"
	case KindCompiled:
		return "compiled"
	case KindEntry:
		return "entry"
	case KindOptimizedEntry:
		return "optimized-entry"
	case KindAdapter:
		return "adapter"
	case KindRuntimeStub:
		return "runtime-stub"
	case KindBlob:
		return "blob"
	default:
		return "invalid"
	}
}

// Region is the read-only metadata for one contiguous span of generated
// code. FrameSize is in words and is meaningful only for fixed-size
// (compiled and stub) frames. FrameCompleteOffset is the instruction
// offset at which the region's frame is fully constructed; NotFrameComplete
// means the region never declares completeness.
type Region struct {
	Name                string
	Kind                Kind
	Start               PC
	Size                uint64
	FrameSize           int
	FrameCompleteOffset int
	Zombie              bool
	Unloaded            bool
	Method              *Method

	// Deoptimization classification, compiled regions only. Zero values
	// mean the region has no such entry point.
	DeoptEntry   PC
	DeoptMHEntry PC
	DeoptHandler PC

	// OrigPCSlotOffset is the slot, in words relative to a frame's
	// unextended sp, where the original pc is stashed once the frame's
	// return address has been redirected to the deopt handler.
	OrigPCSlotOffset int
}

// NotFrameComplete marks a region that never becomes frame-complete.
const NotFrameComplete = -1

// Contains reports whether pc lies within the region's code span.
func (r *Region) Contains(pc PC) bool {
	return pc >= r.Start && pc < r.Start+PC(r.Size)
}

// FrameCompleteAt reports whether the region's frame is fully constructed
// at pc. A pc before the completion offset is mid-prologue.
func (r *Region) FrameCompleteAt(pc PC) bool {
	if r.FrameCompleteOffset == NotFrameComplete {
		return false
	}
	return r.Contains(pc) && pc >= r.Start+PC(r.FrameCompleteOffset)
}

func (r *Region) IsInterpreter() bool    { return r.Kind == KindInterpreter }
func (r *Region) IsCompiled() bool       { return r.Kind == KindCompiled }
func (r *Region) IsEntry() bool          { return r.Kind == KindEntry }
func (r *Region) IsOptimizedEntry() bool { return r.Kind == KindOptimizedEntry }
func (r *Region) IsAdapter() bool        { return r.Kind == KindAdapter }
func (r *Region) IsRuntimeStub() bool    { return r.Kind == KindRuntimeStub }

// IsDeoptEntry reports whether pc is the region's deoptimization entry.
func (r *Region) IsDeoptEntry(pc PC) bool {
	return r.DeoptEntry != 0 && pc == r.DeoptEntry
}

// IsDeoptMHEntry reports whether pc is the region's method-handle
// deoptimization entry.
func (r *Region) IsDeoptMHEntry(pc PC) bool {
	return r.DeoptMHEntry != 0 && pc == r.DeoptMHEntry
}

// IsDeoptPC reports whether pc is inside the region's deoptimization
// handler, meaning the frame's physical return address has been patched
// and the original pc lives in the frame's original-pc slot.
func (r *Region) IsDeoptPC(pc PC) bool {
	return r.DeoptHandler != 0 && pc == r.DeoptHandler
}
