package frame

import (
	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// Anchor is the boundary record published at a native-to-managed
// transition: the last managed (sp, fp, pc). The pc field completes
// lazily, exactly once. An anchor is walkable once its pc has been
// captured; capturing twice is a fatal invariant violation rather than a
// retry condition, because it means two writers raced on the anchor.
type Anchor struct {
	lastSP   stack.Addr
	lastFP   stack.Addr
	lastPC   code.PC
	captured bool
}

// NewAnchor creates an anchor. A non-zero pc marks the anchor already
// walkable; a zero pc leaves the capture pending.
func NewAnchor(sp, fp stack.Addr, pc code.PC) *Anchor {
	return &Anchor{lastSP: sp, lastFP: fp, lastPC: pc, captured: pc != 0}
}

// LastSP returns the recorded managed sp. Zero means no managed frames.
func (a *Anchor) LastSP() stack.Addr { return a.lastSP }

// LastFP returns the recorded managed fp.
func (a *Anchor) LastFP() stack.Addr { return a.lastFP }

// LastPC returns the recorded managed pc, valid only once walkable.
func (a *Anchor) LastPC() code.PC { return a.lastPC }

// HasLastFrame reports whether the anchor records a managed frame at all.
func (a *Anchor) HasLastFrame() bool { return a.lastSP != 0 }

// Walkable reports whether the pc has been captured.
func (a *Anchor) Walkable() bool { return a.captured }

// CapturePC completes the anchor by reading the return address stored in
// the word immediately below the recorded sp. At most once per anchor.
func (a *Anchor) CapturePC(mem *stack.Segment) {
	if a.lastSP == 0 {
		errz.Fatalf(errz.FaultAnchor, "pc capture on an anchor with no last frame")
	}
	if a.captured {
		errz.Fatalf(errz.FaultAnchor, "anchor pc already captured (pc=%#x)", uint64(a.lastPC))
	}
	a.lastPC = code.PC(mem.Word(a.lastSP.Add(-1)))
	a.captured = true
}

// MakeWalkable is the owner-thread entry point: it captures the pc if the
// anchor records a frame and is not already walkable. Idempotent.
func (a *Anchor) MakeWalkable(mem *stack.Segment) {
	if a.lastSP == 0 {
		return
	}
	if a.captured {
		return
	}
	a.CapturePC(mem)
}
