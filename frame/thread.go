package frame

import (
	"github.com/cloudcmds/framewalk/stack"
)

// CallWrapper is the record a call stub leaves on entry into managed
// code. It owns the frame anchor describing the managed frames above it.
type CallWrapper struct {
	anchor *Anchor
}

// NewCallWrapper creates a call wrapper around the given anchor.
func NewCallWrapper(anchor *Anchor) *CallWrapper {
	return &CallWrapper{anchor: anchor}
}

// Anchor returns the wrapper's frame anchor.
func (w *CallWrapper) Anchor() *Anchor { return w.anchor }

// Thread is the walker's view of one target thread: its stack memory,
// the bounds oracle for that memory, the call wrappers living on it, and
// the top-level anchor published at the last native transition.
//
// The walker takes no locks; when another thread's stack is walked the
// suspension protocol (out of scope here) must guarantee these fields
// are stable for the duration of the walk.
type Thread struct {
	Mem      *stack.Segment
	Bounds   stack.Bounds
	Anchor   *Anchor
	wrappers map[stack.Addr]*CallWrapper
}

// NewThread creates a thread over the given stack memory and bounds.
func NewThread(mem *stack.Segment, bounds stack.Bounds) *Thread {
	return &Thread{
		Mem:      mem,
		Bounds:   bounds,
		wrappers: map[stack.Addr]*CallWrapper{},
	}
}

// RegisterWrapper records the call wrapper living at the given stack
// address, so that entry frames can resolve their wrapper slot.
func (t *Thread) RegisterWrapper(addr stack.Addr, w *CallWrapper) {
	t.wrappers[addr] = w
}

// WrapperAt returns the call wrapper at the given address, or nil.
func (t *Thread) WrapperAt(addr stack.Addr) *CallWrapper {
	return t.wrappers[addr]
}

// HasLastFrame reports whether the thread's anchor records a managed frame.
func (t *Thread) HasLastFrame() bool {
	return t.Anchor != nil && t.Anchor.HasLastFrame()
}

// LastFrame reconstructs the thread's newest managed frame from its
// anchor, capturing the anchor pc first if needed. Reports false when the
// thread has no managed frames.
func (t *Thread) LastFrame(env *Env) (Frame, bool) {
	if !t.HasLastFrame() {
		return Frame{}, false
	}
	if !t.Anchor.Walkable() {
		t.Anchor.MakeWalkable(t.Mem)
	}
	sp := t.Anchor.LastSP()
	return New(t, env, sp, sp, t.Anchor.LastFP(), t.Anchor.LastPC()), true
}
