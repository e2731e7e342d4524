// Package stack models a thread's machine stack as a bounds-checked,
// word-granular byte range, together with the per-thread bounds oracle
// used to decide whether an address may be trusted before it is read.
package stack

import (
	"github.com/cloudcmds/framewalk/errz"
)

const (
	// WordSize is the size of one stack slot in bytes. Only the 64-bit
	// layout is supported.
	WordSize = 8
)

// Addr is a byte address within a thread's stack. Stack addresses and
// code addresses live in different address spaces and are deliberately
// distinct types.
type Addr uint64

// Word is the contents of one stack slot.
type Word uint64

// Aligned reports whether the address is word aligned.
func (a Addr) Aligned() bool {
	return a%WordSize == 0
}

// Add returns the address offset by the given number of words. Negative
// offsets move toward the top of the stack (lower addresses).
func (a Addr) Add(words int) Addr {
	return Addr(int64(a) + int64(words)*WordSize)
}

// Segment is a contiguous span of stack memory. The stack grows downward:
// Start is the lowest mapped address and End is one past the highest.
// Accessors assert range and alignment; a violation panics with a bounds
// fault because it means the walker computed an address it had no right
// to dereference.
type Segment struct {
	start Addr
	words []Word
}

// NewSegment creates a segment of n words starting at the given address.
func NewSegment(start Addr, n int) *Segment {
	if !start.Aligned() {
		errz.Fatalf(errz.FaultBounds, "segment start %#x is not word aligned", uint64(start))
	}
	return &Segment{start: start, words: make([]Word, n)}
}

// Start returns the lowest address of the segment.
func (s *Segment) Start() Addr {
	return s.start
}

// End returns one past the highest address of the segment.
func (s *Segment) End() Addr {
	return s.start.Add(len(s.words))
}

// Size returns the segment size in words.
func (s *Segment) Size() int {
	return len(s.words)
}

// Contains reports whether the address names a readable, aligned slot.
func (s *Segment) Contains(a Addr) bool {
	return a.Aligned() && a >= s.start && a < s.End()
}

func (s *Segment) index(a Addr) int {
	return int((a - s.start) / WordSize)
}

// Word reads the slot at the given address. The address must be a valid
// aligned slot within the segment.
func (s *Segment) Word(a Addr) Word {
	if !s.Contains(a) {
		panic(errz.Newf(errz.FaultBounds, "read of %#x outside stack segment [%#x, %#x)",
			uint64(a), uint64(s.start), uint64(s.End())))
	}
	return s.words[s.index(a)]
}

// TryWord reads the slot at the given address, reporting false instead of
// panicking when the address is not a valid slot. Advisory validators use
// this so that a questionable address is a verdict, not a crash.
func (s *Segment) TryWord(a Addr) (Word, bool) {
	if !s.Contains(a) {
		return 0, false
	}
	return s.words[s.index(a)], true
}

// SetWord writes the slot at the given address. The address must be a
// valid aligned slot within the segment.
func (s *Segment) SetWord(a Addr, w Word) {
	if !s.Contains(a) {
		panic(errz.Newf(errz.FaultBounds, "write of %#x outside stack segment [%#x, %#x)",
			uint64(a), uint64(s.start), uint64(s.End())))
	}
	s.words[s.index(a)] = w
}
