package frame

import (
	"github.com/cloudcmds/framewalk/stack"
)

// Register identifies an abstract callee-saved register whose spill
// location a walk may need to report to collaborators.
type Register uint8

const (
	RegFP Register = iota
	RegBX
	RegR12
	RegR13
	RegR14
	RegR15
)

// String returns a display name for the register.
func (r Register) String() string {
	switch r {
	case RegFP:
		return "fp"
	case RegBX:
		return "bx"
	case RegR12:
		return "r12"
	case RegR13:
		return "r13"
	case RegR14:
		return "r14"
	case RegR15:
		return "r15"
	default:
		return "reg?"
	}
}

// RegisterMap accumulates, over one walk, the stack locations where
// callee-saved registers were spilled. It is owned exclusively by its
// walk, is never shared, and is cleared at every entry-frame boundary
// because entry frames reset the tracked-register scope.
type RegisterMap struct {
	thread              *Thread
	locations           map[Register]stack.Addr
	includeArgumentOops bool
	walkCont            bool
	updateMap           bool
}

// NewRegisterMap creates a register map for one walk over the given
// thread. updateMap enables spill-location recording; walkCont makes the
// walk descend into continuation stacks at return barriers.
func NewRegisterMap(th *Thread, updateMap, walkCont bool) *RegisterMap {
	return &RegisterMap{
		thread:              th,
		locations:           map[Register]stack.Addr{},
		includeArgumentOops: true,
		walkCont:            walkCont,
		updateMap:           updateMap,
	}
}

// Thread returns the thread the map belongs to.
func (m *RegisterMap) Thread() *Thread { return m.thread }

// UpdateMap reports whether spill locations are being recorded.
func (m *RegisterMap) UpdateMap() bool { return m.updateMap }

// WalkCont reports whether the walk traverses continuation stacks.
func (m *RegisterMap) WalkCont() bool { return m.walkCont }

// IncludeArgumentOops reports whether argument oops are in scope.
func (m *RegisterMap) IncludeArgumentOops() bool { return m.includeArgumentOops }

// SetIncludeArgumentOops sets the argument-oops flag.
func (m *RegisterMap) SetIncludeArgumentOops(v bool) { m.includeArgumentOops = v }

// SetLocation records the stack address where a register was saved.
func (m *RegisterMap) SetLocation(r Register, addr stack.Addr) {
	m.locations[r] = addr
}

// Location returns the recorded save location for a register.
func (m *RegisterMap) Location(r Register) (stack.Addr, bool) {
	addr, ok := m.locations[r]
	return addr, ok
}

// Clear drops all recorded locations and restores the argument-oops
// default. Called when a walk crosses an entry frame.
func (m *RegisterMap) Clear() {
	for r := range m.locations {
		delete(m.locations, r)
	}
	m.includeArgumentOops = true
}
