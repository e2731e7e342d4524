package stack

// Bounds is the per-thread stack-bounds oracle. Base is one past the
// highest usable word (the stack bottom) and End is the lowest mapped
// address. The GuardWords slots starting at End are guard memory: mapped,
// but never valid for a trusted frame.
//
// The range predicates mirror the conventions of a downward-growing
// stack: an address is "in range" when it lies below Base and at (or
// above, for the exclusive forms) the given limit.
type Bounds struct {
	Base       Addr
	End        Addr
	GuardWords int
}

// UsableLimit returns the lowest address outside the guard region.
func (b Bounds) UsableLimit() Addr {
	return b.End.Add(b.GuardWords)
}

// InStackRangeIncl reports whether addr lies within [limit, Base).
func (b Bounds) InStackRangeIncl(addr, limit Addr) bool {
	return addr < b.Base && addr >= limit
}

// InStackRangeExcl reports whether addr lies within (limit, Base).
func (b Bounds) InStackRangeExcl(addr, limit Addr) bool {
	return addr < b.Base && addr > limit
}

// InFullStack reports whether addr lies anywhere in mapped stack memory,
// guard region included.
func (b Bounds) InFullStack(addr Addr) bool {
	return b.InStackRangeIncl(addr, b.End)
}

// InUsableStack reports whether addr lies in stack memory that is valid
// for a trusted frame, i.e. outside the guard region.
func (b Bounds) InUsableStack(addr Addr) bool {
	return b.InStackRangeIncl(addr, b.UsableLimit())
}

// InGuard reports whether addr lies in the guard region.
func (b Bounds) InGuard(addr Addr) bool {
	return addr >= b.End && addr < b.UsableLimit()
}
