package code

import "fmt"

// Registry maps a program counter to the code region that owns it.
// Implementations are read-only from the walker's perspective.
type Registry interface {
	// FindRegion returns the region containing pc, or nil when pc is not
	// in any registered code region (a native pc).
	FindRegion(pc PC) *Region
}

// TableRegistry is a deterministic Registry backed by a flat table. All
// registration happens before any walking begins, so lookups require no
// synchronization.
type TableRegistry struct {
	regions []*Region
}

// NewTableRegistry creates an empty TableRegistry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{}
}

// Add registers a region. The span must be non-empty and must not overlap
// an existing region.
func (t *TableRegistry) Add(r *Region) error {
	if r.Size == 0 {
		return fmt.Errorf("region %q has an empty code span", r.Name)
	}
	for _, existing := range t.regions {
		if r.Start < existing.Start+PC(existing.Size) && existing.Start < r.Start+PC(r.Size) {
			return fmt.Errorf("region %q overlaps region %q", r.Name, existing.Name)
		}
	}
	t.regions = append(t.regions, r)
	return nil
}

// MustAdd registers a region and panics on error. Intended for fixtures
// and tool setup where an overlap is a programming mistake.
func (t *TableRegistry) MustAdd(r *Region) *Region {
	if err := t.Add(r); err != nil {
		panic(err)
	}
	return r
}

// FindRegion returns the region containing pc, or nil.
func (t *TableRegistry) FindRegion(pc PC) *Region {
	for _, r := range t.regions {
		if r.Contains(pc) {
			return r
		}
	}
	return nil
}

// Regions returns the registered regions.
func (t *TableRegistry) Regions() []*Region {
	return t.regions
}
