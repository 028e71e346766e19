// Package fixes holds the set of active fixes of a running instrumented
// process. The set is keyed by fix ID; adding an existing ID replaces it
// and removing an absent ID does nothing.
package fixes

import (
	"fmt"
	"sort"
	"sync"
)

// Fix is one installed patch unit.
type Fix struct {
	ID        int
	Extension string
}

func (f Fix) String() string {
	return fmt.Sprintf("%d\t%s", f.ID, f.Extension)
}

// Applier is the update engine side of the set. Apply is called before a
// fix is recorded and Revert before one is removed; an error from either
// leaves the set unchanged.
type Applier interface {
	Apply(fix Fix) error
	Revert(fix Fix) error
}

// Set is a concurrency-safe fix set. The zero value is ready to use.
type Set struct {
	mu      sync.RWMutex
	fixes   map[int]Fix
	applier Applier
}

// NewSet creates an empty set. applier may be nil.
func NewSet(applier Applier) *Set {
	return &Set{
		fixes:   make(map[int]Fix),
		applier: applier,
	}
}

// Add installs fix, replacing any fix with the same ID. It reports
// whether a previous fix was replaced.
func (s *Set) Add(fix Fix) (replaced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fixes == nil {
		s.fixes = make(map[int]Fix)
	}

	if s.applier != nil {
		if err := s.applier.Apply(fix); err != nil {
			return false, fmt.Errorf("apply fix %d: %w", fix.ID, err)
		}
	}

	_, replaced = s.fixes[fix.ID]
	s.fixes[fix.ID] = fix
	return replaced, nil
}

// Remove deletes the fix with the given ID. It reports whether a fix was
// present; removing an absent ID is not an error.
func (s *Set) Remove(id int) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fix, ok := s.fixes[id]
	if !ok {
		return false, nil
	}

	if s.applier != nil {
		if err := s.applier.Revert(fix); err != nil {
			return false, fmt.Errorf("revert fix %d: %w", id, err)
		}
	}

	delete(s.fixes, id)
	return true, nil
}

// Get returns the fix with the given ID.
func (s *Set) Get(id int) (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fix, ok := s.fixes[id]
	return fix, ok
}

// List returns the installed fixes ordered by ID.
func (s *Set) List() []Fix {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Fix, 0, len(s.fixes))
	for _, fix := range s.fixes {
		out = append(out, fix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of installed fixes.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fixes)
}
