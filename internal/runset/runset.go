// Package runset maintains the multiset of on-disk run identifiers ordered
// by (level ASC, seq DESC), so the two smallest elements are always the
// leveled merge stage's next candidate pair. Implemented as a hand-rolled,
// allocation-free kept-sorted slice rather than a binary heap or
// container/heap (which boxes via interface{}), since the set stays small
// enough in practice that insertion's O(n) shift never shows up.
package runset

import (
	"sort"

	"github.com/entreya/extsort/internal/runfile"
)

// Set is the ordered collection of run identifiers currently on disk.
// Not safe for concurrent use — the manager goroutine is its sole owner.
type Set struct {
	ids []runfile.ID
}

// Less reports whether a sorts before b under the set's (level ASC, seq
// DESC) ordering.
func Less(a, b runfile.ID) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	return a.Seq > b.Seq
}

// Insert adds id to the set, keeping it sorted.
func (s *Set) Insert(id runfile.ID) {
	i := sort.Search(len(s.ids), func(i int) bool { return Less(id, s.ids[i]) || id == s.ids[i] })
	s.ids = append(s.ids, runfile.ID{})
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
}

// Len reports how many run identifiers are currently tracked.
func (s *Set) Len() int { return len(s.ids) }

// Smallest returns the two smallest elements (in set order) without
// removing them. ok is false if fewer than two elements are present.
func (s *Set) Smallest() (first, second runfile.ID, ok bool) {
	if len(s.ids) < 2 {
		return runfile.ID{}, runfile.ID{}, false
	}
	return s.ids[0], s.ids[1], true
}

// PopSmallest removes and returns the single smallest element. ok is false
// if the set is empty.
func (s *Set) PopSmallest() (id runfile.ID, ok bool) {
	if len(s.ids) == 0 {
		return runfile.ID{}, false
	}
	id = s.ids[0]
	s.ids = s.ids[1:]
	return id, true
}

// PopTwoSmallest removes and returns the two smallest elements. ok is
// false (and nothing is removed) if fewer than two elements are present.
func (s *Set) PopTwoSmallest() (first, second runfile.ID, ok bool) {
	if len(s.ids) < 2 {
		return runfile.ID{}, runfile.ID{}, false
	}
	first, second = s.ids[0], s.ids[1]
	s.ids = s.ids[2:]
	return first, second, true
}

// IDs returns a snapshot copy of the tracked identifiers in set order, for
// diagnostics (e.g. a final sanity sweep during drain).
func (s *Set) IDs() []runfile.ID {
	out := make([]runfile.ID, len(s.ids))
	copy(out, s.ids)
	return out
}
