package collector

import (
	"sort"
	"strings"
)

// Snapshot is the deduplicated identifier set produced by one accepted pass.
// It is never persisted.
type Snapshot struct {
	ids map[string]struct{}

	// Expected is the total the source advertised
	Expected int
	// Quality is len/Expected, 1 for an empty expectation
	Quality float64
	// Passes is the number of passes it took, 0 when short-circuited
	Passes int
}

// NewSnapshot builds a snapshot from raw identifiers, collapsing duplicates
// and dropping blanks.
func NewSnapshot(identifiers []string) *Snapshot {
	s := &Snapshot{ids: make(map[string]struct{}, len(identifiers))}
	for _, id := range identifiers {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s.ids[id] = struct{}{}
	}
	return s
}

// Len returns the number of unique identifiers
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Contains reports whether id is part of the snapshot
func (s *Snapshot) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Identifiers returns the identifiers in sorted order
func (s *Snapshot) Identifiers() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
