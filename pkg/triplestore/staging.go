package triplestore

import (
	"sort"
	"sync"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// Staging is the in-memory overlay of mutations not yet materialized
// into pages. It is shared across all six orderings: the multiset it
// represents is ordering-agnostic, only how it is merged into a scan
// differs per ordering.
type Staging struct {
	mu      sync.RWMutex
	added   map[types.EncodedTriple]struct{}
	deleted map[types.EncodedTriple]struct{}
}

// NewStaging builds an empty overlay.
func NewStaging() *Staging {
	return &Staging{
		added:   make(map[types.EncodedTriple]struct{}),
		deleted: make(map[types.EncodedTriple]struct{}),
	}
}

// Add records t as newly present. If t was tombstoned (a delete of an
// already-paged triple) the tombstone is cleared: re-adding cancels a
// pending delete instead of stacking a contradictory state.
func (s *Staging) Add(t types.EncodedTriple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleted, t)
	s.added[t] = struct{}{}
}

// Del records t as removed. If t was only ever added in this staging
// window (never yet paged), the add is simply undone — no tombstone is
// needed because the paged view never had it to begin with. Otherwise a
// tombstone suppresses it from the paged view until compaction purges
// the underlying page.
func (s *Staging) Del(t types.EncodedTriple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, wasAdded := s.added[t]; wasAdded {
		delete(s.added, t)
		return
	}
	s.deleted[t] = struct{}{}
}

// Tombstoned reports whether t is deleted-but-possibly-still-paged.
func (s *Staging) Tombstoned(t types.EncodedTriple) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleted[t]
	return ok
}

// Matching returns every added triple matching criteria, sorted for the
// given ordering so it can be merged against a paged scan.
func (s *Staging) Matching(ordering types.Ordering, criteria types.Criteria) []types.EncodedTriple {
	s.mu.RLock()
	out := make([]types.EncodedTriple, 0, len(s.added))
	for t := range s.added {
		if criteria.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return ordering.Less(out[i], out[j]) })
	return out
}

// Len reports the total number of staged mutations (adds + tombstones),
// the size the backpressure policy measures against its threshold.
func (s *Staging) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.added) + len(s.deleted)
}

// Snapshot seals and returns the current added/deleted sets for
// compaction to materialize, and clears this Staging for new writes.
// The caller (compaction) owns the returned sets exclusively.
func (s *Staging) Snapshot() (added, deleted map[types.EncodedTriple]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added, deleted = s.added, s.deleted
	s.added = make(map[types.EncodedTriple]struct{})
	s.deleted = make(map[types.EncodedTriple]struct{})
	return added, deleted
}

// Clone returns an independent copy of the current added/deleted sets,
// leaving this Staging untouched — unlike Snapshot, which seals and
// clears it for compaction. Used to freeze the overlay for a read-only
// point-in-time view while writers keep staging into the original.
func (s *Staging) Clone() *Staging {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Staging{
		added:   make(map[types.EncodedTriple]struct{}, len(s.added)),
		deleted: make(map[types.EncodedTriple]struct{}, len(s.deleted)),
	}
	for t := range s.added {
		clone.added[t] = struct{}{}
	}
	for t := range s.deleted {
		clone.deleted[t] = struct{}{}
	}
	return clone
}
