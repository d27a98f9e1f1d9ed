package triplestore

import (
	"fmt"
	"sort"

	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Store owns all six orderings over one triple set plus the staging
// overlay shared between them. It is the unit a snapshot epoch opens
// and a compaction cycle rewrites.
type Store struct {
	baseDir string
	cache   *pages.Cache
	indexes [6]*PagedIndex
	staging *Staging
}

// Open builds a Store rooted at baseDir sharing one page cache across
// all six orderings, with an empty staging overlay.
func Open(baseDir string, cache *pages.Cache) *Store {
	s := &Store{baseDir: baseDir, cache: cache, staging: NewStaging()}
	for _, o := range types.AllOrderings() {
		s.indexes[o] = NewPagedIndex(o, baseDir, cache)
	}
	return s
}

// OpenFromDescriptors restores each ordering's page directory from a
// manifest's per-ordering descriptor lists.
func (s *Store) OpenFromDescriptors(byOrdering map[types.Ordering][]pages.Descriptor) {
	for _, o := range types.AllOrderings() {
		s.indexes[o].OpenFromDescriptors(byOrdering[o])
	}
}

// Descriptors returns the current page directory for every ordering,
// for a manifest writer to persist.
func (s *Store) Descriptors() map[types.Ordering][]pages.Descriptor {
	out := make(map[types.Ordering][]pages.Descriptor, 6)
	for _, o := range types.AllOrderings() {
		out[o] = s.indexes[o].Descriptors()
	}
	return out
}

// Staging returns the shared mutation overlay.
func (s *Store) Staging() *Staging { return s.staging }

// Snapshot returns an independent Store frozen at this instant: each
// ordering's page directory is copied (the underlying page files
// themselves are immutable until the next Materialize, so sharing the
// cache is safe) and the staging overlay is cloned rather than shared,
// so a write committed to s after this call never becomes visible
// through the returned Store.
func (s *Store) Snapshot() *Store {
	snap := &Store{baseDir: s.baseDir, cache: s.cache, staging: s.staging.Clone()}
	for _, o := range types.AllOrderings() {
		idx := NewPagedIndex(o, s.baseDir, s.cache)
		idx.OpenFromDescriptors(s.indexes[o].Descriptors())
		snap.indexes[o] = idx
	}
	return snap
}

// Add stages t as present.
func (s *Store) Add(t types.EncodedTriple) { s.staging.Add(t) }

// Del stages t as removed.
func (s *Store) Del(t types.EncodedTriple) { s.staging.Del(t) }

// Scan opens a merged, tombstone-aware iterator over criteria using
// whichever ordering the spec's planner table selects.
func (s *Store) Scan(criteria types.Criteria) (*Iterator, error) {
	ordering := criteria.BestOrdering()
	return s.indexes[ordering].Scan(criteria, s.staging)
}

// PrimaryValues returns the distinct bound-component values matching
// criteria, via whichever ordering the planner selects.
func (s *Store) PrimaryValues(criteria types.Criteria) ([]types.AtomID, error) {
	ordering := criteria.BestOrdering()
	return s.indexes[ordering].PrimaryValues(criteria, s.staging)
}

// Materialize seals the staging overlay and rewrites every ordering's
// page directory to reflect (existing pages minus tombstones) plus
// adds, returning the new descriptors per ordering. It is compaction's
// single entry point into this package; compaction itself owns GC of
// superseded page files and manifest publication.
func (s *Store) Materialize(capacity int, codec pages.Codec, level int) (map[types.Ordering][]pages.Descriptor, error) {
	added, deleted := s.staging.Snapshot()

	base, err := s.allTriples(deleted)
	if err != nil {
		return nil, err
	}
	for t := range added {
		if _, gone := deleted[t]; !gone {
			base = append(base, t)
		}
	}

	out := make(map[types.Ordering][]pages.Descriptor, 6)
	for _, o := range types.AllOrderings() {
		sorted := append([]types.EncodedTriple(nil), base...)
		sort.Slice(sorted, func(i, j int) bool { return o.Less(sorted[i], sorted[j]) })
		descs, err := s.indexes[o].WritePages(sorted, capacity, codec, level)
		if err != nil {
			return nil, fmt.Errorf("triplestore: materializing %s: %w", o, err)
		}
		out[o] = descs
	}
	return out, nil
}

// allTriples reads every currently paged triple via the SPO ordering,
// excluding anything in deleted, as the base set for a rewrite.
func (s *Store) allTriples(deleted map[types.EncodedTriple]struct{}) ([]types.EncodedTriple, error) {
	it, err := s.indexes[types.SPO].Scan(types.Criteria{}, nil)
	if err != nil {
		return nil, err
	}
	defer it.Cancel()
	var out []types.EncodedTriple
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		if _, gone := deleted[t]; gone {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
