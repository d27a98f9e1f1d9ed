package labelstore

import (
	"sync"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// Store maps nodes to label sets and maintains the inverted
// label -> node-set index.
type Store struct {
	mu       sync.RWMutex
	labels   map[types.AtomID]types.LabelSet
	postings map[string]map[types.AtomID]struct{}
}

// New builds an empty label store.
func New() *Store {
	return &Store{
		labels:   make(map[types.AtomID]types.LabelSet),
		postings: make(map[string]map[types.AtomID]struct{}),
	}
}

// SetLabels replaces id's label set wholesale, reindexing the diff.
func (s *Store) SetLabels(id types.AtomID, labels types.LabelSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.labels[id]; ok {
		for l := range old {
			s.unindex(l, id)
		}
	}
	cloned := make(types.LabelSet, len(labels))
	for l := range labels {
		cloned[l] = struct{}{}
		s.index(l, id)
	}
	s.labels[id] = cloned
}

// GetLabels returns id's current label set.
func (s *Store) GetLabels(id types.AtomID) types.LabelSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(types.LabelSet, len(s.labels[id]))
	for l := range s.labels[id] {
		out[l] = struct{}{}
	}
	return out
}

// FindByLabel returns every node carrying labels per mode: LabelMatchAny
// is the union of each label's posting set, LabelMatchAll is their
// intersection.
func (s *Store) FindByLabel(mode types.LabelMatchMode, labels ...string) []types.AtomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(labels) == 0 {
		return nil
	}

	if mode == types.LabelMatchAny {
		seen := make(map[types.AtomID]struct{})
		for _, l := range labels {
			for id := range s.postings[l] {
				seen[id] = struct{}{}
			}
		}
		return setToSlice(seen)
	}

	first, ok := s.postings[labels[0]]
	if !ok {
		return nil
	}
	result := make(map[types.AtomID]struct{}, len(first))
	for id := range first {
		result[id] = struct{}{}
	}
	for _, l := range labels[1:] {
		posting := s.postings[l]
		for id := range result {
			if _, ok := posting[id]; !ok {
				delete(result, id)
			}
		}
	}
	return setToSlice(result)
}

// Snapshot returns an independent Store holding a deep copy of every
// label set as of this instant, built by replaying entries through
// SetLabels so the new store's postings are populated the same way a
// live one would be. A later SetLabels on s is never visible through
// the result.
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := New()
	for id, labels := range s.labels {
		out.SetLabels(id, labels)
	}
	return out
}

func (s *Store) index(label string, id types.AtomID) {
	set, ok := s.postings[label]
	if !ok {
		set = make(map[types.AtomID]struct{})
		s.postings[label] = set
	}
	set[id] = struct{}{}
}

func (s *Store) unindex(label string, id types.AtomID) {
	set, ok := s.postings[label]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.postings, label)
	}
}

func setToSlice(set map[types.AtomID]struct{}) []types.AtomID {
	out := make([]types.AtomID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
