package propstore

import (
	"sync"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// NodeStore holds per-node property maps plus their inverted index.
type NodeStore struct {
	mu    sync.RWMutex
	props map[types.AtomID]types.PropertyMap
	index *Index[types.AtomID]
}

// NewNodeStore builds an empty node property store.
func NewNodeStore() *NodeStore {
	return &NodeStore{
		props: make(map[types.AtomID]types.PropertyMap),
		index: NewIndex[types.AtomID](),
	}
}

// Set replaces id's property map wholesale, reindexing the diff.
func (s *NodeStore) Set(id types.AtomID, m types.PropertyMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.props[id]; ok {
		for k, v := range old {
			s.index.Remove(k, v, id)
		}
	}
	cloned := m.Clone()
	s.props[id] = cloned
	for k, v := range cloned {
		s.index.Add(k, v, id)
	}
}

// Get returns id's property map, if any.
func (s *NodeStore) Get(id types.AtomID) (types.PropertyMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.props[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Query resolves a pushdown predicate against the inverted index,
// returning candidate node IDs without touching any property map.
func (s *NodeStore) Query(key string, op Op, values ...types.Value) []types.AtomID {
	return s.index.Query(key, op, values...)
}

// Snapshot returns an independent NodeStore holding a deep copy of every
// property map as of this instant, built by replaying entries through
// Set so the new store's index is populated the same way a live one
// would be. A later Set on s is never visible through the result.
func (s *NodeStore) Snapshot() *NodeStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewNodeStore()
	for id, m := range s.props {
		out.Set(id, m)
	}
	return out
}

// EdgeStore holds per-edge (triple-key) property maps plus their
// inverted index.
type EdgeStore struct {
	mu    sync.RWMutex
	props map[types.EncodedTriple]types.PropertyMap
	index *Index[types.EncodedTriple]
}

// NewEdgeStore builds an empty edge property store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		props: make(map[types.EncodedTriple]types.PropertyMap),
		index: NewIndex[types.EncodedTriple](),
	}
}

// Set replaces key's property map wholesale, reindexing the diff.
func (s *EdgeStore) Set(key types.EncodedTriple, m types.PropertyMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.props[key]; ok {
		for k, v := range old {
			s.index.Remove(k, v, key)
		}
	}
	cloned := m.Clone()
	s.props[key] = cloned
	for k, v := range cloned {
		s.index.Add(k, v, key)
	}
}

// Get returns key's property map, if any.
func (s *EdgeStore) Get(key types.EncodedTriple) (types.PropertyMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.props[key]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Query resolves a pushdown predicate against the inverted index,
// returning candidate triple keys without touching any property map.
func (s *EdgeStore) Query(key string, op Op, values ...types.Value) []types.EncodedTriple {
	return s.index.Query(key, op, values...)
}

// Snapshot returns an independent EdgeStore holding a deep copy of every
// property map as of this instant, built by replaying entries through
// Set so the new store's index is populated the same way a live one
// would be. A later Set on s is never visible through the result.
func (s *EdgeStore) Snapshot() *EdgeStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewEdgeStore()
	for key, m := range s.props {
		out.Set(key, m)
	}
	return out
}
