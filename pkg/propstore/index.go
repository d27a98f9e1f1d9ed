package propstore

import (
	"sort"
	"sync"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// Op names a property-index range predicate.
type Op uint8

const (
	OpEq Op = iota
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpBetween
)

type posting[K comparable] struct {
	value types.Value
	ids   map[K]struct{}
}

// Index is the (key, value) -> set<K> inverted index backing property
// pushdown. Postings for a key are kept sorted by value; Query still
// visits every posting of the key to evaluate a predicate.
type Index[K comparable] struct {
	mu    sync.RWMutex
	byKey map[string][]*posting[K]
}

// NewIndex builds an empty inverted index.
func NewIndex[K comparable]() *Index[K] {
	return &Index[K]{byKey: make(map[string][]*posting[K])}
}

// indexable reports whether v's kind is eligible for the inverted
// index — the spec indexes all primitive-typed values by default;
// List/Map are structural and excluded.
func indexable(v types.Value) bool {
	switch v.Kind {
	case types.KindBool, types.KindInt, types.KindFloat, types.KindString:
		return true
	default:
		return false
	}
}

// Add records id under (key, v). A no-op if v is not indexable.
func (idx *Index[K]) Add(key string, v types.Value, id K) {
	if !indexable(v) {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	postings := idx.byKey[key]
	for _, p := range postings {
		if p.value.Equal(v) {
			p.ids[id] = struct{}{}
			return
		}
	}
	p := &posting[K]{value: v, ids: map[K]struct{}{id: {}}}
	postings = append(postings, p)
	sort.Slice(postings, func(i, j int) bool {
		less, ok := postings[i].value.Less(postings[j].value)
		return ok && less
	})
	idx.byKey[key] = postings
}

// Remove drops id from (key, v)'s posting, pruning the posting itself
// once empty.
func (idx *Index[K]) Remove(key string, v types.Value, id K) {
	if !indexable(v) {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	postings := idx.byKey[key]
	for i, p := range postings {
		if p.value.Equal(v) {
			delete(p.ids, id)
			if len(p.ids) == 0 {
				idx.byKey[key] = append(postings[:i], postings[i+1:]...)
			}
			return
		}
	}
}

// Query evaluates op against values for key, returning the matching id set.
func (idx *Index[K]) Query(key string, op Op, values ...types.Value) []K {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	postings := idx.byKey[key]

	seen := make(map[K]struct{})
	add := func(p *posting[K]) {
		for id := range p.ids {
			seen[id] = struct{}{}
		}
	}

	switch op {
	case OpEq:
		for _, p := range postings {
			if len(values) > 0 && p.value.Equal(values[0]) {
				add(p)
			}
		}
	case OpIn:
		for _, p := range postings {
			for _, v := range values {
				if p.value.Equal(v) {
					add(p)
					break
				}
			}
		}
	case OpLt, OpLte, OpGt, OpGte:
		if len(values) == 0 {
			break
		}
		bound := values[0]
		for _, p := range postings {
			less, ok := p.value.Less(bound)
			if !ok {
				continue
			}
			eq := p.value.Equal(bound)
			switch op {
			case OpLt:
				if less {
					add(p)
				}
			case OpLte:
				if less || eq {
					add(p)
				}
			case OpGt:
				if !less && !eq {
					add(p)
				}
			case OpGte:
				if !less || eq {
					add(p)
				}
			}
		}
	case OpBetween:
		if len(values) < 2 {
			break
		}
		lo, hi := values[0], values[1]
		for _, p := range postings {
			loLess, ok1 := lo.Less(p.value)
			hiLess, ok2 := p.value.Less(hi)
			if !ok1 || !ok2 {
				continue
			}
			if (loLess || lo.Equal(p.value)) && (hiLess || p.value.Equal(hi)) {
				add(p)
			}
		}
	}

	out := make([]K, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Entries returns every (key, value, id) triple currently indexed, for
// persistence.
func (idx *Index[K]) Entries() []IndexEntry[K] {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []IndexEntry[K]
	for key, postings := range idx.byKey {
		for _, p := range postings {
			for id := range p.ids {
				out = append(out, IndexEntry[K]{Key: key, Value: p.value, ID: id})
			}
		}
	}
	return out
}

// IndexEntry is one persisted posting-list membership.
type IndexEntry[K comparable] struct {
	Key   string
	Value types.Value
	ID    K
}
