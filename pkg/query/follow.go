package query

import (
	"context"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// Follow scans, for each id in the current frontier, triples with
// subject=id, predicate=p, and yields their objects as the new
// frontier. Follow steps fuse into the same streaming pipeline as the
// step that produced the frontier; nothing before the terminal step is
// materialized for the caller.
func (b *Builder) Follow(p types.AtomID) *Builder {
	b.steps = append(b.steps, func(ctx context.Context, frontier []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		return b.engine.expand(ctx, frontier, p, false)
	})
	b.anchor = types.AnchorObject
	return b
}

// FollowReverse is symmetric to Follow on the object side: for each id
// in the current frontier, it scans triples with object=id,
// predicate=p, and yields their subjects as the new frontier.
func (b *Builder) FollowReverse(p types.AtomID) *Builder {
	b.steps = append(b.steps, func(ctx context.Context, frontier []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		return b.engine.expand(ctx, frontier, p, true)
	})
	b.anchor = types.AnchorSubject
	return b
}

// expand scans one predicate hop from every id in frontier, either
// forward (subject bound) or reverse (object bound).
func (e *Engine) expand(ctx context.Context, frontier []types.AtomID, p types.AtomID, reverse bool) ([]FactRecord, []types.AtomID, error) {
	var records []FactRecord
	var next []types.AtomID
	seen := make(map[types.AtomID]struct{})
	for _, id := range frontier {
		select {
		case <-ctx.Done():
			return records, next, ctx.Err()
		default:
		}
		var criteria types.Criteria
		pred := p
		if reverse {
			criteria = types.Criteria{Object: &id, Predicate: &pred}
		} else {
			criteria = types.Criteria{Subject: &id, Predicate: &pred}
		}
		it, err := e.Triples.Scan(criteria)
		if err != nil {
			return nil, nil, err
		}
		for {
			t, ok := it.Next()
			if !ok {
				break
			}
			records = append(records, FactRecord{Triple: t, nodeProps: e.NodeProps, edgeProps: e.EdgeProps})
			nextID := t.O
			if reverse {
				nextID = t.S
			}
			if _, dup := seen[nextID]; !dup {
				seen[nextID] = struct{}{}
				next = append(next, nextID)
			}
		}
		it.Cancel()
	}
	return records, next, nil
}

// PathUniqueness selects how variablePath deduplicates within one walk.
type PathUniqueness uint8

const (
	// UniquenessNodeGlobal forbids revisiting any node across the
	// entire expansion, the strictest and cheapest-to-implement mode.
	UniquenessNodeGlobal PathUniqueness = iota
	// UniquenessNone allows revisiting nodes; only the hop bound
	// prevents infinite expansion.
	UniquenessNone
)

// VariablePathOptions configures a variable-length hop expansion.
type VariablePathOptions struct {
	Min, Max   int
	Uniqueness PathUniqueness
	Reverse    bool
}

// VariablePathTrace records one reached node and the edge sequence that
// reached it.
type VariablePathTrace struct {
	Node  types.AtomID
	Edges []types.EncodedTriple
}

// VariablePath performs a BFS expansion between opts.Min and opts.Max
// hops along predicate p from the current frontier, enforcing the
// requested uniqueness, and returns the reached frontier with path
// traces. It is a terminal operation: it does not return a Builder,
// since the traces it produces are not FactRecords.
func (b *Builder) VariablePath(p types.AtomID, opts VariablePathOptions, seeds []types.AtomID) ([]VariablePathTrace, error) {
	if opts.Max <= 0 {
		opts.Max = 1
	}
	ctx := context.Background()
	visited := make(map[types.AtomID]struct{}, len(seeds))
	type frontierEntry struct {
		id    types.AtomID
		edges []types.EncodedTriple
	}
	frontier := make([]frontierEntry, 0, len(seeds))
	for _, s := range seeds {
		frontier = append(frontier, frontierEntry{id: s})
		if opts.Uniqueness == UniquenessNodeGlobal {
			visited[s] = struct{}{}
		}
	}

	var traces []VariablePathTrace
	for hop := 1; hop <= opts.Max; hop++ {
		var nextFrontier []frontierEntry
		for _, fe := range frontier {
			var criteria types.Criteria
			pred := p
			id := fe.id
			if opts.Reverse {
				criteria = types.Criteria{Object: &id, Predicate: &pred}
			} else {
				criteria = types.Criteria{Subject: &id, Predicate: &pred}
			}
			it, err := b.engine.Triples.Scan(criteria)
			if err != nil {
				return nil, err
			}
			for {
				t, ok := it.Next()
				if !ok {
					break
				}
				nextID := t.O
				if opts.Reverse {
					nextID = t.S
				}
				if opts.Uniqueness == UniquenessNodeGlobal {
					if _, dup := visited[nextID]; dup {
						continue
					}
					visited[nextID] = struct{}{}
				}
				edges := append(append([]types.EncodedTriple(nil), fe.edges...), t)
				nextFrontier = append(nextFrontier, frontierEntry{id: nextID, edges: edges})
				if hop >= opts.Min {
					traces = append(traces, VariablePathTrace{Node: nextID, Edges: edges})
				}
			}
			it.Cancel()
			select {
			case <-ctx.Done():
				return traces, ctx.Err()
			default:
			}
		}
		if len(nextFrontier) == 0 {
			break
		}
		frontier = nextFrontier
	}
	return traces, nil
}
