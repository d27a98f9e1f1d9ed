package query

import (
	"context"

	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Step is one stage of a fused streaming pipeline: given a frontier set
// of AtomIDs (the anchor endpoint of the previous stage), it produces
// the next frontier plus the FactRecords it observed along the way.
// find/findByX build the first step; follow/followReverse append
// further steps, each receiving the full frontier the previous step
// produced.
type step func(ctx context.Context, frontier []types.AtomID) ([]FactRecord, []types.AtomID, error)

// Builder composes fact access and chained follows into one streaming
// pipeline. Nothing runs until All or Stream is called.
type Builder struct {
	engine *Engine
	anchor types.Anchor
	steps  []step
	err    error
}

// Find inspects criteria (any subset of subject/predicate/object),
// selects the index order the planner picks, and returns a Builder
// that on execution yields matching FactRecords. anchor names which
// endpoint of each yielded triple becomes the frontier for a following
// .Follow/.FollowReverse step.
func (e *Engine) Find(criteria types.Criteria, anchor types.Anchor) *Builder {
	b := &Builder{engine: e, anchor: anchor}
	b.steps = append(b.steps, func(ctx context.Context, _ []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		return e.scanAll(ctx, criteria, anchor)
	})
	return b
}

// FindByNodeProperty starts from the node property inverted index,
// anchoring the rest of the plan on the matching node ID set as
// subjects.
func (e *Engine) FindByNodeProperty(key string, op propstore.Op, values ...types.Value) *Builder {
	b := &Builder{engine: e, anchor: types.AnchorSubject}
	b.steps = append(b.steps, func(ctx context.Context, _ []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		ids := e.NodeProps.Query(key, op, values...)
		records := make([]FactRecord, 0, len(ids))
		for _, id := range ids {
			records = append(records, FactRecord{Triple: types.EncodedTriple{S: id}, nodeProps: e.NodeProps})
		}
		return records, ids, nil
	})
	return b
}

// FindByEdgeProperty starts from the edge property inverted index,
// anchoring on both endpoints of the matching triple keys.
func (e *Engine) FindByEdgeProperty(key string, op propstore.Op, values ...types.Value) *Builder {
	b := &Builder{engine: e, anchor: types.AnchorBoth}
	b.steps = append(b.steps, func(ctx context.Context, _ []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		keys := e.EdgeProps.Query(key, op, values...)
		records := make([]FactRecord, 0, len(keys))
		frontier := make([]types.AtomID, 0, len(keys)*2)
		for _, t := range keys {
			records = append(records, FactRecord{Triple: t, nodeProps: e.NodeProps, edgeProps: e.EdgeProps})
			frontier = append(frontier, t.S, t.O)
		}
		return records, frontier, nil
	})
	return b
}

// FindByLabel starts from the label inverted index, anchoring on the
// matching node IDs.
func (e *Engine) FindByLabel(mode types.LabelMatchMode, labels ...string) *Builder {
	b := &Builder{engine: e, anchor: types.AnchorSubject}
	b.steps = append(b.steps, func(ctx context.Context, _ []types.AtomID) ([]FactRecord, []types.AtomID, error) {
		ids := e.Labels.FindByLabel(mode, labels...)
		records := make([]FactRecord, 0, len(ids))
		for _, id := range ids {
			records = append(records, FactRecord{Triple: types.EncodedTriple{S: id}, nodeProps: e.NodeProps})
		}
		return records, ids, nil
	})
	return b
}

// scanAll drains a criteria scan into a slice, hydrating FactRecords
// with this engine's property stores.
func (e *Engine) scanAll(ctx context.Context, criteria types.Criteria, anchor types.Anchor) ([]FactRecord, []types.AtomID, error) {
	it, err := e.Triples.Scan(criteria)
	if err != nil {
		return nil, nil, err
	}
	defer it.Cancel()

	var records []FactRecord
	var frontier []types.AtomID
	for {
		select {
		case <-ctx.Done():
			return records, frontier, ctx.Err()
		default:
		}
		t, ok := it.Next()
		if !ok {
			break
		}
		records = append(records, FactRecord{Triple: t, nodeProps: e.NodeProps, edgeProps: e.EdgeProps})
		frontier = append(frontier, anchorIDs(t, anchor)...)
	}
	return records, frontier, nil
}

// anchorIDs extracts the frontier IDs a triple contributes for the
// given anchor orientation.
func anchorIDs(t types.EncodedTriple, anchor types.Anchor) []types.AtomID {
	switch anchor {
	case types.AnchorSubject:
		return []types.AtomID{t.S}
	case types.AnchorObject:
		return []types.AtomID{t.O}
	default:
		return []types.AtomID{t.S, t.O}
	}
}

// All runs every step of the pipeline to completion and returns the
// final stage's records. Intermediate frontier sets are never exposed;
// only the last step's output is materialized for the caller.
func (b *Builder) All(ctx context.Context) ([]FactRecord, error) {
	if b.err != nil {
		return nil, b.err
	}
	var records []FactRecord
	var frontier []types.AtomID
	var err error
	for _, s := range b.steps {
		records, frontier, err = s(ctx, frontier)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Stream runs the pipeline and delivers each of the final stage's
// records to fn, stopping early if fn returns false or ctx is
// cancelled. Earlier stages still materialize their frontier (fusing
// fully lazy multi-stage iteration is future work); only the terminal
// stage streams to the caller one record at a time.
func (b *Builder) Stream(ctx context.Context, fn func(FactRecord) bool) error {
	records, err := b.All(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !fn(r) {
			return nil
		}
	}
	return nil
}
