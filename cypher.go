package nervusdb

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nervusdb/nervusdb/pkg/cypher"
	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Cypher queries address nodes by dictionary atom, but a node created by
// `CREATE (n)` has no natural string identity. nodeAtomPrefix mints one
// (prefix + a fresh UUID) so the node still lives as an ordinary
// dictionary atom usable as a triple endpoint, just like every other
// subject or object.
const nodeAtomPrefix = "node:"

var _ cypher.Mutator = (*DB)(nil)
var _ cypher.Resolver = (*DB)(nil)

// ResolveAtom implements cypher.Resolver: it looks up an already-interned
// atom without creating one, since a read-only MATCH must not mutate the
// dictionary just to fail to find anything.
func (db *DB) ResolveAtom(atom string) (types.AtomID, error) {
	id, ok := db.dict.Reverse(atom)
	if !ok {
		return types.NoAtom, fmt.Errorf("%w: unknown atom %q", nverrors.ErrNotFound, atom)
	}
	return id, nil
}

// CreateNode mints a fresh node atom, interns it, and attaches labels if
// any, all inside one batch.
func (db *DB) CreateNode(labels []string) (types.AtomID, error) {
	id, err := db.internAtom(nodeAtomPrefix + uuid.NewString())
	if err != nil {
		return types.NoAtom, err
	}
	if len(labels) == 0 {
		return id, nil
	}
	if err := db.SetLabelsByID(id, labels); err != nil {
		return types.NoAtom, err
	}
	return id, nil
}

// CreateEdge adds the (s, predicate, o) triple unconditionally, even if
// an identical edge already exists (CREATE never deduplicates).
func (db *DB) CreateEdge(s types.AtomID, predicate string, o types.AtomID) error {
	p, err := db.internAtom(predicate)
	if err != nil {
		return err
	}
	return db.oneShot(false, func(b BatchHandle) error {
		return db.wal.AddTriple(b, types.EncodedTriple{S: s, P: p, O: o})
	})
}

// MergeNode finds a node already carrying every label in labels and
// returns it; otherwise it creates one, exactly as CreateNode does.
// created reports which branch was taken.
func (db *DB) MergeNode(labels []string) (types.AtomID, bool, error) {
	if len(labels) > 0 {
		candidates := db.labels.FindByLabel(types.LabelMatchAll, labels...)
		if len(candidates) > 0 {
			return candidates[0], false, nil
		}
	}
	id, err := db.CreateNode(labels)
	return id, true, err
}

// MergeEdge adds (s, predicate, o) only if it is not already present.
// created reports whether a new triple was added.
func (db *DB) MergeEdge(s types.AtomID, predicate string, o types.AtomID) (bool, error) {
	p, err := db.internAtom(predicate)
	if err != nil {
		return false, err
	}
	key := types.EncodedTriple{S: s, P: p, O: o}
	exists, err := db.tripleExists(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := db.oneShot(false, func(b BatchHandle) error {
		return db.wal.AddTriple(b, key)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) tripleExists(key types.EncodedTriple) (bool, error) {
	it, err := db.triples.Scan(types.Criteria{Subject: &key.S, Predicate: &key.P, Object: &key.O})
	if err != nil {
		return false, err
	}
	defer it.Cancel()
	_, ok := it.Next()
	return ok, nil
}

// SetNodeProperty sets a single key in a node's property map, leaving
// every other key untouched.
func (db *DB) SetNodeProperty(id types.AtomID, key string, v types.Value) error {
	return db.mutateNodeProps(id, func(m types.PropertyMap) { m[key] = v })
}

// RemoveNodeProperty deletes a single key from a node's property map.
func (db *DB) RemoveNodeProperty(id types.AtomID, key string) error {
	return db.mutateNodeProps(id, func(m types.PropertyMap) { delete(m, key) })
}

func (db *DB) mutateNodeProps(id types.AtomID, edit func(types.PropertyMap)) error {
	current, _ := db.nodeProps.Get(id)
	if current == nil {
		current = types.PropertyMap{}
	}
	edit(current)
	return db.oneShot(false, func(b BatchHandle) error {
		return db.wal.SetNodeProps(b, id, current)
	})
}

// SetEdgeProperty sets a single key in an edge's property map, leaving
// every other key untouched.
func (db *DB) SetEdgeProperty(s types.AtomID, predicate string, o types.AtomID, key string, v types.Value) error {
	p, err := db.internAtom(predicate)
	if err != nil {
		return err
	}
	triple := types.EncodedTriple{S: s, P: p, O: o}
	current, _ := db.edgeProps.Get(triple)
	if current == nil {
		current = types.PropertyMap{}
	}
	current[key] = v
	return db.oneShot(false, func(b BatchHandle) error {
		return db.wal.SetEdgeProps(b, triple, current)
	})
}

// SetNodeLabel adds a single label to a node's label set, leaving every
// other label untouched.
func (db *DB) SetNodeLabel(id types.AtomID, label string) error {
	return db.SetLabelsByID(id, append(db.labels.GetLabels(id).Slice(), label))
}

// RemoveNodeLabel removes a single label from a node's label set.
func (db *DB) RemoveNodeLabel(id types.AtomID, label string) error {
	current := db.labels.GetLabels(id)
	delete(current, label)
	return db.SetLabelsByID(id, current.Slice())
}

// SetLabelsByID replaces a node's entire label set, addressed directly
// by AtomID (the Cypher-facing counterpart of the atom-string SetLabels).
func (db *DB) SetLabelsByID(id types.AtomID, labels []string) error {
	return db.oneShot(false, func(b BatchHandle) error {
		return db.wal.SetLabels(b, id, types.NewLabelSet(labels...))
	})
}

// DeleteNode removes every label and property attached to id. If detach
// is false and id is still an endpoint of any triple, it refuses with
// ErrConflict rather than leaving a dangling edge; if detach is true it
// first deletes every such triple.
func (db *DB) DeleteNode(id types.AtomID, detach bool) error {
	touching, err := db.edgesTouching(id)
	if err != nil {
		return err
	}
	if len(touching) > 0 && !detach {
		return fmt.Errorf("%w: node %d still has %d attached edge(s), detach required", nverrors.ErrConflict, id, len(touching))
	}

	b, err := db.BeginBatch(nil)
	if err != nil {
		return err
	}
	for _, t := range touching {
		if err := db.wal.DelTriple(b, t); err != nil {
			_ = db.AbortBatch(b)
			return err
		}
	}
	if err := db.wal.SetNodeProps(b, id, types.PropertyMap{}); err != nil {
		_ = db.AbortBatch(b)
		return err
	}
	if err := db.wal.SetLabels(b, id, types.LabelSet{}); err != nil {
		_ = db.AbortBatch(b)
		return err
	}
	return db.CommitBatch(b, false, uuid.NewString())
}

// edgesTouching finds every triple with id as subject or object, via the
// two orderings (SPO, OSP) that each put one of those endpoints first.
func (db *DB) edgesTouching(id types.AtomID) ([]types.EncodedTriple, error) {
	var out []types.EncodedTriple
	asSubject, err := db.triples.Scan(types.Criteria{Subject: &id})
	if err != nil {
		return nil, err
	}
	for t, ok := asSubject.Next(); ok; t, ok = asSubject.Next() {
		out = append(out, t)
	}
	asSubject.Cancel()

	asObject, err := db.triples.Scan(types.Criteria{Object: &id})
	if err != nil {
		return nil, err
	}
	for t, ok := asObject.Next(); ok; t, ok = asObject.Next() {
		if t.S == id {
			continue // already collected above
		}
		out = append(out, t)
	}
	asObject.Cancel()
	return out, nil
}

// DeleteEdge removes one (s, predicate, o) triple and its attached
// property map.
func (db *DB) DeleteEdge(s types.AtomID, predicate string, o types.AtomID) error {
	p, err := db.internAtom(predicate)
	if err != nil {
		return err
	}
	triple := types.EncodedTriple{S: s, P: p, O: o}
	return db.oneShot(false, func(b BatchHandle) error {
		if err := db.wal.DelTriple(b, triple); err != nil {
			return err
		}
		return db.wal.SetEdgeProps(b, triple, types.PropertyMap{})
	})
}
