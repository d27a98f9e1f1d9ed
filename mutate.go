package nervusdb

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nervusdb/nervusdb/pkg/events"
	"github.com/nervusdb/nervusdb/pkg/log"
	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/types"
	"github.com/nervusdb/nervusdb/pkg/walog"
)

// Fact is the wire shape spec §6 names for a mutation: three atom
// strings identifying subject, predicate, and object.
type Fact struct {
	Subject   string
	Predicate string
	Object    string
}

// FactOptions controls a single-call mutation's durability; nil means
// not durable (no forced fsync).
type FactOptions struct {
	Durable bool
}

// BatchHandle identifies one open, possibly nested, batch of staged
// mutations. Obtained from BeginBatch, consumed by CommitBatch/AbortBatch.
type BatchHandle = walog.BatchHandle

func (db *DB) internAtom(atom string) (types.AtomID, error) {
	if atom == "" {
		return 0, fmt.Errorf("%w: atom must be non-empty", nverrors.ErrInvalidInput)
	}
	if len(atom) > maxAtomLen {
		return 0, fmt.Errorf("%w: atom length %d exceeds %d bytes", nverrors.ErrInvalidInput, len(atom), maxAtomLen)
	}
	return db.dict.Intern(atom)
}

func (db *DB) encodeTriple(f Fact) (types.EncodedTriple, error) {
	s, err := db.internAtom(f.Subject)
	if err != nil {
		return types.EncodedTriple{}, err
	}
	p, err := db.internAtom(f.Predicate)
	if err != nil {
		return types.EncodedTriple{}, err
	}
	o, err := db.internAtom(f.Object)
	if err != nil {
		return types.EncodedTriple{}, err
	}
	return types.EncodedTriple{S: s, P: p, O: o}, nil
}

// BeginBatch opens a new batch of staged mutations, nested under parent
// if non-nil. Writes inside one batch are observed together or not at
// all once CommitBatch applies it.
func (db *DB) BeginBatch(parent *BatchHandle) (BatchHandle, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.wal.Begin(parent)
}

// CommitBatch applies every surviving mutation staged under b, in
// order, through the live stores; durable forces an fsync of the WAL
// tail. txID, if non-empty, makes a retried commit with the same ID a
// no-op (idempotent retry).
func (db *DB) CommitBatch(b BatchHandle, durable bool, txID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.txdedupe != nil && txID != "" {
		seen, err := db.txdedupe.Seen(txID)
		if err != nil {
			return err
		}
		if seen {
			// Already durably committed in a prior process lifetime (the
			// in-memory WAL dedupe ring resets across a checkpoint-then-
			// restart); discard the batch without applying it again.
			return db.wal.Abort(b)
		}
	}

	if err := db.wal.Commit(b, durable, txID, db); err != nil {
		return err
	}
	if db.txdedupe != nil && txID != "" {
		if err := db.txdedupe.Remember(txID); err != nil {
			return err
		}
	}
	log.WithBatchID(b.ID).Debug().Bool("durable", durable).Str("tx_id", txID).Msg("batch committed")
	db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventBatchCommitted, Timestamp: time.Now(), Message: txID})
	return nil
}

// AbortBatch discards b and every batch nested under it; none of its
// staged mutations are ever applied.
func (db *DB) AbortBatch(b BatchHandle) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.wal.Abort(b); err != nil {
		return err
	}
	db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventBatchAborted, Timestamp: time.Now()})
	return nil
}

// AddTripleInBatch stages adding f's triple under b.
func (db *DB) AddTripleInBatch(b BatchHandle, f Fact) error {
	t, err := db.encodeTriple(f)
	if err != nil {
		return err
	}
	return db.wal.AddTriple(b, t)
}

// DeleteTripleInBatch stages deleting f's triple under b.
func (db *DB) DeleteTripleInBatch(b BatchHandle, f Fact) error {
	t, err := db.encodeTriple(f)
	if err != nil {
		return err
	}
	return db.wal.DelTriple(b, t)
}

// SetNodePropertiesInBatch stages replacing the property map attached
// to the node named by atom under b.
func (db *DB) SetNodePropertiesInBatch(b BatchHandle, atom string, props types.PropertyMap) error {
	id, err := db.internAtom(atom)
	if err != nil {
		return err
	}
	return db.wal.SetNodeProps(b, id, props)
}

// SetEdgePropertiesInBatch stages replacing the property map attached
// to f's triple key under b.
func (db *DB) SetEdgePropertiesInBatch(b BatchHandle, f Fact, props types.PropertyMap) error {
	t, err := db.encodeTriple(f)
	if err != nil {
		return err
	}
	return db.wal.SetEdgeProps(b, t, props)
}

// SetLabelsInBatch stages replacing the label set attached to the node
// named by atom under b.
func (db *DB) SetLabelsInBatch(b BatchHandle, atom string, labels []string) error {
	id, err := db.internAtom(atom)
	if err != nil {
		return err
	}
	return db.wal.SetLabels(b, id, types.NewLabelSet(labels...))
}

// oneShot runs a single mutation as its own batch: begin, stage, commit
// with a fresh idempotence ID, aborting on any staging error.
func (db *DB) oneShot(durable bool, stage func(BatchHandle) error) error {
	b, err := db.BeginBatch(nil)
	if err != nil {
		return err
	}
	if err := stage(b); err != nil {
		_ = db.AbortBatch(b)
		return err
	}
	return db.CommitBatch(b, durable, uuid.NewString())
}

// AddFact interns s/p/o and adds the resulting triple in its own batch.
func (db *DB) AddFact(f Fact, opts *FactOptions) error {
	durable := opts != nil && opts.Durable
	return db.oneShot(durable, func(b BatchHandle) error { return db.AddTripleInBatch(b, f) })
}

// DeleteFact interns s/p/o and deletes the resulting triple in its own batch.
func (db *DB) DeleteFact(f Fact) error {
	return db.oneShot(false, func(b BatchHandle) error { return db.DeleteTripleInBatch(b, f) })
}

// SetNodeProperties replaces the node's entire property map in its own batch.
func (db *DB) SetNodeProperties(atom string, props types.PropertyMap) error {
	return db.oneShot(false, func(b BatchHandle) error { return db.SetNodePropertiesInBatch(b, atom, props) })
}

// SetEdgeProperties replaces f's entire property map in its own batch.
func (db *DB) SetEdgeProperties(f Fact, props types.PropertyMap) error {
	return db.oneShot(false, func(b BatchHandle) error { return db.SetEdgePropertiesInBatch(b, f, props) })
}

// SetLabels replaces the node's entire label set in its own batch.
func (db *DB) SetLabels(atom string, labels []string) error {
	return db.oneShot(false, func(b BatchHandle) error { return db.SetLabelsInBatch(b, atom, labels) })
}

// The five methods below make *DB satisfy walog.Applier: both the WAL's
// crash-recovery replay and CommitBatch's live apply path call through
// the same five mutations against the same live stores.

func (db *DB) ApplyAddTriple(t types.EncodedTriple) error {
	db.triples.Add(t)
	return nil
}

func (db *DB) ApplyDelTriple(t types.EncodedTriple) error {
	db.triples.Del(t)
	return nil
}

func (db *DB) ApplySetNodeProps(id types.AtomID, props types.PropertyMap) error {
	db.nodeProps.Set(id, props)
	return nil
}

func (db *DB) ApplySetEdgeProps(key types.EncodedTriple, props types.PropertyMap) error {
	db.edgeProps.Set(key, props)
	return nil
}

func (db *DB) ApplySetLabels(id types.AtomID, labels types.LabelSet) error {
	db.labels.SetLabels(id, labels)
	return nil
}
