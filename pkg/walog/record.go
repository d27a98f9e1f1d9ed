package walog

import (
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Kind discriminates a WAL record.
type Kind uint8

const (
	KindBegin Kind = iota
	KindAddTriple
	KindDelTriple
	KindSetNodeProps
	KindSetEdgeProps
	KindSetLabels
	KindCommit
	KindAbort
)

// Record is one physical WAL entry. Not every field is meaningful for
// every Kind; see encodeRecord in codec.go for which fields a given
// Kind carries.
type Record struct {
	BatchID  uint64
	Kind     Kind
	TxID     string
	Durable  bool
	Dup      bool // true if Commit was accepted as an idempotent no-op
	Triple   types.EncodedTriple
	NodeID   types.AtomID
	Props    types.PropertyMap
	Labels   []string
}

// Applier receives replayed (or freshly committed) records in commit
// order. The core Store implements this to mutate triplestore,
// propstore, and labelstore in lockstep with the log.
type Applier interface {
	ApplyAddTriple(t types.EncodedTriple) error
	ApplyDelTriple(t types.EncodedTriple) error
	ApplySetNodeProps(id types.AtomID, props types.PropertyMap) error
	ApplySetEdgeProps(key types.EncodedTriple, props types.PropertyMap) error
	ApplySetLabels(id types.AtomID, labels types.LabelSet) error
}
