package query

import (
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/triplestore"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Engine is the fixed set of stores one pinned-epoch snapshot queries
// against. It is stateless between queries; every builder it hands out
// reads straight through to these stores.
type Engine struct {
	Triples   *triplestore.Store
	NodeProps *propstore.NodeStore
	EdgeProps *propstore.EdgeStore
	Labels    *labelstore.Store
}

// New builds an Engine over one snapshot's stores.
func New(triples *triplestore.Store, nodeProps *propstore.NodeStore, edgeProps *propstore.EdgeStore, labels *labelstore.Store) *Engine {
	return &Engine{Triples: triples, NodeProps: nodeProps, EdgeProps: edgeProps, Labels: labels}
}

// FactRecord is one yielded triple plus its property maps, hydrated on
// demand rather than eagerly so a plan that never asks for properties
// never pays to decode them.
type FactRecord struct {
	Triple     types.EncodedTriple
	nodeProps  *propstore.NodeStore
	edgeProps  *propstore.EdgeStore
}

// NodeProperties hydrates node id's property map.
func (r FactRecord) NodeProperties(id types.AtomID) (types.PropertyMap, bool) {
	if r.nodeProps == nil {
		return nil, false
	}
	return r.nodeProps.Get(id)
}

// EdgeProperties hydrates this triple's own property map.
func (r FactRecord) EdgeProperties() (types.PropertyMap, bool) {
	if r.edgeProps == nil {
		return nil, false
	}
	return r.edgeProps.Get(r.Triple)
}

// RuntimeType is raised when an expression evaluation site receives an
// illegal type combination. Callers never see a silent null for these;
// see eval.go.
type RuntimeType struct {
	Op      string
	Message string
}

func (e *RuntimeType) Error() string {
	return fmt.Sprintf("query: runtime type error in %s: %s", e.Op, e.Message)
}

// NewRuntimeType builds a RuntimeType error naming the offending
// operation and a human-readable reason.
func NewRuntimeType(op, message string) *RuntimeType {
	return &RuntimeType{Op: op, Message: message}
}
