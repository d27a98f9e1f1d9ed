package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestPatternMatchSimpleChain(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: bob, P: knows, O: carol})
	e.Labels.SetLabels(alice, types.NewLabelSet("Person"))

	compiled := e.NewPattern().
		Node(NodePattern{Var: "a", Labels: []string{"Person"}, Mode: types.LabelMatchAny}).
		Edge(EdgePattern{From: "a", To: "b", Predicate: knows}).
		Return("a", "b").
		Compile()

	rows, err := compiled.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.NewInt(int64(alice)), rows[0]["a"])
	assert.Equal(t, types.NewInt(int64(bob)), rows[0]["b"])
}

func TestPatternMatchWithWhere(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: carol})
	e.Labels.SetLabels(alice, types.NewLabelSet("Person"))

	compiled := e.NewPattern().
		Node(NodePattern{Var: "a", Labels: []string{"Person"}}).
		Edge(EdgePattern{From: "a", To: "b", Predicate: knows}).
		Where(BinOp{Op: "=", Left: Var{Name: "b"}, Right: Lit{Value: types.NewInt(int64(carol))}}).
		Compile()

	rows, err := compiled.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.NewInt(int64(carol)), rows[0]["b"])
}

func TestPatternMatchLimit(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: carol})
	e.Labels.SetLabels(alice, types.NewLabelSet("Person"))

	compiled := e.NewPattern().
		Node(NodePattern{Var: "a", Labels: []string{"Person"}}).
		Edge(EdgePattern{From: "a", To: "b", Predicate: knows}).
		Limit(1).
		Compile()

	rows, err := compiled.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPatternVariableLengthEdge(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: bob, P: knows, O: carol})

	compiled := e.NewPattern().
		Node(NodePattern{Var: "a"}).
		Edge(EdgePattern{Var: "e", From: "a", To: "b", Predicate: knows, MinHops: 1, MaxHops: 2}).
		Where(BinOp{Op: "=", Left: Var{Name: "a"}, Right: Lit{Value: types.NewInt(int64(alice))}}).
		Compile()

	rows, err := compiled.Execute(context.Background())
	require.NoError(t, err)

	reached := make(map[int64]bool)
	for _, row := range rows {
		reached[row["b"].Int] = true
	}
	assert.True(t, reached[int64(bob)], "1-hop target should be reached")
	assert.True(t, reached[int64(carol)], "2-hop target should be reached")
}

func TestPatternVariableLengthEdgeRequiresBoundStart(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})

	// No Node() call means seedRows yields a single empty row: "a" is
	// never bound, so the variable-length edge cannot seed a BFS walk.
	compiled := e.NewPattern().
		Edge(EdgePattern{Var: "e", From: "a", To: "b", Predicate: knows, MinHops: 1, MaxHops: 2}).
		Compile()

	_, err := compiled.Execute(context.Background())
	require.Error(t, err)
}
