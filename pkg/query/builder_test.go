package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/triplestore"
	"github.com/nervusdb/nervusdb/pkg/types"
)

const (
	alice types.AtomID = 1
	bob   types.AtomID = 2
	carol types.AtomID = 3
	knows types.AtomID = 10
	likes types.AtomID = 11
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	triples := triplestore.Open(dir, pages.NewCache(16))
	nodeProps := propstore.NewNodeStore()
	edgeProps := propstore.NewEdgeStore()
	labels := labelstore.New()
	return New(triples, nodeProps, edgeProps, labels)
}

func TestFindBySubjectAndPredicate(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: carol})
	e.Triples.Add(types.EncodedTriple{S: alice, P: likes, O: bob})

	s := alice
	p := knows
	records, err := e.Find(types.Criteria{Subject: &s, Predicate: &p}, types.AnchorObject).All(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFindByNodeProperty(t *testing.T) {
	e := newTestEngine(t)
	e.NodeProps.Set(alice, types.PropertyMap{"age": types.NewInt(30)})
	e.NodeProps.Set(bob, types.PropertyMap{"age": types.NewInt(40)})

	records, err := e.FindByNodeProperty("age", propstore.OpGte, types.NewInt(35)).All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, bob, records[0].Triple.S)
}

func TestFindByLabel(t *testing.T) {
	e := newTestEngine(t)
	e.Labels.SetLabels(alice, types.NewLabelSet("Person"))
	e.Labels.SetLabels(bob, types.NewLabelSet("Person", "Admin"))

	records, err := e.FindByLabel(types.LabelMatchAll, "Admin").All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, bob, records[0].Triple.S)
}

func TestFollowChain(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: bob, P: knows, O: carol})

	s := alice
	records, err := e.Find(types.Criteria{Subject: &s, Predicate: ptr(knows)}, types.AnchorObject).
		Follow(knows).
		All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, carol, records[0].Triple.O)
}

func TestFollowReverse(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: carol, P: knows, O: bob})

	o := bob
	records, err := e.Find(types.Criteria{Object: &o}, types.AnchorObject).
		FollowReverse(knows).
		All(context.Background())
	require.NoError(t, err)
	got := make(map[types.AtomID]bool)
	for _, r := range records {
		got[r.Triple.S] = true
	}
	assert.True(t, got[alice])
	assert.True(t, got[carol])
}

func ptr(id types.AtomID) *types.AtomID { return &id }
