package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestVariablePathExpandsWithinHopRange(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: bob, P: knows, O: carol})

	b := e.Find(types.Criteria{}, types.AnchorSubject)
	traces, err := b.VariablePath(knows, VariablePathOptions{Min: 1, Max: 2, Uniqueness: UniquenessNodeGlobal}, []types.AtomID{alice})
	require.NoError(t, err)

	reached := make(map[types.AtomID]int)
	for _, tr := range traces {
		reached[tr.Node] = len(tr.Edges)
	}
	assert.Equal(t, 1, reached[bob])
	assert.Equal(t, 2, reached[carol])
}

func TestVariablePathRespectsMinHops(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: bob, P: knows, O: carol})

	b := e.Find(types.Criteria{}, types.AnchorSubject)
	traces, err := b.VariablePath(knows, VariablePathOptions{Min: 2, Max: 2, Uniqueness: UniquenessNodeGlobal}, []types.AtomID{alice})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, carol, traces[0].Node)
}
