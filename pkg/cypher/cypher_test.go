package cypher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/query"
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

// fixedResolver maps fixture names to fixed AtomIDs, standing in for
// the dictionary in these tests.
type fixedResolver map[string]types.AtomID

func (r fixedResolver) ResolveAtom(atom string) (types.AtomID, error) {
	if id, ok := r[atom]; ok {
		return id, nil
	}
	return 0, &SyntaxError{Clause: atom, Message: "unknown atom"}
}

func newTestEngine(t *testing.T) *query.Engine {
	t.Helper()
	dir := t.TempDir()
	triples := triplestore.Open(dir, pages.NewCache(16))
	nodeProps := propstore.NewNodeStore()
	edgeProps := propstore.NewEdgeStore()
	labels := labelstore.New()
	return query.New(triples, nodeProps, edgeProps, labels)
}

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS]->(b) RETURN a, b`)
	require.NoError(t, err)
	require.Len(t, q.Match, 1)
	assert.Len(t, q.Match[0].Nodes, 2)
	assert.Len(t, q.Match[0].Rels, 1)
	assert.Equal(t, []string{"KNOWS"}, q.Match[0].Rels[0].Types)
	require.Len(t, q.Return, 2)
}

func TestParseWhereClause(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS]->(b) WHERE a.age > 30 RETURN a`)
	require.NoError(t, err)
	bin, ok := q.Where.(BinOpExpr)
	require.True(t, ok)
	assert.Equal(t, ">", bin.Op)
}

func TestParseOrderBySkipLimit(t *testing.T) {
	q, err := Parse(`MATCH (a) RETURN a ORDER BY a DESC SKIP 2 LIMIT 5`)
	require.NoError(t, err)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)
	assert.Equal(t, 2, q.Skip)
	assert.Equal(t, 5, q.Limit)
}

func TestParseRejectsOptionalMatch(t *testing.T) {
	_, err := Parse(`OPTIONAL MATCH (a) RETURN a`)
	require.Error(t, err)
	var syn *SyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Equal(t, "optional match", syn.Clause)
}

func TestParseRejectsUnion(t *testing.T) {
	_, err := Parse(`MATCH (a) RETURN a UNION MATCH (b) RETURN b`)
	require.Error(t, err)
}

func TestParseRejectsCall(t *testing.T) {
	_, err := Parse(`CALL db.labels()`)
	require.Error(t, err)
}

func TestParseVariableLengthPath(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS*1..3]->(b) RETURN b`)
	require.NoError(t, err)
	rel := q.Match[0].Rels[0]
	assert.True(t, rel.VarLength)
	assert.Equal(t, 1, rel.MinHops)
	assert.Equal(t, 3, rel.MaxHops)
}

func TestCompileAndRunMatchFollow(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: carol})

	q, err := Parse(`MATCH (a)-[:KNOWS]->(b) RETURN a, b`)
	require.NoError(t, err)

	resolver := fixedResolver{"KNOWS": knows}
	compiled, err := Compile(q, e, resolver)
	require.NoError(t, err)
	require.NotNil(t, compiled.Read)

	rows, err := compiled.Read.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCompileAndRunWithWhere(t *testing.T) {
	e := newTestEngine(t)
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: bob})
	e.Triples.Add(types.EncodedTriple{S: alice, P: knows, O: carol})

	q, err := Parse(`MATCH (a)-[:KNOWS]->(b) WHERE b <> a RETURN b`)
	require.NoError(t, err)

	resolver := fixedResolver{"KNOWS": knows}
	compiled, err := Compile(q, e, resolver)
	require.NoError(t, err)

	rows, err := compiled.Read.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCompileRejectsUnresolvedRelType(t *testing.T) {
	e := newTestEngine(t)
	q, err := Parse(`MATCH (a)-[:MISSING]->(b) RETURN a`)
	require.NoError(t, err)

	_, err = Compile(q, e, fixedResolver{})
	require.Error(t, err)
}

// fakeMutator records every write call for assertion, standing in for
// the root database handle's batch API.
type fakeMutator struct {
	nextID      types.AtomID
	created     []string
	edgesAdded  []string
	setProps    map[types.AtomID]map[string]types.Value
	deleted     map[types.AtomID]bool
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{nextID: 100, setProps: make(map[types.AtomID]map[string]types.Value), deleted: make(map[types.AtomID]bool)}
}

func (m *fakeMutator) CreateNode(labels []string) (types.AtomID, error) {
	m.nextID++
	m.created = append(m.created, labels...)
	return m.nextID, nil
}

func (m *fakeMutator) CreateEdge(s types.AtomID, predicate string, o types.AtomID) error {
	m.edgesAdded = append(m.edgesAdded, predicate)
	return nil
}

func (m *fakeMutator) MergeNode(labels []string) (types.AtomID, bool, error) {
	id, err := m.CreateNode(labels)
	return id, true, err
}

func (m *fakeMutator) MergeEdge(s types.AtomID, predicate string, o types.AtomID) (bool, error) {
	return true, m.CreateEdge(s, predicate, o)
}

func (m *fakeMutator) SetNodeProperty(id types.AtomID, key string, v types.Value) error {
	if m.setProps[id] == nil {
		m.setProps[id] = make(map[string]types.Value)
	}
	m.setProps[id][key] = v
	return nil
}

func (m *fakeMutator) SetEdgeProperty(s types.AtomID, predicate string, o types.AtomID, key string, v types.Value) error {
	return nil
}

func (m *fakeMutator) SetNodeLabel(id types.AtomID, label string) error {
	m.created = append(m.created, label)
	return nil
}

func (m *fakeMutator) RemoveNodeProperty(id types.AtomID, key string) error {
	delete(m.setProps[id], key)
	return nil
}

func (m *fakeMutator) RemoveNodeLabel(id types.AtomID, label string) error { return nil }

func (m *fakeMutator) DeleteNode(id types.AtomID, detach bool) error {
	m.deleted[id] = true
	return nil
}

func (m *fakeMutator) DeleteEdge(s types.AtomID, predicate string, o types.AtomID) error { return nil }

func TestCompileAndRunCreate(t *testing.T) {
	q, err := Parse(`CREATE (a:Person)-[:KNOWS]->(b:Person)`)
	require.NoError(t, err)

	compiled, err := Compile(q, nil, fixedResolver{})
	require.NoError(t, err)
	require.NotNil(t, compiled.Write)

	m := newFakeMutator()
	require.NoError(t, compiled.Write.RunOnce(m))
	assert.Contains(t, m.created, "Person")
	assert.Contains(t, m.edgesAdded, "KNOWS")
}

func TestCompileAndRunSetUsesMatchedBinding(t *testing.T) {
	q, err := Parse(`MATCH (a) SET a.age = 31`)
	require.NoError(t, err)

	compiled, err := Compile(q, nil, fixedResolver{})
	require.NoError(t, err)
	require.NotNil(t, compiled.Write)

	m := newFakeMutator()
	row := query.Row{"a": types.NewInt(int64(alice))}
	require.NoError(t, compiled.Write.Run(m, row))
	require.Contains(t, m.setProps, alice)
	assert.Equal(t, types.NewInt(31), m.setProps[alice]["age"])
}

func TestCompileSetRejectsUnboundVariable(t *testing.T) {
	q, err := Parse(`MATCH (a) SET a.age = 31`)
	require.NoError(t, err)

	compiled, err := Compile(q, nil, fixedResolver{})
	require.NoError(t, err)

	m := newFakeMutator()
	err = compiled.Write.Run(m, query.Row{})
	require.Error(t, err)
}

func TestCompileAndRunDelete(t *testing.T) {
	q, err := Parse(`MATCH (a) DELETE a`)
	require.NoError(t, err)

	compiled, err := Compile(q, nil, fixedResolver{})
	require.NoError(t, err)

	m := newFakeMutator()
	row := query.Row{"a": types.NewInt(int64(bob))}
	require.NoError(t, compiled.Write.Run(m, row))
	assert.True(t, m.deleted[bob])
}
