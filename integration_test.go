package nervusdb_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb"
	"github.com/nervusdb/nervusdb/pkg/config"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/query"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func openTestDB(t *testing.T) *nervusdb.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := nervusdb.Open(dir, config.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustAddFact(t *testing.T, db *nervusdb.DB, s, p, o string) {
	t.Helper()
	require.NoError(t, db.AddFact(nervusdb.Fact{Subject: s, Predicate: p, Object: o}, nil))
}

func atomOf(t *testing.T, db *nervusdb.DB, atom string) types.AtomID {
	t.Helper()
	id, err := db.ResolveAtom(atom)
	require.NoError(t, err)
	return id
}

// S1 — a two-hop follow chain lands on exactly the right node.
func TestFollowChain(t *testing.T) {
	db := openTestDB(t)
	mustAddFact(t, db, "Alice", "knows", "Bob")
	mustAddFact(t, db, "Bob", "knows", "Carol")
	mustAddFact(t, db, "Carol", "knows", "Dave")

	alice := atomOf(t, db, "Alice")
	knows := atomOf(t, db, "knows")

	records, err := db.Find(types.Criteria{Subject: &alice, Predicate: &knows}, types.AnchorObject).
		Follow(knows).
		All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	carol := atomOf(t, db, "Carol")
	require.Equal(t, carol, records[0].Triple.O)
}

// S2 — unweighted shortest path, single-sided and bidirectional, agree
// on length.
func TestShortestPathBothDirections(t *testing.T) {
	db := openTestDB(t)
	mustAddFact(t, db, "Alice", "knows", "Bob")
	mustAddFact(t, db, "Bob", "knows", "Carol")
	mustAddFact(t, db, "Carol", "knows", "Dave")

	alice, dave := atomOf(t, db, "Alice"), atomOf(t, db, "Dave")
	knows := atomOf(t, db, "knows")

	path, err := db.ShortestPath(alice, dave, query.PathOptions{Predicate: &knows, MaxHops: 5})
	require.NoError(t, err)
	require.Len(t, path, 3)

	biPath, err := db.ShortestPathBidirectional(alice, dave, query.PathOptions{Predicate: &knows, MaxHops: 5})
	require.NoError(t, err)
	require.Len(t, biPath, 3)
}

// S3 — weighted shortest path prefers the lower-weight detour over the
// cheaper-hop-count direct edge.
func TestWeightedShortestPathPrefersLowerWeight(t *testing.T) {
	db := openTestDB(t)
	mustAddFact(t, db, "A", "e", "B")
	mustAddFact(t, db, "A", "e", "C")
	mustAddFact(t, db, "C", "e", "B")

	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "A", Predicate: "e", Object: "B"},
		types.PropertyMap{"w": types.NewFloat(5)}))
	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "A", Predicate: "e", Object: "C"},
		types.PropertyMap{"w": types.NewFloat(1)}))
	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "C", Predicate: "e", Object: "B"},
		types.PropertyMap{"w": types.NewFloat(1)}))

	a, b := atomOf(t, db, "A"), atomOf(t, db, "B")
	e := atomOf(t, db, "e")

	path, weight, err := db.ShortestPathWeighted(a, b, query.PathOptions{Predicate: &e, WeightKey: "w"})
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.InDelta(t, 2.0, weight, 0.0001)

	c := atomOf(t, db, "C")
	require.Equal(t, c, path[0].O)
}

// scoreExpr reads the e.s/e.o row bindings planted by a bound edge
// pattern and looks up that edge's "score" property straight from the
// live edge property store.
type scoreExpr struct {
	engine    *query.Engine
	predicate types.AtomID
}

func (s scoreExpr) Eval(row query.Row) (types.Value, error) {
	sv, ov := row["e.s"], row["e.o"]
	key := types.EncodedTriple{S: types.AtomID(sv.Int), P: s.predicate, O: types.AtomID(ov.Int)}
	m, found := s.engine.EdgeProps.Get(key)
	if !found {
		return types.Null(), nil
	}
	return m["score"], nil
}

// S5 — grouped average over edge properties.
func TestAggregateGroupedAverage(t *testing.T) {
	db := openTestDB(t)
	mustAddFact(t, db, "u1", "rated", "i1")
	mustAddFact(t, db, "u1", "rated", "i2")
	mustAddFact(t, db, "u2", "rated", "i1")

	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "u1", Predicate: "rated", Object: "i1"},
		types.PropertyMap{"score": types.NewInt(5)}))
	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "u1", Predicate: "rated", Object: "i2"},
		types.PropertyMap{"score": types.NewInt(3)}))
	require.NoError(t, db.SetEdgeProperties(nervusdb.Fact{Subject: "u2", Predicate: "rated", Object: "i1"},
		types.PropertyMap{"score": types.NewInt(4)}))

	rated := atomOf(t, db, "rated")
	pattern := db.Pattern().
		Node(query.NodePattern{Var: "subject"}).
		Edge(query.EdgePattern{Var: "e", From: "subject", To: "object", Predicate: rated}).
		Compile()

	rows, err := db.Aggregate(pattern).
		GroupBy("subject").
		Agg(query.AggSpec{Name: "avg", Func: query.AggAvg, Arg: scoreExpr{engine: db.Engine(), predicate: rated}}).
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

// S6 — a snapshot pinned before a commit does not observe it; a fresh
// Find after the commit does.
func TestSnapshotIsolation(t *testing.T) {
	db := openTestDB(t)
	mustAddFact(t, db, "X", "links", "Y")

	var sawBeforeCommit bool
	err := db.WithSnapshot(func(ctx context.Context, snap *nervusdb.Snapshot) error {
		links := atomOf(t, db, "links")
		records, err := snap.Engine().Find(types.Criteria{Predicate: &links}, types.AnchorBoth).All(ctx)
		if err != nil {
			return err
		}
		sawBeforeCommit = len(records) == 1

		mustAddFact(t, db, "X", "links", "Z")

		recordsAfter, err := snap.Engine().Find(types.Criteria{Predicate: &links}, types.AnchorBoth).All(ctx)
		if err != nil {
			return err
		}
		require.Len(t, recordsAfter, 1) // snapshot stores are frozen at pin time; the post-pin commit is invisible here
		return nil
	})
	require.NoError(t, err)
	require.True(t, sawBeforeCommit)

	links := atomOf(t, db, "links")
	live, err := db.Engine().Find(types.Criteria{Predicate: &links}, types.AnchorBoth).All(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 2) // db.Engine() always reads live state, unlike a pinned snapshot
}

// S7 — retrying a commit with the same txID is a no-op: the fact is
// stored exactly once.
func TestIdempotentCommitRetry(t *testing.T) {
	dir := t.TempDir()
	db, err := nervusdb.Open(dir, config.Options{EnablePersistentTxDedupe: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fact := nervusdb.Fact{Subject: "A", Predicate: "R", Object: "B"}

	b1, err := db.BeginBatch(nil)
	require.NoError(t, err)
	require.NoError(t, db.AddTripleInBatch(b1, fact))
	require.NoError(t, db.CommitBatch(b1, false, "T1"))

	b2, err := db.BeginBatch(nil)
	require.NoError(t, err)
	require.NoError(t, db.AddTripleInBatch(b2, fact))
	require.NoError(t, db.CommitBatch(b2, false, "T1"))

	s := atomOf(t, db, "A")
	r := atomOf(t, db, "R")
	o := atomOf(t, db, "B")
	records, err := db.Find(types.Criteria{Subject: &s, Predicate: &r, Object: &o}, types.AnchorBoth).
		All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

// Property pushdown (S4, downsized from 10,000 nodes to keep the test
// fast): findByNodeProperty with a range returns exactly the matches in
// range.
func TestFindByNodePropertyRange(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 40; i++ {
		atom := fmt.Sprintf("node%02d", i)
		require.NoError(t, db.SetLabels(atom, []string{"Thing"}))
		require.NoError(t, db.SetNodeProperties(atom, types.PropertyMap{"age": types.NewInt(int64(i))}))
	}

	records, err := db.FindByNodeProperty("age", propstore.OpBetween, types.NewInt(10), types.NewInt(14)).
		All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 5)
}
