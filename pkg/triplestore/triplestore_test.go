package triplestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func atom(id uint64) types.AtomID { return types.AtomID(id) }

func ptr(id types.AtomID) *types.AtomID { return &id }

func TestStagingAddThenDeleteCancelsOut(t *testing.T) {
	s := NewStaging()
	tr := types.EncodedTriple{S: atom(1), P: atom(2), O: atom(3)}

	s.Add(tr)
	s.Del(tr)

	assert.Empty(t, s.Matching(types.SPO, types.Criteria{}))
	assert.False(t, s.Tombstoned(tr), "deleting a never-paged add must not leave a tombstone")
}

func TestStagingDeleteThenAddCancelsTombstone(t *testing.T) {
	s := NewStaging()
	tr := types.EncodedTriple{S: atom(1), P: atom(2), O: atom(3)}

	s.Del(tr) // tombstones a (hypothetically) already-paged triple
	require.True(t, s.Tombstoned(tr))

	s.Add(tr)
	assert.False(t, s.Tombstoned(tr))
}

func TestStoreScanMergesPagedAndStaged(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir, pages.NewCache(64))

	paged := []types.EncodedTriple{
		{S: atom(1), P: atom(10), O: atom(100)},
		{S: atom(2), P: atom(10), O: atom(200)},
	}
	for _, tr := range paged {
		store.Add(tr)
	}
	_, err := store.Materialize(4096, pages.CodecNone, 3)
	require.NoError(t, err)

	// Stage a fresh add and a delete of one already-paged triple.
	store.Add(types.EncodedTriple{S: atom(3), P: atom(10), O: atom(300)})
	store.Del(paged[0])

	it, err := store.Scan(types.Criteria{Predicate: ptr(atom(10))})
	require.NoError(t, err)
	defer it.Cancel()

	var got []types.EncodedTriple
	for {
		tr, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, tr)
	}

	assert.ElementsMatch(t, []types.EncodedTriple{
		{S: atom(2), P: atom(10), O: atom(200)},
		{S: atom(3), P: atom(10), O: atom(300)},
	}, got)
}

func TestStoreScanAcrossMultiplePages(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir, pages.NewCache(64))

	for i := uint64(1); i <= 10; i++ {
		store.Add(types.EncodedTriple{S: atom(i), P: atom(1), O: atom(i * 100)})
	}
	descs, err := store.Materialize(3, pages.CodecGeneric, 3)
	require.NoError(t, err)
	require.Greater(t, len(descs[types.SPO]), 1, "expected multiple pages at capacity 3 for 10 triples")

	it, err := store.Scan(types.Criteria{Subject: ptr(atom(5))})
	require.NoError(t, err)
	defer it.Cancel()

	tr, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, types.EncodedTriple{S: atom(5), P: atom(1), O: atom(500)}, tr)

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestPrimaryValuesDeduplicates(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir, pages.NewCache(64))

	store.Add(types.EncodedTriple{S: atom(1), P: atom(9), O: atom(1)})
	store.Add(types.EncodedTriple{S: atom(1), P: atom(9), O: atom(2)})
	store.Add(types.EncodedTriple{S: atom(2), P: atom(9), O: atom(3)})
	_, err := store.Materialize(4096, pages.CodecNone, 3)
	require.NoError(t, err)

	vals, err := store.PrimaryValues(types.Criteria{Predicate: ptr(atom(9))})
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.AtomID{atom(9)}, vals)
}

func TestMaterializeTombstonesAreDroppedNotRewritten(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir, pages.NewCache(64))

	tr := types.EncodedTriple{S: atom(1), P: atom(2), O: atom(3)}
	store.Add(tr)
	_, err := store.Materialize(4096, pages.CodecNone, 3)
	require.NoError(t, err)

	store.Del(tr)
	descs, err := store.Materialize(4096, pages.CodecNone, 3)
	require.NoError(t, err)
	assert.Empty(t, descs[types.SPO])

	it, err := store.Scan(types.Criteria{})
	require.NoError(t, err)
	defer it.Cancel()
	_, ok := it.Next()
	assert.False(t, ok)
}
