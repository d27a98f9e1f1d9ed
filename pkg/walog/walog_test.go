package walog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/types"
)

type fakeApplier struct {
	added   []types.EncodedTriple
	deleted []types.EncodedTriple
	nodeProps map[types.AtomID]types.PropertyMap
	labels    map[types.AtomID]types.LabelSet
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{
		nodeProps: make(map[types.AtomID]types.PropertyMap),
		labels:    make(map[types.AtomID]types.LabelSet),
	}
}

func (f *fakeApplier) ApplyAddTriple(t types.EncodedTriple) error { f.added = append(f.added, t); return nil }
func (f *fakeApplier) ApplyDelTriple(t types.EncodedTriple) error { f.deleted = append(f.deleted, t); return nil }
func (f *fakeApplier) ApplySetNodeProps(id types.AtomID, props types.PropertyMap) error {
	f.nodeProps[id] = props
	return nil
}
func (f *fakeApplier) ApplySetEdgeProps(key types.EncodedTriple, props types.PropertyMap) error {
	return nil
}
func (f *fakeApplier) ApplySetLabels(id types.AtomID, labels types.LabelSet) error {
	f.labels[id] = labels
	return nil
}

func TestCommitAppliesBatchedMutations(t *testing.T) {
	dir := t.TempDir()
	applier := newFakeApplier()
	l, err := Open(filepath.Join(dir, "wal.log"), 1000, applier)
	require.NoError(t, err)
	defer l.Close()

	b, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b, types.EncodedTriple{S: 1, P: 2, O: 3}))
	require.NoError(t, l.Commit(b, false, "", applier))

	assert.Equal(t, []types.EncodedTriple{{S: 1, P: 2, O: 3}}, applier.added)
}

func TestAbortDiscardsBatch(t *testing.T) {
	dir := t.TempDir()
	applier := newFakeApplier()
	l, err := Open(filepath.Join(dir, "wal.log"), 1000, applier)
	require.NoError(t, err)
	defer l.Close()

	b, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b, types.EncodedTriple{S: 1, P: 2, O: 3}))
	require.NoError(t, l.Abort(b))

	assert.Empty(t, applier.added)
}

func TestNestedAbortDoesNotDiscardOuterBatch(t *testing.T) {
	dir := t.TempDir()
	applier := newFakeApplier()
	l, err := Open(filepath.Join(dir, "wal.log"), 1000, applier)
	require.NoError(t, err)
	defer l.Close()

	outer, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(outer, types.EncodedTriple{S: 1, P: 1, O: 1}))

	inner, err := l.Begin(&outer)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(inner, types.EncodedTriple{S: 2, P: 2, O: 2}))
	require.NoError(t, l.Abort(inner))

	require.NoError(t, l.Commit(outer, false, "", applier))

	assert.Equal(t, []types.EncodedTriple{{S: 1, P: 1, O: 1}}, applier.added)
}

func TestIdempotentCommitIsNoOp(t *testing.T) {
	dir := t.TempDir()
	applier := newFakeApplier()
	l, err := Open(filepath.Join(dir, "wal.log"), 1000, applier)
	require.NoError(t, err)
	defer l.Close()

	b1, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b1, types.EncodedTriple{S: 1, P: 2, O: 3}))
	require.NoError(t, l.Commit(b1, false, "T1", applier))

	b2, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b2, types.EncodedTriple{S: 1, P: 2, O: 3}))
	require.NoError(t, l.Commit(b2, false, "T1", applier))

	assert.Len(t, applier.added, 1, "second commit with the same tx_id must be a no-op")
}

func TestReopenReplaysCommittedBatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	first := newFakeApplier()
	l, err := Open(path, 1000, first)
	require.NoError(t, err)

	b, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b, types.EncodedTriple{S: 9, P: 9, O: 9}))
	require.NoError(t, l.Commit(b, true, "", first))
	require.NoError(t, l.Close())

	second := newFakeApplier()
	l2, err := Open(path, 1000, second)
	require.NoError(t, err)
	defer l2.Close()

	assert.Equal(t, []types.EncodedTriple{{S: 9, P: 9, O: 9}}, second.added)
}

func TestReopenSkipsUncommittedTrailingBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	first := newFakeApplier()
	l, err := Open(path, 1000, first)
	require.NoError(t, err)

	b, err := l.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, l.AddTriple(b, types.EncodedTriple{S: 1, P: 1, O: 1}))
	// No commit: simulates a crash mid-batch.
	require.NoError(t, l.Close())

	second := newFakeApplier()
	l2, err := Open(path, 1000, second)
	require.NoError(t, err)
	defer l2.Close()

	assert.Empty(t, second.added)
}
