package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestCurrentReturnsNotFoundForFreshDatabase(t *testing.T) {
	dir := t.TempDir()
	_, err := Current(dir)
	assert.Error(t, err)
}

func TestWriteThenCurrentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		Epoch: 1,
		Triples: map[types.Ordering][]pages.Descriptor{
			types.SPO: {{ID: 1, Path: "pages/SPO-00000001.page", Count: 2}},
		},
	}
	require.NoError(t, Write(dir, m))

	got, err := Current(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Epoch)
	assert.Len(t, got.Triples[types.SPO], 1)
}

func TestWriteNewEpochRepublishesCurrent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Manifest{Epoch: 1}))
	require.NoError(t, Write(dir, Manifest{Epoch: 2}))

	got, err := Current(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Epoch)
}

func TestListEpochsAndReadEpoch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Manifest{Epoch: 1}))
	require.NoError(t, Write(dir, Manifest{Epoch: 2}))
	require.NoError(t, Write(dir, Manifest{Epoch: 5}))

	epochs, err := ListEpochs(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 5}, epochs)

	m, err := ReadEpoch(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.Epoch)
}

func TestRemoveEpoch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Manifest{Epoch: 1}))
	require.NoError(t, RemoveEpoch(dir, 1))

	_, err := ReadEpoch(dir, 1)
	assert.Error(t, err)
}
