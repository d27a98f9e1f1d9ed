package readers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndActiveEpochs(t *testing.T) {
	dir := t.TempDir()
	h, err := Register(dir, 5, time.Now())
	require.NoError(t, err)
	defer h.Close()

	epochs, err := ActiveEpochs(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, epochs)
}

func TestHeartbeatUpdatesPinnedEpoch(t *testing.T) {
	dir := t.TempDir()
	h, err := Register(dir, 1, time.Now())
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Heartbeat(2))

	epochs, err := ActiveEpochs(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, epochs)
}

func TestCloseRemovesRegistration(t *testing.T) {
	dir := t.TempDir()
	h, err := Register(dir, 1, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.Close())

	epochs, err := ActiveEpochs(dir, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, epochs)
}

func TestOldestPinnedIsMinimum(t *testing.T) {
	assert.Equal(t, uint64(3), OldestPinned([]uint64{5, 3, 7}, 10))
	assert.Equal(t, uint64(10), OldestPinned(nil, 10))
}
