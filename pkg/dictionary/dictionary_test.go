package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternAssignsStableGapFreeIDs(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "dict.log"))
	require.NoError(t, err)
	defer d.Close()

	id1, err := d.Intern("Alice")
	require.NoError(t, err)
	id2, err := d.Intern("Bob")
	require.NoError(t, err)
	id1Again, err := d.Intern("Alice")
	require.NoError(t, err)

	assert.Equal(t, id1, id1Again, "re-interning must return the same ID")
	assert.NotEqual(t, id1, id2)
	assert.True(t, id1.Valid())

	atom, ok := d.Lookup(id1)
	assert.True(t, ok)
	assert.Equal(t, "Alice", atom)
}

func TestInternRejectsEmptyAtom(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "dict.log"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Intern("")
	assert.Error(t, err)
}

func TestReopenRebuildsIndexFromLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.log")

	d1, err := Open(path)
	require.NoError(t, err)
	idAlice, err := d1.Intern("Alice")
	require.NoError(t, err)
	idBob, err := d1.Intern("Bob")
	require.NoError(t, err)
	require.NoError(t, d1.Flush(true))
	require.NoError(t, d1.Close())

	d2, err := Open(path)
	require.NoError(t, err)
	defer d2.Close()

	gotAlice, ok := d2.Reverse("Alice")
	assert.True(t, ok)
	assert.Equal(t, idAlice, gotAlice)

	gotBob, ok := d2.Reverse("Bob")
	assert.True(t, ok)
	assert.Equal(t, idBob, gotBob)

	// A third atom interned after reopen must not reuse an existing ID.
	idCarol, err := d2.Intern("Carol")
	require.NoError(t, err)
	assert.NotEqual(t, idAlice, idCarol)
	assert.NotEqual(t, idBob, idCarol)
}

func TestCorruptedTrailingRecordIsTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.log")

	d1, err := Open(path)
	require.NoError(t, err)
	_, err = d1.Intern("Alice")
	require.NoError(t, err)
	require.NoError(t, d1.Flush(true))
	require.NoError(t, d1.Close())

	// Append a partial, bogus trailing record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	d2, err := Open(path)
	require.NoError(t, err)
	defer d2.Close()

	assert.Greater(t, d2.Discarded(), int64(0))
	id, ok := d2.Reverse("Alice")
	assert.True(t, ok)
	assert.True(t, id.Valid())
}
