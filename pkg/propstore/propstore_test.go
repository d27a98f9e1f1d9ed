package propstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestNodeStoreSetGetRoundTrip(t *testing.T) {
	s := NewNodeStore()
	m := types.PropertyMap{"name": types.NewString("ada"), "age": types.NewInt(30)}
	s.Set(types.AtomID(1), m)

	got, ok := s.Get(types.AtomID(1))
	require.True(t, ok)
	assert.True(t, got["name"].Equal(types.NewString("ada")))
	assert.True(t, got["age"].Equal(types.NewInt(30)))
}

func TestNodeStoreQueryEquality(t *testing.T) {
	s := NewNodeStore()
	s.Set(types.AtomID(1), types.PropertyMap{"role": types.NewString("admin")})
	s.Set(types.AtomID(2), types.PropertyMap{"role": types.NewString("user")})
	s.Set(types.AtomID(3), types.PropertyMap{"role": types.NewString("admin")})

	ids := s.Query("role", OpEq, types.NewString("admin"))
	assert.ElementsMatch(t, []types.AtomID{1, 3}, ids)
}

func TestNodeStoreQueryRange(t *testing.T) {
	s := NewNodeStore()
	for i := 1; i <= 5; i++ {
		s.Set(types.AtomID(i), types.PropertyMap{"age": types.NewInt(int64(i * 10))})
	}

	ids := s.Query("age", OpGte, types.NewInt(30))
	assert.ElementsMatch(t, []types.AtomID{3, 4, 5}, ids)

	ids = s.Query("age", OpBetween, types.NewInt(20), types.NewInt(40))
	assert.ElementsMatch(t, []types.AtomID{2, 3, 4}, ids)
}

func TestNodeStoreSetReindexesOnOverwrite(t *testing.T) {
	s := NewNodeStore()
	s.Set(types.AtomID(1), types.PropertyMap{"role": types.NewString("admin")})
	s.Set(types.AtomID(1), types.PropertyMap{"role": types.NewString("user")})

	assert.Empty(t, s.Query("role", OpEq, types.NewString("admin")))
	assert.ElementsMatch(t, []types.AtomID{1}, s.Query("role", OpEq, types.NewString("user")))
}

func TestNodeStoreMaterializeAndReload(t *testing.T) {
	dir := t.TempDir()
	s := NewNodeStore()
	s.Set(types.AtomID(1), types.PropertyMap{"name": types.NewString("ada")})
	s.Set(types.AtomID(2), types.PropertyMap{"name": types.NewString("grace")})

	desc, err := s.Materialize(dir, 1, pages.CodecGeneric, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nodeprops-00000001.page"), desc.Path)

	reloaded := NewNodeStore()
	require.NoError(t, reloaded.LoadDescriptor(desc))

	got, ok := reloaded.Get(types.AtomID(1))
	require.True(t, ok)
	assert.True(t, got["name"].Equal(types.NewString("ada")))

	ids := reloaded.Query("name", OpEq, types.NewString("grace"))
	assert.ElementsMatch(t, []types.AtomID{2}, ids)
}

func TestEdgeStoreSetGetAndQuery(t *testing.T) {
	s := NewEdgeStore()
	key := types.EncodedTriple{S: 1, P: 2, O: 3}
	s.Set(key, types.PropertyMap{"weight": types.NewFloat(1.5)})

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, got["weight"].Equal(types.NewFloat(1.5)))

	keys := s.Query("weight", OpEq, types.NewFloat(1.5))
	assert.ElementsMatch(t, []types.EncodedTriple{key}, keys)
}

func TestEdgeStoreMaterializeAndReload(t *testing.T) {
	dir := t.TempDir()
	s := NewEdgeStore()
	key := types.EncodedTriple{S: 1, P: 2, O: 3}
	s.Set(key, types.PropertyMap{"weight": types.NewFloat(2.5)})

	desc, err := s.Materialize(dir, 1, pages.CodecNone, 3)
	require.NoError(t, err)

	reloaded := NewEdgeStore()
	require.NoError(t, reloaded.LoadDescriptor(desc))
	got, ok := reloaded.Get(key)
	require.True(t, ok)
	assert.True(t, got["weight"].Equal(types.NewFloat(2.5)))
}
