package labelstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestSetAndGetLabels(t *testing.T) {
	s := New()
	s.SetLabels(types.AtomID(1), types.NewLabelSet("person", "employee"))

	got := s.GetLabels(types.AtomID(1))
	assert.True(t, got.Has("person"))
	assert.True(t, got.Has("employee"))
	assert.False(t, got.Has("robot"))
}

func TestFindByLabelAnyAndAll(t *testing.T) {
	s := New()
	s.SetLabels(types.AtomID(1), types.NewLabelSet("person", "employee"))
	s.SetLabels(types.AtomID(2), types.NewLabelSet("person"))
	s.SetLabels(types.AtomID(3), types.NewLabelSet("employee"))

	any := s.FindByLabel(types.LabelMatchAny, "person", "employee")
	assert.ElementsMatch(t, []types.AtomID{1, 2, 3}, any)

	all := s.FindByLabel(types.LabelMatchAll, "person", "employee")
	assert.ElementsMatch(t, []types.AtomID{1}, all)
}

func TestSetLabelsReindexesOnOverwrite(t *testing.T) {
	s := New()
	s.SetLabels(types.AtomID(1), types.NewLabelSet("person"))
	s.SetLabels(types.AtomID(1), types.NewLabelSet("robot"))

	assert.Empty(t, s.FindByLabel(types.LabelMatchAny, "person"))
	assert.ElementsMatch(t, []types.AtomID{1}, s.FindByLabel(types.LabelMatchAny, "robot"))
}

func TestMaterializeAndReload(t *testing.T) {
	dir := t.TempDir()
	s := New()
	s.SetLabels(types.AtomID(1), types.NewLabelSet("person", "employee"))
	s.SetLabels(types.AtomID(2), types.NewLabelSet("person"))

	desc, err := s.Materialize(dir, 1, pages.CodecGeneric, 3)
	require.NoError(t, err)

	reloaded := New()
	require.NoError(t, reloaded.LoadDescriptor(desc))

	assert.True(t, reloaded.GetLabels(types.AtomID(1)).Has("employee"))
	assert.ElementsMatch(t, []types.AtomID{1, 2}, reloaded.FindByLabel(types.LabelMatchAny, "person"))
}
