package compaction

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/manifest"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/readers"
	"github.com/nervusdb/nervusdb/pkg/triplestore"
	"github.com/nervusdb/nervusdb/pkg/types"
	"github.com/nervusdb/nervusdb/pkg/walog"
)

type applier struct {
	triples   *triplestore.Store
	nodeProps *propstore.NodeStore
	edgeProps *propstore.EdgeStore
	labels    *labelstore.Store
}

func (a *applier) ApplyAddTriple(t types.EncodedTriple) error { a.triples.Add(t); return nil }
func (a *applier) ApplyDelTriple(t types.EncodedTriple) error { a.triples.Del(t); return nil }
func (a *applier) ApplySetNodeProps(id types.AtomID, m types.PropertyMap) error {
	a.nodeProps.Set(id, m)
	return nil
}
func (a *applier) ApplySetEdgeProps(key types.EncodedTriple, m types.PropertyMap) error {
	a.edgeProps.Set(key, m)
	return nil
}
func (a *applier) ApplySetLabels(id types.AtomID, labels types.LabelSet) error {
	a.labels.SetLabels(id, labels)
	return nil
}

type harness struct {
	dir       string
	deps      Deps
	opts      Options
	app       *applier
	wal       *walog.Log
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cache := pages.NewCache(64)
	triples := triplestore.Open(filepath.Join(dir, "pages"), cache)
	nodeProps := propstore.NewNodeStore()
	edgeProps := propstore.NewEdgeStore()
	labels := labelstore.New()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))

	app := &applier{triples: triples, nodeProps: nodeProps, edgeProps: edgeProps, labels: labels}
	wal, err := walog.Open(filepath.Join(dir, "wal.log"), 1000, app)
	require.NoError(t, err)

	deps := Deps{Triples: triples, NodeProps: nodeProps, EdgeProps: edgeProps, Labels: labels, WAL: wal}
	opts := Options{
		BaseDir:      dir,
		NodePropsDir: filepath.Join(dir, "props", "nodes"),
		EdgePropsDir: filepath.Join(dir, "props", "edges"),
		LabelsDir:    filepath.Join(dir, "labels"),
		ReadersDir:   filepath.Join(dir, "readers"),
		PageCapacity: 10,
	}
	return &harness{dir: dir, deps: deps, opts: opts, app: app, wal: wal}
}

func TestRunPublishesFirstEpoch(t *testing.T) {
	h := newHarness(t)
	h.deps.Triples.Add(types.EncodedTriple{S: 1, P: 2, O: 3})

	c := New(h.deps, h.opts)
	m, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Epoch)

	current, err := manifest.Current(h.opts.BaseDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Epoch)
}

func TestRunTruncatesWAL(t *testing.T) {
	h := newHarness(t)
	b, err := h.wal.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, h.wal.AddTriple(b, types.EncodedTriple{S: 1, P: 2, O: 3}))
	require.NoError(t, h.wal.Commit(b, true, "", h.app))

	info, err := os.Stat(filepath.Join(h.dir, "wal.log"))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	c := New(h.deps, h.opts)
	_, err = c.Run()
	require.NoError(t, err)

	info, err = os.Stat(filepath.Join(h.dir, "wal.log"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestSecondCycleGCsFirstEpochWhenNoReadersPinned(t *testing.T) {
	h := newHarness(t)
	h.deps.Triples.Add(types.EncodedTriple{S: 1, P: 2, O: 3})

	c := New(h.deps, h.opts)
	first, err := c.Run()
	require.NoError(t, err)
	firstPagePath := first.Triples[types.SPO][0].Path
	_, statErr := os.Stat(firstPagePath)
	require.NoError(t, statErr)

	h.deps.Triples.Add(types.EncodedTriple{S: 4, P: 5, O: 6})
	_, err = c.Run()
	require.NoError(t, err)

	_, err = manifest.ReadEpoch(h.opts.BaseDir, first.Epoch)
	assert.Error(t, err, "superseded manifest should have been removed")
	_, statErr = os.Stat(firstPagePath)
	assert.True(t, os.IsNotExist(statErr), "superseded page file should have been removed")
}

func TestSecondCycleKeepsFirstEpochWhileReaderPinned(t *testing.T) {
	h := newHarness(t)
	h.deps.Triples.Add(types.EncodedTriple{S: 1, P: 2, O: 3})

	c := New(h.deps, h.opts)
	first, err := c.Run()
	require.NoError(t, err)

	handle, err := readers.Register(h.opts.ReadersDir, first.Epoch, time.Now())
	require.NoError(t, err)
	defer handle.Close()

	h.deps.Triples.Add(types.EncodedTriple{S: 4, P: 5, O: 6})
	_, err = c.Run()
	require.NoError(t, err)

	_, err = manifest.ReadEpoch(h.opts.BaseDir, first.Epoch)
	assert.NoError(t, err, "manifest pinned by an active reader must survive GC")
}

func TestStartStopRunsOnTicker(t *testing.T) {
	h := newHarness(t)
	h.deps.Triples.Add(types.EncodedTriple{S: 1, P: 2, O: 3})
	h.opts.Interval = 10 * time.Millisecond

	c := New(h.deps, h.opts)
	c.Start()
	defer c.Stop()

	require.Eventually(t, func() bool {
		_, err := manifest.Current(h.opts.BaseDir)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}
