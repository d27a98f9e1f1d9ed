package compaction

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/log"
	"github.com/nervusdb/nervusdb/pkg/manifest"
	"github.com/nervusdb/nervusdb/pkg/metrics"
	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/readers"
	"github.com/nervusdb/nervusdb/pkg/triplestore"
	"github.com/nervusdb/nervusdb/pkg/walog"
)

// Deps are the live stores one compaction cycle rewrites.
type Deps struct {
	Triples   *triplestore.Store
	NodeProps *propstore.NodeStore
	EdgeProps *propstore.EdgeStore
	Labels    *labelstore.Store
	WAL       *walog.Log
}

// Options configures where a cycle publishes its output and how it
// judges a page safe to delete.
type Options struct {
	BaseDir          string // holds CURRENT and manifest.<epoch>
	NodePropsDir     string
	EdgePropsDir     string
	LabelsDir        string
	ReadersDir       string
	PageCapacity     int
	Codec            pages.Codec
	Level            int
	ReaderStaleAfter time.Duration
	Interval         time.Duration // ticker period for Start
}

func (o *Options) setDefaults() {
	if o.PageCapacity <= 0 {
		o.PageCapacity = 1000
	}
	if o.ReaderStaleAfter <= 0 {
		o.ReaderStaleAfter = 2 * time.Minute
	}
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
}

// Compactor runs the materialize-manifest-GC cycle described in the
// package doc, either on its own ticker or driven explicitly by a
// caller's flush/checkpoint/close.
type Compactor struct {
	mu     sync.Mutex
	deps   Deps
	opts   Options
	logger zerolog.Logger
	stopCh chan struct{}
}

// New builds a Compactor. Call Start to run it opportunistically, or
// call Run directly from flush/checkpoint/close.
func New(deps Deps, opts Options) *Compactor {
	opts.setDefaults()
	return &Compactor{
		deps:   deps,
		opts:   opts,
		logger: log.WithComponent("compaction"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the opportunistic compaction loop.
func (c *Compactor) Start() {
	go c.run()
}

// Stop stops the loop started by Start. It does not cancel a cycle in
// progress.
func (c *Compactor) Stop() {
	close(c.stopCh)
}

func (c *Compactor) run() {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.Run(); err != nil {
				c.logger.Error().Err(err).Msg("compaction cycle failed")
			}
		case <-c.stopCh:
			return
		}
	}
}

// Run executes one compaction cycle: materialize, publish epoch E+1,
// compute oldest_pinned from the reader registry, delete superseded
// files strictly older than it, and truncate the WAL. It returns the
// newly published manifest.
func (c *Compactor) Run() (manifest.Manifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.CompactionDuration)
		metrics.CompactionCyclesTotal.Inc()
	}()

	previous, err := manifest.Current(c.opts.BaseDir)
	nextEpoch := uint64(1)
	switch {
	case err == nil:
		nextEpoch = previous.Epoch + 1
	case errors.Is(err, nverrors.ErrNotFound):
		// fresh database: start at epoch 1
	default:
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: reading current manifest: %w", err)
	}

	tripleDescs, err := c.deps.Triples.Materialize(c.opts.PageCapacity, c.opts.Codec, c.opts.Level)
	if err != nil {
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: materializing triples: %w", err)
	}

	for _, dir := range []string{c.opts.NodePropsDir, c.opts.EdgePropsDir, c.opts.LabelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			metrics.CompactionFailuresTotal.Inc()
			return manifest.Manifest{}, fmt.Errorf("%w: creating %s: %v", nverrors.ErrIO, dir, err)
		}
	}

	nodeDesc, err := c.deps.NodeProps.Materialize(c.opts.NodePropsDir, nextEpoch, c.opts.Codec, c.opts.Level)
	if err != nil {
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: materializing node properties: %w", err)
	}
	edgeDesc, err := c.deps.EdgeProps.Materialize(c.opts.EdgePropsDir, nextEpoch, c.opts.Codec, c.opts.Level)
	if err != nil {
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: materializing edge properties: %w", err)
	}
	labelDesc, err := c.deps.Labels.Materialize(c.opts.LabelsDir, nextEpoch, c.opts.Codec, c.opts.Level)
	if err != nil {
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: materializing labels: %w", err)
	}

	m := manifest.Manifest{
		Epoch:     nextEpoch,
		Triples:   tripleDescs,
		NodeProps: nodeDesc,
		EdgeProps: edgeDesc,
		Labels:    labelDesc,
	}
	if err := manifest.Write(c.opts.BaseDir, m); err != nil {
		metrics.CompactionFailuresTotal.Inc()
		return manifest.Manifest{}, fmt.Errorf("compaction: publishing epoch %d: %w", nextEpoch, err)
	}
	metrics.CurrentEpoch.Set(float64(nextEpoch))

	active, err := readers.ActiveEpochs(c.opts.ReadersDir, c.opts.ReaderStaleAfter)
	if err != nil {
		c.logger.Warn().Err(err).Msg("listing active readers for gc floor")
		active = nil
	}
	metrics.ActiveReaders.Set(float64(len(active)))
	oldestPinned := readers.OldestPinned(active, nextEpoch)

	if err := c.garbageCollect(oldestPinned, nextEpoch); err != nil {
		c.logger.Warn().Err(err).Msg("garbage collection failed, superseded files remain for next cycle")
	}

	if err := c.deps.WAL.Truncate(); err != nil {
		return m, fmt.Errorf("compaction: truncating wal after publishing epoch %d: %w", nextEpoch, err)
	}

	c.logger.Info().
		Uint64("epoch", nextEpoch).
		Uint64("oldest_pinned", oldestPinned).
		Msg("compaction cycle complete")
	return m, nil
}

// garbageCollect removes every manifest, page, property, and label
// file belonging to an epoch strictly older than oldestPinned, other
// than keepEpoch (the one just published). A manifest that fails to
// read is skipped rather than guessed at; it is retried next cycle.
func (c *Compactor) garbageCollect(oldestPinned, keepEpoch uint64) error {
	epochs, err := manifest.ListEpochs(c.opts.BaseDir)
	if err != nil {
		return err
	}
	for _, epoch := range epochs {
		if epoch == keepEpoch || epoch >= oldestPinned {
			continue
		}
		old, err := manifest.ReadEpoch(c.opts.BaseDir, epoch)
		if err != nil {
			continue
		}
		for _, descs := range old.Triples {
			for _, d := range descs {
				c.removeFile(d.Path)
			}
		}
		c.removeFile(old.NodeProps.Path)
		c.removeFile(old.EdgeProps.Path)
		c.removeFile(old.Labels.Path)
		if err := manifest.RemoveEpoch(c.opts.BaseDir, epoch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compactor) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err == nil {
		metrics.PagesGCedTotal.Inc()
	} else if !os.IsNotExist(err) {
		c.logger.Warn().Err(err).Str("path", path).Msg("failed to remove superseded file")
	}
}
