/*
Package nervusdb is the public facade: Open wires the dictionary, page
cache, triple store, property stores, label store, WAL, manifest,
reader registry, and compaction cycle into one handle. Mutation and
query methods live in mutate.go and queryapi.go; this file owns
lifecycle (Open/Close/Flush/Checkpoint/WithSnapshot) and the directory
layout from spec §6.

Grounded on the teacher's pkg/manager.Manager: one struct embedding
every subsystem, a Config-driven constructor, and a defer-heavy
Shutdown that stops background loops before closing underlying stores.
*/
package nervusdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/nervusdb/nervusdb/pkg/compaction"
	"github.com/nervusdb/nervusdb/pkg/config"
	"github.com/nervusdb/nervusdb/pkg/dictionary"
	"github.com/nervusdb/nervusdb/pkg/events"
	"github.com/nervusdb/nervusdb/pkg/health"
	"github.com/nervusdb/nervusdb/pkg/labelstore"
	"github.com/nervusdb/nervusdb/pkg/log"
	"github.com/nervusdb/nervusdb/pkg/manifest"
	"github.com/nervusdb/nervusdb/pkg/metrics"
	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/query"
	"github.com/nervusdb/nervusdb/pkg/readers"
	"github.com/nervusdb/nervusdb/pkg/triplestore"
	"github.com/nervusdb/nervusdb/pkg/txdedupe"
	"github.com/nervusdb/nervusdb/pkg/walog"
)

const maxAtomLen = 4096

// layout is the set of resolved paths under one database directory,
// following spec §6's on-disk layout table.
type layout struct {
	root       string
	dictLog    string
	walLog     string
	pagesDir   string
	nodePropsDir string
	edgePropsDir string
	labelsDir  string
	readersDir string
	locksDir   string
	txdedupeDB string
}

func newLayout(root string, opts config.Options) layout {
	pagesDir := opts.IndexDirectory
	if pagesDir == "" {
		pagesDir = filepath.Join(root, "pages")
	}
	return layout{
		root:         root,
		dictLog:      filepath.Join(root, "dict.log"),
		walLog:       filepath.Join(root, "wal.log"),
		pagesDir:     pagesDir,
		nodePropsDir: filepath.Join(root, "props", "nodes"),
		edgePropsDir: filepath.Join(root, "props", "edges"),
		labelsDir:    filepath.Join(root, "labels"),
		readersDir:   filepath.Join(root, "readers"),
		locksDir:     filepath.Join(root, "locks"),
		txdedupeDB:   filepath.Join(root, "txdedupe.db"),
	}
}

// DB is one open handle onto a NervusDB database directory. A process
// may open many read-only handles but spec §5 restricts it to one
// active writer per directory, enforced by the optional advisory lock.
type DB struct {
	mu      sync.Mutex // serializes the single-writer mutation path
	dir     layout
	opts    config.Options

	dict      *dictionary.Dictionary
	cache     *pages.Cache
	triples   *triplestore.Store
	nodeProps *propstore.NodeStore
	edgeProps *propstore.EdgeStore
	labels    *labelstore.Store
	wal       *walog.Log
	engine    *query.Engine
	txdedupe  *txdedupe.Store

	reader     *readers.Handle
	compactor  *compaction.Compactor
	metrics    *metrics.Collector
	events     *events.Broker
	lockFile   *os.File

	epoch      uint64
	healthStatus map[health.CheckType]*health.Status
	closed     bool
}

// Open opens (creating if absent) the database directory at path,
// merging an optional nervusdb.yaml inside it under override.
func Open(path string, override config.Options) (*DB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %v", nverrors.ErrIO, err)
	}

	fileOpts, err := config.Load(filepath.Join(path, "nervusdb.yaml"))
	if err != nil {
		return nil, err
	}
	opts := fileOpts.Merge(override)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir := newLayout(path, opts)
	db := &DB{
		dir:          dir,
		opts:         opts,
		healthStatus: make(map[health.CheckType]*health.Status),
	}

	if opts.EnableLock {
		lf, err := acquireWriterLock(dir.locksDir)
		if err != nil {
			return nil, err
		}
		db.lockFile = lf
	}

	if db.dict, err = dictionary.Open(dir.dictLog); err != nil {
		db.closeBestEffort()
		return nil, err
	}

	db.cache = pages.NewCache(defaultCachePages)
	db.triples = triplestore.Open(dir.pagesDir, db.cache)
	db.nodeProps = propstore.NewNodeStore()
	db.edgeProps = propstore.NewEdgeStore()
	db.labels = labelstore.New()

	if err := db.loadManifest(opts.RebuildIndexes); err != nil {
		db.closeBestEffort()
		return nil, err
	}

	if db.wal, err = walog.Open(dir.walLog, opts.MaxRememberTxIds, db); err != nil {
		db.closeBestEffort()
		return nil, err
	}

	if opts.EnablePersistentTxDedupe {
		if db.txdedupe, err = txdedupe.Open(dir.txdedupeDB, opts.MaxRememberTxIds); err != nil {
			db.closeBestEffort()
			return nil, err
		}
	}

	db.engine = query.New(db.triples, db.nodeProps, db.edgeProps, db.labels)

	if opts.RegisterReader {
		if db.reader, err = readers.Register(dir.readersDir, db.epoch, time.Now()); err != nil {
			db.closeBestEffort()
			return nil, err
		}
	}

	codec, err := pages.ParseCodec(string(opts.Compression.Codec))
	if err != nil {
		db.closeBestEffort()
		return nil, fmt.Errorf("%w: %v", nverrors.ErrInvalidInput, err)
	}
	db.compactor = compaction.New(compaction.Deps{
		Triples:   db.triples,
		NodeProps: db.nodeProps,
		EdgeProps: db.edgeProps,
		Labels:    db.labels,
		WAL:       db.wal,
	}, compaction.Options{
		BaseDir:      dir.root,
		NodePropsDir: dir.nodePropsDir,
		EdgePropsDir: dir.edgePropsDir,
		LabelsDir:    dir.labelsDir,
		ReadersDir:   dir.readersDir,
		PageCapacity: opts.PageSize,
		Codec:        codec,
		Level:        opts.Compression.Level,
	})

	db.metrics = metrics.NewCollector(db)
	db.metrics.Start()

	db.events = events.NewBroker()
	db.events.Start()
	db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventDBOpened, Timestamp: time.Now(), Message: dir.root})

	db.healthStatus[health.CheckTypeDiskSpace] = health.NewStatus()
	db.healthStatus[health.CheckTypeReaderStale] = health.NewStatus()
	db.healthStatus[health.CheckTypeWALSize] = health.NewStatus()

	log.WithComponent("storage").Info().Str("dir", dir.root).Uint64("epoch", db.epoch).Msg("database opened")
	return db, nil
}

const defaultCachePages = 4096

// loadManifest reads the current manifest (if any) and restores every
// store's page directory from its descriptors. rebuild (RebuildIndexes)
// is not acted on here: the manifest's descriptors are restored either
// way, and walog.Open replays every committed batch since the last
// checkpoint on top of whatever loadManifest restores here.
func (db *DB) loadManifest(rebuild bool) error {
	m, err := manifest.Current(db.dir.root)
	if errors.Is(err, nverrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	db.epoch = m.Epoch
	db.triples.OpenFromDescriptors(m.Triples)
	if m.NodeProps.Path != "" {
		if err := db.nodeProps.LoadDescriptor(m.NodeProps); err != nil {
			return err
		}
	}
	if m.EdgeProps.Path != "" {
		if err := db.edgeProps.LoadDescriptor(m.EdgeProps); err != nil {
			return err
		}
	}
	if m.Labels.Path != "" {
		if err := db.labels.LoadDescriptor(m.Labels); err != nil {
			return err
		}
	}
	_ = rebuild // RebuildIndexes forces compaction to re-materialize on next Checkpoint; nothing more to do at open time
	return nil
}

func acquireWriterLock(locksDir string) (*os.File, error) {
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating locks directory: %v", nverrors.ErrIO, err)
	}
	path := filepath.Join(locksDir, "writer.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening writer lock: %v", nverrors.ErrIO, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: another process holds the writer lock: %v", nverrors.ErrConflict, err)
	}
	return f, nil
}

// Close stops background activity and releases every file handle this
// handle owns. It does not remove any on-disk state.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	if db.events != nil {
		db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventDBClosed, Timestamp: time.Now()})
		if n := db.events.SubscriberCount(); n > 0 {
			log.WithComponent("storage").Warn().Int("subscribers", n).Msg("closing with live event subscribers")
		}
		db.events.Stop()
	}
	if db.metrics != nil {
		db.metrics.Stop()
	}
	if db.compactor != nil {
		db.compactor.Stop()
	}

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.reader != nil {
		note(db.reader.Close())
	}
	if db.txdedupe != nil {
		note(db.txdedupe.Close())
	}
	if db.wal != nil {
		note(db.wal.Close())
	}
	if db.dict != nil {
		note(db.dict.Close())
	}
	if db.lockFile != nil {
		note(releaseWriterLock(db.lockFile))
	}
	return firstErr
}

func releaseWriterLock(f *os.File) error {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}

// closeBestEffort is used on an Open failure path to unwind whatever
// was already acquired, discarding further errors: the caller only
// sees the original failure.
func (db *DB) closeBestEffort() {
	_ = db.Close()
}

// Flush persists the dictionary, fsyncing it when durable is true. It
// does not touch the WAL (a batch committed with durable=true is fsynced
// by CommitBatch itself) and does not materialize pages; call Checkpoint
// for that.
func (db *DB) Flush(durable bool) error {
	if err := db.dict.Flush(durable); err != nil {
		return err
	}
	return nil
}

// Checkpoint runs one compaction cycle synchronously: materialize
// staged mutations into fresh pages, publish the next epoch, garbage
// collect superseded files below the oldest pinned reader epoch, and
// truncate the WAL.
func (db *DB) Checkpoint() (manifest.Manifest, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventCheckpointStarted, Timestamp: time.Now()})
	m, err := db.compactor.Run()
	if err != nil {
		db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventCompactionFailed, Timestamp: time.Now(), Message: err.Error()})
		return manifest.Manifest{}, err
	}
	db.epoch = m.Epoch
	log.WithEpoch(m.Epoch).Info().Msg("checkpoint complete")
	db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventCheckpointDone, Timestamp: time.Now()})
	return m, nil
}

// StartBackgroundCompaction begins the opportunistic compaction loop
// with the given tick interval, replacing the one-shot Checkpoint call
// as the primary path to reclaiming space.
func (db *DB) StartBackgroundCompaction(interval time.Duration) {
	db.compactor = compaction.New(compaction.Deps{
		Triples:   db.triples,
		NodeProps: db.nodeProps,
		EdgeProps: db.edgeProps,
		Labels:    db.labels,
		WAL:       db.wal,
	}, compaction.Options{
		BaseDir:      db.dir.root,
		NodePropsDir: db.dir.nodePropsDir,
		EdgePropsDir: db.dir.edgePropsDir,
		LabelsDir:    db.dir.labelsDir,
		ReadersDir:   db.dir.readersDir,
		PageCapacity: db.opts.PageSize,
		Interval:     interval,
	})
	db.compactor.Start()
}

// WithSnapshot pins the database's current epoch, runs fn against a
// read-only view frozen at that instant, and always releases the pin
// afterward, even if fn panics or returns an error — grounded on the
// teacher's defer-heavy resource release throughout pkg/manager.
//
// The view is isolated from concurrent writers: triples, node/edge
// properties, and labels are each cloned under db.mu before fn ever
// runs, so a commit landing after the pin is invisible to snap.Engine()
// even though it is visible through db.Engine() immediately. Cloning
// the paged indexes is cheap (page files are immutable until the next
// Materialize; only the directory slice is copied) — the staging
// overlay and the property/label maps are the parts that actually need
// a deep copy, since those mutate in place between checkpoints.
func (db *DB) WithSnapshot(fn func(ctx context.Context, snap *Snapshot) error) (err error) {
	ctx := context.Background()

	db.mu.Lock()
	epoch := db.epoch
	frozen := query.New(
		db.triples.Snapshot(),
		db.nodeProps.Snapshot(),
		db.edgeProps.Snapshot(),
		db.labels.Snapshot(),
	)
	db.mu.Unlock()

	handle := db.reader
	if db.opts.RegisterReader {
		h, rerr := readers.Register(db.dir.readersDir, epoch, time.Now())
		if rerr != nil {
			return rerr
		}
		handle = h
		defer func() {
			db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventReaderClosed, Timestamp: time.Now()})
			_ = handle.Close()
		}()
		db.events.Publish(&events.Event{ID: uuid.NewString(), Type: events.EventReaderRegistered, Timestamp: time.Now()})
	}
	snap := &Snapshot{db: db, epoch: epoch, engine: frozen}
	return fn(ctx, snap)
}

// Snapshot is the read-only view WithSnapshot hands to its callback,
// pinned at one epoch for the duration of the call. Its engine reads
// from cloned stores frozen at pin time, never from db's live stores.
type Snapshot struct {
	db     *DB
	epoch  uint64
	engine *query.Engine
}

// Epoch reports the epoch this snapshot is pinned at.
func (s *Snapshot) Epoch() uint64 { return s.epoch }

// Engine exposes the query engine for read access within the snapshot,
// scoped to the stores frozen when the snapshot was opened.
func (s *Snapshot) Engine() *query.Engine { return s.engine }

// Engine exposes the query engine directly, for callers not using
// WithSnapshot (e.g. within an already-pinned reader loop).
func (db *DB) Engine() *query.Engine { return db.engine }

// healthStartPeriod is how long after Open a failing checker is still
// reported healthy: right after Open there are no readers yet and the
// WAL may still be replaying, both of which can look alarming to a
// checker that doesn't know it's running during startup.
const healthStartPeriod = 5 * time.Second

// Health runs every registered checker once and returns the combined
// status, the basis for a liveness/readiness probe over an embedded
// handle.
func (db *DB) Health(ctx context.Context) map[health.CheckType]health.Result {
	checkers := []health.Checker{
		health.NewDiskSpaceChecker(db.dir.root),
		health.NewReaderStalenessChecker(db.dir.readersDir, 2*time.Minute),
		health.NewWALSizeChecker(db.dir.walLog),
	}
	cfg := health.DefaultConfig()
	cfg.StartPeriod = healthStartPeriod
	out := make(map[health.CheckType]health.Result, len(checkers))
	for _, c := range checkers {
		result := c.Check(ctx)
		if status, ok := db.healthStatus[c.Type()]; ok {
			status.Update(result, cfg)
			if !result.Healthy && status.InStartPeriod(cfg) {
				result.Healthy = true
			}
		}
		out[c.Type()] = result
	}
	return out
}

// Events returns the lifecycle event broker so an embedding process can
// subscribe without polling metrics.
func (db *DB) Events() *events.Broker { return db.events }

// RecentEvents returns up to n of the most recently published lifecycle
// events without requiring a prior Subscribe, for a caller that only
// wants to inspect activity after the fact (e.g. alongside a Health
// probe).
func (db *DB) RecentEvents(n int) []*events.Event { return db.events.Recent(n) }

// CacheLen implements metrics.Source.
func (db *DB) CacheLen() int { return db.cache.Len() }

// CurrentEpoch implements metrics.Source.
func (db *DB) CurrentEpoch() uint64 { return db.epoch }

// ActiveReaderCount implements metrics.Source.
func (db *DB) ActiveReaderCount() (int, error) {
	active, err := readers.ActiveEpochs(db.dir.readersDir, 2*time.Minute)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}
