package walog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/types"
)

const frameHeaderSize = 4 + 4 // length + crc32

// BatchHandle identifies one open (possibly nested) batch.
type BatchHandle struct {
	ID     uint64
	parent uint64
}

// Log is the write-ahead log: a framed, CRC32-checked record stream plus
// the in-memory nesting/idempotence bookkeeping needed to know, at
// commit time, which records a batch tree actually contains.
type Log struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	nextBatchID uint64

	parent   map[uint64]uint64
	children map[uint64][]uint64
	pending  map[uint64][]Record
	aborted  map[uint64]bool

	maxRememberTxIds int
	seenTx           map[string]struct{}
	txOrder          []string
}

// Open opens (creating if absent) the WAL at path and replays every
// complete, committed batch through apply in commit order. Records
// belonging to a batch with no terminating Commit, or under an Abort,
// are treated as if they never happened.
func Open(path string, maxRememberTxIds int, apply Applier) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}
	if maxRememberTxIds <= 0 {
		maxRememberTxIds = 1000
	}
	l := &Log{
		path:              path,
		file:              f,
		nextBatchID:       1,
		parent:            make(map[uint64]uint64),
		children:          make(map[uint64][]uint64),
		pending:           make(map[uint64][]Record),
		aborted:           make(map[uint64]bool),
		maxRememberTxIds:  maxRememberTxIds,
		seenTx:            make(map[string]struct{}),
	}
	if err := l.replay(apply); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) replay(apply Applier) error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("walog: seek: %w", err)
	}
	r := bufio.NewReader(l.file)
	var offset int64
	header := make([]byte, frameHeaderSize)
	var maxBatchID uint64

	for {
		n, err := io.ReadFull(r, header)
		if err == io.EOF {
			break
		}
		if err != nil || n < frameHeaderSize {
			break
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		wantCRC := binary.LittleEndian.Uint32(header[4:8])
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			break
		}
		if crc32.ChecksumIEEE(body) != wantCRC {
			break
		}

		rec, err := decodeRecord(body)
		if err != nil {
			break
		}
		if rec.BatchID > maxBatchID {
			maxBatchID = rec.BatchID
		}
		l.replayOne(rec, apply)
		offset += int64(frameHeaderSize) + int64(length)
	}

	info, err := l.file.Stat()
	if err == nil && info.Size() > offset {
		if err := l.file.Truncate(offset); err != nil {
			return fmt.Errorf("%w: truncating corrupted WAL tail: %v", nverrors.ErrCorruptedStore, err)
		}
	}
	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("walog: seek end: %w", err)
	}

	l.nextBatchID = maxBatchID + 1
	// Any batch left pending here has no terminating Commit/Abort: an
	// in-flight write at crash time, invisible by construction.
	l.pending = make(map[uint64][]Record)
	l.aborted = make(map[uint64]bool)
	l.children = make(map[uint64][]uint64)
	l.parent = make(map[uint64]uint64)
	return nil
}

func (l *Log) replayOne(rec Record, apply Applier) {
	switch rec.Kind {
	case KindBegin:
		// Parent nesting during replay is irrelevant once flattened by
		// an earlier Commit's fold; a bare Begin starts a fresh root.
	case KindAddTriple, KindDelTriple, KindSetNodeProps, KindSetEdgeProps, KindSetLabels:
		l.pending[rec.BatchID] = append(l.pending[rec.BatchID], rec)
	case KindAbort:
		delete(l.pending, rec.BatchID)
		l.aborted[rec.BatchID] = true
	case KindCommit:
		if rec.Dup {
			return
		}
		if rec.TxID != "" {
			l.rememberTx(rec.TxID)
		}
		for _, m := range l.pending[rec.BatchID] {
			applyRecord(m, apply)
		}
		delete(l.pending, rec.BatchID)
	}
}

func applyRecord(rec Record, apply Applier) {
	switch rec.Kind {
	case KindAddTriple:
		_ = apply.ApplyAddTriple(rec.Triple)
	case KindDelTriple:
		_ = apply.ApplyDelTriple(rec.Triple)
	case KindSetNodeProps:
		_ = apply.ApplySetNodeProps(rec.NodeID, rec.Props)
	case KindSetEdgeProps:
		_ = apply.ApplySetEdgeProps(rec.Triple, rec.Props)
	case KindSetLabels:
		_ = apply.ApplySetLabels(rec.NodeID, types.NewLabelSet(rec.Labels...))
	}
}

func (l *Log) rememberTx(txID string) {
	if _, ok := l.seenTx[txID]; ok {
		return
	}
	l.seenTx[txID] = struct{}{}
	l.txOrder = append(l.txOrder, txID)
	if len(l.txOrder) > l.maxRememberTxIds {
		oldest := l.txOrder[0]
		l.txOrder = l.txOrder[1:]
		delete(l.seenTx, oldest)
	}
}

// Begin opens a new batch, nested under parent if non-nil.
func (l *Log) Begin(parent *BatchHandle) (BatchHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextBatchID
	l.nextBatchID++
	var parentID uint64
	if parent != nil {
		parentID = parent.ID
	}
	l.parent[id] = parentID
	l.children[parentID] = append(l.children[parentID], id)
	if err := l.appendFramed(Record{Kind: KindBegin, BatchID: id}); err != nil {
		return BatchHandle{}, err
	}
	return BatchHandle{ID: id, parent: parentID}, nil
}

// AddTriple, DelTriple, SetNodeProps, SetEdgeProps, and SetLabels each
// append a mutation record to the log and stage it under b for
// materialization at commit time.
func (l *Log) AddTriple(b BatchHandle, t types.EncodedTriple) error {
	return l.stage(Record{Kind: KindAddTriple, BatchID: b.ID, Triple: t})
}

func (l *Log) DelTriple(b BatchHandle, t types.EncodedTriple) error {
	return l.stage(Record{Kind: KindDelTriple, BatchID: b.ID, Triple: t})
}

func (l *Log) SetNodeProps(b BatchHandle, id types.AtomID, props types.PropertyMap) error {
	return l.stage(Record{Kind: KindSetNodeProps, BatchID: b.ID, NodeID: id, Props: props})
}

func (l *Log) SetEdgeProps(b BatchHandle, key types.EncodedTriple, props types.PropertyMap) error {
	return l.stage(Record{Kind: KindSetEdgeProps, BatchID: b.ID, Triple: key, Props: props})
}

func (l *Log) SetLabels(b BatchHandle, id types.AtomID, labels types.LabelSet) error {
	return l.stage(Record{Kind: KindSetLabels, BatchID: b.ID, NodeID: id, Labels: labels.Slice()})
}

func (l *Log) stage(rec Record) error {
	if err := l.appendFramed(rec); err != nil {
		return err
	}
	l.mu.Lock()
	l.pending[rec.BatchID] = append(l.pending[rec.BatchID], rec)
	l.mu.Unlock()
	return nil
}

// Abort discards b and every batch nested under it. Records already
// written to disk remain (the log is append-only) but are skipped on
// replay and never folded into an ancestor's commit.
func (l *Log) Abort(b BatchHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.appendFramed(Record{Kind: KindAbort, BatchID: b.ID}); err != nil {
		return err
	}
	for _, id := range l.descendantsLocked(b.ID) {
		delete(l.pending, id)
		l.aborted[id] = true
	}
	return nil
}

// Commit closes b. A nested commit (b has a parent) folds b's surviving
// records into its parent so the outermost Commit applies the whole
// tree atomically. An outermost commit (b has no parent) applies every
// surviving record through apply, in the order staged, honors
// idempotence against txID, and forces fsync when durable is true.
func (l *Log) Commit(b BatchHandle, durable bool, txID string, apply Applier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if txID != "" {
		if _, dup := l.seenTx[txID]; dup {
			if err := l.appendFramed(Record{Kind: KindCommit, BatchID: b.ID, TxID: txID, Durable: durable, Dup: true}); err != nil {
				return err
			}
			delete(l.pending, b.ID)
			return nil
		}
	}

	if err := l.appendFramed(Record{Kind: KindCommit, BatchID: b.ID, TxID: txID, Durable: durable}); err != nil {
		return err
	}

	if b.parent != 0 {
		l.pending[b.parent] = append(l.pending[b.parent], l.pending[b.ID]...)
		delete(l.pending, b.ID)
		return nil
	}

	records := l.pending[b.ID]
	delete(l.pending, b.ID)
	for _, rec := range records {
		if err := applyMutation(rec, apply); err != nil {
			return err
		}
	}
	if txID != "" {
		l.rememberTx(txID)
	}
	if durable {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("%w: wal fsync: %v", nverrors.ErrIO, err)
		}
	}
	return nil
}

func applyMutation(rec Record, apply Applier) error {
	switch rec.Kind {
	case KindAddTriple:
		return apply.ApplyAddTriple(rec.Triple)
	case KindDelTriple:
		return apply.ApplyDelTriple(rec.Triple)
	case KindSetNodeProps:
		return apply.ApplySetNodeProps(rec.NodeID, rec.Props)
	case KindSetEdgeProps:
		return apply.ApplySetEdgeProps(rec.Triple, rec.Props)
	case KindSetLabels:
		return apply.ApplySetLabels(rec.NodeID, types.NewLabelSet(rec.Labels...))
	}
	return nil
}

func (l *Log) descendantsLocked(id uint64) []uint64 {
	out := []uint64{id}
	for _, child := range l.children[id] {
		out = append(out, l.descendantsLocked(child)...)
	}
	return out
}

func (l *Log) appendFramed(rec Record) error {
	body := encodeRecord(rec)
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(body))
	if _, err := l.file.Write(header[:]); err != nil {
		return fmt.Errorf("%w: wal append header: %v", nverrors.ErrIO, err)
	}
	if _, err := l.file.Write(body); err != nil {
		return fmt.Errorf("%w: wal append body: %v", nverrors.ErrIO, err)
	}
	return nil
}

// Truncate discards the entire physical log, the shape a checkpoint
// uses once staging has been durably materialized into new pages: the
// WAL no longer needs to replay anything before that point.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncating WAL: %v", nverrors.ErrIO, err)
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seeking truncated WAL: %v", nverrors.ErrIO, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
