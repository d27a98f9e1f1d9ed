package readers

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
)

// Handle is one process's registration, owning the open file whose
// lock proves liveness and whose mtime is refreshed by Heartbeat.
type Handle struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Register creates <dir>/<pid>-<unixNanoTs>.reader, pins epoch inside
// it, and holds an exclusive advisory lock on the file for as long as
// this process runs.
func Register(dir string, epoch uint64, now time.Time) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating reader registry dir: %v", nverrors.ErrIO, err)
	}
	name := fmt.Sprintf("%d-%d.reader", os.Getpid(), now.UnixNano())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating reader file: %v", nverrors.ErrIO, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: locking reader file: %v", nverrors.ErrIO, err)
	}
	h := &Handle{path: path, file: f}
	if err := h.writeEpoch(epoch); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) writeEpoch(epoch uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], epoch)
	if _, err := h.file.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("%w: writing pinned epoch: %v", nverrors.ErrIO, err)
	}
	return nil
}

// Heartbeat re-pins epoch and bumps the file's mtime, the liveness
// signal GC checks.
func (h *Handle) Heartbeat(epoch uint64) error {
	if err := h.writeEpoch(epoch); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(h.path, now, now)
}

// Close releases the lock and removes this reader's registration file.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = unix.Flock(int(h.file.Fd()), unix.LOCK_UN)
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("%w: closing reader file: %v", nverrors.ErrIO, err)
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing reader file: %v", nverrors.ErrIO, err)
	}
	return nil
}

// ActiveEpochs scans dir and returns the union of every live reader's
// pinned epoch, reaping registration files that fail both staleness
// checks (mtime age AND a successful non-blocking lock probe, proving
// the owning process is gone).
func ActiveEpochs(dir string, staleAfter time.Duration) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing reader registry: %v", nverrors.ErrIO, err)
	}

	var epochs []uint64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".reader") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > staleAfter {
			if reapIfAbandoned(path) {
				continue
			}
		}

		epoch, ok := readEpoch(path)
		if ok {
			epochs = append(epochs, epoch)
		}
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs, nil
}

// reapIfAbandoned removes path if a non-blocking exclusive lock can be
// acquired on it (nobody holds the shared/exclusive lock that Register
// takes), confirming the owning process is gone rather than merely
// paused between heartbeats.
func reapIfAbandoned(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return false // still held: owning process is alive
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = os.Remove(path)
	return true
}

func readEpoch(path string) (uint64, bool) {
	buf := make([]byte, 8)
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	if _, err := f.ReadAt(buf, 0); err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf), true
}

// OldestPinned computes min(active epochs, currentEpoch) — the epoch
// below which every page and manifest is safe to delete.
func OldestPinned(activeEpochs []uint64, currentEpoch uint64) uint64 {
	oldest := currentEpoch
	for _, e := range activeEpochs {
		if e < oldest {
			oldest = e
		}
	}
	return oldest
}
