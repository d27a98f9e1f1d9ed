package health

import (
	"context"
	"fmt"
	"os"
	"time"
)

// WALSizeChecker reports unhealthy once the WAL file at Path grows past
// MaxBytes without a checkpoint, the signal that compaction has stalled
// or writes are outpacing it.
type WALSizeChecker struct {
	Path     string
	MaxBytes int64
}

// NewWALSizeChecker builds a checker over path with a 256MiB default ceiling.
func NewWALSizeChecker(path string) *WALSizeChecker {
	return &WALSizeChecker{Path: path, MaxBytes: 256 << 20}
}

func (w *WALSizeChecker) Check(ctx context.Context) Result {
	start := time.Now()
	info, err := os.Stat(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Healthy: true, Message: "wal not yet created", CheckedAt: start, Duration: time.Since(start)}
		}
		return Result{Healthy: false, Message: fmt.Sprintf("stat %s: %v", w.Path, err), CheckedAt: start, Duration: time.Since(start)}
	}
	if info.Size() > w.MaxBytes {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("wal size %d exceeds ceiling %d, checkpoint is falling behind", info.Size(), w.MaxBytes),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: fmt.Sprintf("wal size %d", info.Size()), CheckedAt: start, Duration: time.Since(start)}
}

func (w *WALSizeChecker) Type() CheckType { return CheckTypeWALSize }
