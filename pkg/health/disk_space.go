package health

import (
	"context"
	"fmt"
	"syscall"
	"time"
)

// DiskSpaceChecker reports unhealthy once free space under Path falls
// below MinFreeBytes, the signal that a writer is about to fail pages
// or WAL appends with ENOSPC.
type DiskSpaceChecker struct {
	Path         string
	MinFreeBytes uint64
}

// NewDiskSpaceChecker builds a checker for path with a 64MiB floor.
func NewDiskSpaceChecker(path string) *DiskSpaceChecker {
	return &DiskSpaceChecker{Path: path, MinFreeBytes: 64 << 20}
}

func (d *DiskSpaceChecker) Check(ctx context.Context) Result {
	start := time.Now()
	var stat syscall.Statfs_t
	if err := syscall.Statfs(d.Path, &stat); err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("statfs %s: %v", d.Path, err), CheckedAt: start, Duration: time.Since(start)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < d.MinFreeBytes {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%d bytes free under %s, below floor %d", free, d.Path, d.MinFreeBytes),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: fmt.Sprintf("%d bytes free under %s", free, d.Path), CheckedAt: start, Duration: time.Since(start)}
}

func (d *DiskSpaceChecker) Type() CheckType { return CheckTypeDiskSpace }
