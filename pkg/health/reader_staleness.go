package health

import (
	"context"
	"fmt"
	"time"

	"github.com/nervusdb/nervusdb/pkg/readers"
)

// ReaderStalenessChecker reports unhealthy if the reader registry under
// Dir holds more than MaxReaders entries, a sign that readers are
// crashing without releasing their registration (or that compaction's
// reaping is failing to keep up).
type ReaderStalenessChecker struct {
	Dir          string
	StaleAfter   time.Duration
	MaxReaders   int
}

// NewReaderStalenessChecker builds a checker over dir with a 64-reader
// default ceiling.
func NewReaderStalenessChecker(dir string, staleAfter time.Duration) *ReaderStalenessChecker {
	return &ReaderStalenessChecker{Dir: dir, StaleAfter: staleAfter, MaxReaders: 64}
}

func (r *ReaderStalenessChecker) Check(ctx context.Context) Result {
	start := time.Now()
	active, err := readers.ActiveEpochs(r.Dir, r.StaleAfter)
	if err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("listing reader registry: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	if len(active) > r.MaxReaders {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%d active readers exceeds ceiling %d", len(active), r.MaxReaders),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: fmt.Sprintf("%d active readers", len(active)), CheckedAt: start, Duration: time.Since(start)}
}

func (r *ReaderStalenessChecker) Type() CheckType { return CheckTypeReaderStale }
