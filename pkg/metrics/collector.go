package metrics

import (
	"time"
)

// Source supplies the point-in-time readings Collector polls into
// gauges. A DB handle implements it directly.
type Source interface {
	CacheLen() int
	CurrentEpoch() uint64
	ActiveReaderCount() (int, error)
}

// Collector periodically samples a Source into the gauge metrics that
// can't be updated incrementally at the call site (cache occupancy,
// epoch, reader count).
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	PageCacheSize.Set(float64(c.source.CacheLen()))
	CurrentEpoch.Set(float64(c.source.CurrentEpoch()))
	if n, err := c.source.ActiveReaderCount(); err == nil {
		ActiveReaders.Set(float64(n))
	}
}
