/*
Package metrics defines and registers the Prometheus metrics exposed by
an open NervusDB handle: page cache hit ratio, WAL growth, batch commit
rate and latency, compaction cycle duration and GC counts, active
reader count, and per-kind query latency. Metrics are package-level
prometheus.Collectors registered at init; call sites update them
directly (counters, Timer.ObserveDuration) or through Collector, which
polls a Source for the gauges that need periodic sampling rather than
an event to update on.

The /health and /ready handlers aggregate the component statuses
reported through RegisterComponent and UpdateComponent into a
process-wide snapshot. Package health's Checker implementations (disk
space, reader staleness, WAL size) do not report into it; neither they
nor DB.Health call RegisterComponent or UpdateComponent.
*/
package metrics
