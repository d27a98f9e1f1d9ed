/*
Package readers implements the reader registry: one file per open
reader under <db>/readers/<pid>-<ts>.reader, rewritten on every
heartbeat. Compaction/GC consults ActiveEpochs to compute oldest_pinned
before deleting anything.

# Staleness

A registered reader's liveness is judged by two signals together, not
mtime alone: the file's mtime must be older than twice the heartbeat
interval AND a non-blocking advisory lock probe on the file must
succeed (proving no process still holds it open). Either signal alone
races — a paused-but-alive process looks mtime-stale, and a lock probe
without a staleness floor would reap a reader between heartbeats. This
is the resolution to the spec's page-GC-race open question: see
DESIGN.md.
*/
package readers
