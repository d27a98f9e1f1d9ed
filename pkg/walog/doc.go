/*
Package walog implements the write-ahead log every mutation passes
through before it is visible to readers or materialized into pages:
BEGIN, ADD_TRIPLE, DEL_TRIPLE, SET_NODE_PROPS, SET_EDGE_PROPS,
SET_LABELS, COMMIT, and ABORT records, each length-prefixed and
CRC32-checked the same way pkg/dictionary's log is.

# Nesting

begin/abort nest: an inner BEGIN opens a nested batch whose records are
still written to the same physical log, but an inner ABORT discards
only that nested batch's records (tracked in memory until the outer
commit) rather than the whole transaction. The outer COMMIT is what
actually makes every surviving nested batch's records durable and
visible.

# Replay

On Open, every record since the last checkpoint's truncation point is
replayed through an Applier the caller supplies (typically the in-
process Store): ABORTed or not-yet-committed batches are skipped,
COMMITted ones are re-applied in order. This is the same replay-on-open
shape as the apply loop in the teacher's raft FSM, generalized from a
consensus log to a single-writer WAL.

# Idempotence

A commit whose tx_id already appears in the retention window (an
in-memory ring tracked here, optionally backed by pkg/txdedupe across
restarts) is accepted as a silent no-op: its record is still written
for audit continuity, tagged as a duplicate, but no Applier method is
called for it.
*/
package walog
