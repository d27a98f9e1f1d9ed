/*
Package txdedupe persists the WAL's idempotent-commit retention set
across restarts when `enablePersistentTxDedupe` is set: pkg/walog
tracks the retention window in memory only, so without this, a restart
forgets every tx_id and a retried batch from before the crash would be
re-applied.

Grounded on the teacher's BoltDB usage in the dropped pkg/storage
(single bucket, string key, Put/Get/ForEach) — repurposed here as the
one place in NervusDB where an off-the-shelf embedded KV store is the
right tool, since the spec leaves this format entirely unspecified and
a bounded ring of opaque string IDs is exactly the key-value shape
bbolt is good at, with no ordering or range-scan requirement that would
justify NervusDB's own paged format instead.
*/
package txdedupe
