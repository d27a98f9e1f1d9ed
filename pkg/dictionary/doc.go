/*
Package dictionary implements NervusDB's atom dictionary: the
bi-directional mapping between opaque string atoms and the compact
integer AtomIDs the rest of the store operates on.

# Architecture

The dictionary is an append-only log of (AtomID, length, crc32, bytes)
records plus an in-memory hash index rebuilt from that log at open,
grounded on the teacher's preference for a small owning struct guarding
its state with one mutex (pkg/events.Broker) rather than a generic
concurrent map:

	┌─────────────────────── dict.log ───────────────────────┐
	│ [AtomID u64][len u32][crc32 u32][bytes...]  (repeated)  │
	└──────────────────────────────────────────────────────────┘
	                      │ Open() replays
	                      ▼
	┌─────────────────────────────────────────────────────────┐
	│  Dictionary                                              │
	│    byAtom map[string]AtomID      (reverse lookup)        │
	│    byID   []string                (forward lookup, 1-based)│
	└─────────────────────────────────────────────────────────┘

IDs start at 1; 0 is reserved to mean "absent" (types.NoAtom). Intern
is append-only both on disk and in memory, and an ID is never
reassigned while its record survives in the log. Open derives the next
ID from the surviving records only, so the ID of a discarded trailing
corrupted record is handed out again by the next Intern.

# Failure Handling

A corrupted trailing record (short read, length that runs past EOF, or
a CRC mismatch) truncates the log at the last well-formed record
boundary; Open reports how many bytes it discarded so the caller's WAL
replay can reject any WAL tail that assumed the discarded atoms existed.
*/
package dictionary
