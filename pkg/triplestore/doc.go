/*
Package triplestore implements the paged, dictionary-encoded SPO triple
index: six sorted orderings (SPO/SOP/PSO/POS/OSP/OPS) of fixed-width
encoded triples, an in-memory staging overlay for mutations not yet
checkpointed, and the merge-scan iterator that presents both as one
logical, tombstone-aware view.

# Page directory

Each PagedIndex holds a slice of pages.Descriptor sorted by primary-key
range for its ordering. A query with a bound prefix (the leading
components the ordering table in the spec assigns it) binary-searches
this directory and only decodes pages whose range could contain a
match, per pages.Descriptor.ContainsPrefix.

# Staging overlay

Staging is a single ordering-agnostic structure: an "added" set and a
"deleted" tombstone set of encoded triples. A scan sorts the relevant
subset of Staging into the requested ordering on the fly (staging is
bounded — backpressure forces a checkpoint before it grows past the
configured threshold) and merges it with the paged scan, suppressing
any paged triple that staging tombstones and deduplicating overlap.
Invariant: adding then deleting the same triple within one staging
window must cancel out, not emit a tombstone nobody needs — Add/Del
implement that directly instead of leaving it to the merge step.
*/
package triplestore
