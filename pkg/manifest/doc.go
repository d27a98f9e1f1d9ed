/*
Package manifest persists the per-epoch inventory of every live page
file across the triple, property, and label stores, and the CURRENT
pointer that names the newest one.

# Epoch publication

Writing a new epoch is: serialize a Manifest to manifest.<epoch> (temp
file + fsync + rename, the same discipline pkg/pages uses for page
files), then atomically rename a CURRENT.tmp containing that filename
over CURRENT. A reader always opens CURRENT first, then the manifest it
names; a crash between the two renames leaves the old CURRENT intact
and the half-written manifest.<epoch> unreferenced and harmless.

# Epoch pinning

This package has no epoch-pinning functions of its own. Pinning an
epoch is recorded by pkg/readers' registry (Register, Heartbeat,
ActiveEpochs), not in the manifest file itself, so GC (pkg/compaction)
can compute oldest_pinned without re-reading every manifest.
*/
package manifest
