/*
Package pages implements the on-disk page format shared by the triple
store, property store, and label store, plus an LRU page cache.

# On-disk format

Each page is one immutable file with a fixed 20-byte header followed by
its (optionally compressed) payload, exactly as laid out in the public
on-disk interface:

	offset  size  field
	0       8     magic "NVDBPAGE"
	8       1     version (1)
	9       1     codec tag (0=none, 1=generic)
	10      2     flags (reserved, currently 0)
	12      4     uncompressed payload length, little-endian
	16      4     CRC32 (IEEE) of the uncompressed payload, little-endian
	20      ...   payload bytes (compressed iff codec==generic)

A page is never rewritten in place: compaction always writes a new file
and leaves superseded ones for GC to remove once no pinned epoch needs
them (spec invariant: "a page is immutable once written").

# Compression

The "generic" codec is github.com/klauspost/compress's zstd
implementation, chosen because it is already present in the example
corpus's dependency surface and gives a single byte-stream compressor
usable for triples, property values, and inverted-index postings alike
without a format-specific codec per page kind.

# Page cache

Cache is an LRU cache of decoded page payloads with per-entry pin
counts, grounded on the tinySQL reference pager's PageBufferPool
(buffer-pool eviction skips pinned frames): a page materialized for an
in-flight scan cannot be evicted out from under that scan.
*/
package pages
