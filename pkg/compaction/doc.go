/*
Package compaction runs the materialize-manifest-GC cycle that turns a
database's staging overlay and WAL into a new durable epoch: it
rewrites the six triple orderings, the node/edge property pages, and
the label pages; publishes a manifest for epoch E+1; consults the
reader registry for the oldest pinned epoch; deletes every page,
property, label, and manifest file strictly older than that; and
truncates the WAL once the new epoch is durable.

A Compactor can run opportunistically on a ticker (Start/Stop, grounded
on the reconciler's loop shape) or be driven explicitly by flush/close.
Every step is restartable: a half-written manifest is invisible until
CURRENT is republished, and a half-written page is invisible because no
manifest references it yet.
*/
package compaction
