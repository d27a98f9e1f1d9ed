/*
Package query is the streaming query engine over a triplestore,
propstore, and labelstore triple: fact access (find/findByNodeProperty/
findByEdgeProperty/findByLabel), chained follows (follow/followReverse/
variablePath), path search (BFS, bidirectional BFS, Dijkstra, A*),
programmatic pattern matching, and streaming aggregation.

Every expression evaluated by a WHERE predicate, projection, ORDER BY
key, or aggregation argument goes through eval.go's type check before
computing — an illegal combination raises a RuntimeType error rather
than silently producing null, at every call site, not just the ones
that are easy to reach.
*/
package query
