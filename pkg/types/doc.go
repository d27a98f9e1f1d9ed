/*
Package types defines the core data structures shared across NervusDB.

This package contains the fundamental vocabulary of the embedded graph
store: atoms and their integer identifiers, encoded triples, the tagged
property value variant, label sets, and the query-side criteria and
anchor types consumed by pkg/query. These types are deliberately free of
behavior beyond small, obviously-total helper methods; persistence,
indexing, and querying live in their own packages.

# Core Types

Dictionary:
  - AtomID: a stable, positive, never-reused integer identifier for an atom
  - the empty AtomID (0) is reserved to mean "absent"

Triples:
  - EncodedTriple: a (subject, predicate, object) tuple of AtomIDs
  - Ordering: one of SPO/SOP/PSO/POS/OSP/OPS

Properties & labels:
  - Value: a tagged variant (Null, Bool, Int, Float, String, Bytes, List, Map)
  - PropertyMap: string key to Value
  - LabelSet: an unordered set of short string labels

Query plumbing:
  - Criteria: any subset of {subject, predicate, object} bound to concrete AtomIDs
  - Anchor: which endpoint of a yielded triple is the follow frontier

# Design Patterns

Enumeration pattern: typed string or byte constants rather than bare
ints, so an invalid value fails loudly instead of silently aliasing.

# Thread Safety

Every type here is a plain value or an immutable-once-built structure.
Mutexes, caches, and other shared mutable state live in the packages
that own persistence (pkg/dictionary, pkg/triplestore, pkg/propstore,
...), not here.
*/
package types
