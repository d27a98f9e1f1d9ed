/*
Package propstore holds node and edge property maps plus the inverted
index that lets the query engine push property filters down to an
AtomID/triple-key candidate set instead of hydrating every fact.

# Layout

Two parallel stores share one encoding:

  - node properties, keyed by types.AtomID
  - edge properties, keyed by types.EncodedTriple (the "triple key")

Each map is serialized with the self-describing length-prefixed
encoding in codec.go: every Value carries its own Kind tag, so decoding
never depends on schema state held elsewhere.

# Inverted index

For every primitive-typed (Int/Float/String/Bool) property value, an
ordered posting list maps (key, value) to the set of subjects that hold
it. Keeping values in a per-key sorted slice (rather than a hash
bucket) is what makes range predicates (<, <=, >, >=, in, between)
possible without a full store scan — the same tradeoff the triple
store makes by keeping pages sorted rather than hashed.

# Pushdown

findByNodeProperty/findByEdgeProperty must resolve through Index before
touching the property maps themselves: the index narrows to a candidate
ID set, and only that set's maps are loaded.
*/
package propstore
