/*
Package cypher is an optional text front end over pkg/query: it
parses a whitelisted Cypher subset (MATCH, WHERE, RETURN, ORDER BY,
SKIP, LIMIT, CREATE, SET, REMOVE, DELETE, MERGE) and lowers it to the
same compiled Pattern form the programmatic PatternBuilder produces.
Anything outside the whitelist — UNION, OPTIONAL MATCH, FOREACH, CALL —
raises a *SyntaxError naming the clause rather than silently ignoring
it; see DESIGN.md for why those four were left out of this pass. WITH
and UNWIND are parsed, and Compile rejects them with a *SyntaxError.

Compile never touches storage; it only builds a CompiledRead (a
query.CompiledPattern plus projection, SKIP and LIMIT) and/or a
CompiledWrite. CompiledRead.Run executes the read plan against a
query.Engine; CompiledWrite applies the write clauses through a
Mutator, typically the root database handle's batch API.
*/
package cypher
