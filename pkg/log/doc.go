/*
Package log wraps zerolog into a global, once-configured Logger plus
component-scoped child loggers. Call log.Init once at startup, then
log.WithComponent("wal")/"storage"/"compaction"/"query"/"cypher"/
"readers" at each subsystem boundary and log through the child logger's
.Debug()/.Info()/.Warn()/.Error() with structured fields rather than
formatted strings.
*/
package log
