/*
Package health monitors an open NervusDB handle: disk space under the
database directory, reader-registry staleness, and WAL growth since the
last checkpoint. Each Checker runs independently; Status tracks
consecutive successes/failures so a single transient failure does not
flip a handle from healthy to unhealthy.
*/
package health
