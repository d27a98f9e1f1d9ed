/*
Package events implements an in-process pub/sub broker for NervusDB
lifecycle notifications: open/close, batch commit/abort, checkpoint and
compaction cycles, reader registration. It never crosses process
boundaries — a handle's events are visible only within that process,
the same scope as the page cache and staging overlay.

Publish hands the event to the broker's 100-slot internal queue and
blocks only while that queue is full (or until Stop). The distribution
loop never blocks on a subscriber: a full subscriber buffer drops the
event for that subscriber.
*/
package events
