package events

import (
	"sync"
	"time"
)

// EventType names a NervusDB lifecycle event.
type EventType string

const (
	EventDBOpened          EventType = "db.opened"
	EventDBClosed          EventType = "db.closed"
	EventBatchCommitted    EventType = "batch.committed"
	EventBatchAborted      EventType = "batch.aborted"
	EventCheckpointStarted EventType = "checkpoint.started"
	EventCheckpointDone    EventType = "checkpoint.done"
	EventCompactionStarted EventType = "compaction.started"
	EventCompactionDone    EventType = "compaction.done"
	EventCompactionFailed  EventType = "compaction.failed"
	EventReaderRegistered  EventType = "reader.registered"
	EventReaderClosed      EventType = "reader.closed"
)

// Event is one lifecycle notification.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// defaultHistoryCap bounds the ring buffer Broker keeps of recently
// broadcast events, so a caller that didn't subscribe ahead of time
// (a health probe, a CLI inspecting why compaction looks stalled) can
// still see recent lifecycle activity.
const defaultHistoryCap = 256

// Broker manages event subscriptions and distribution.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}

	historyMu  sync.Mutex
	history    []*Event
	historyCap int
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
		historyCap:  defaultHistoryCap,
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.record(event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full, skip
		}
	}
}

// record appends event to the bounded history ring, dropping the
// oldest entry once historyCap is reached.
func (b *Broker) record(event *Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	b.history = append(b.history, event)
	if over := len(b.history) - b.historyCap; over > 0 {
		b.history = b.history[over:]
	}
}

// Recent returns up to n of the most recently broadcast events, oldest
// first; n <= 0 returns the full retained history. This is the path a
// caller without a live Subscribe in place (a health check, a one-shot
// CLI inspection) uses to see lifecycle activity after the fact.
func (b *Broker) Recent(n int) []*Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]*Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
