// ABOUTME: In-memory fan-out notifier for committed store writes
// ABOUTME: Publishes commit events to all subscribers of the store

package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// EventType distinguishes the kinds of committed writes.
type EventType string

const (
	// EventPut signals an inserted or overwritten record
	EventPut EventType = "put"
	// EventDelete signals a removed record
	EventDelete EventType = "delete"
)

// Event describes one committed write, at whole-record granularity.
// For EventDelete only ID is set.
type Event struct {
	Type   EventType
	ID     string
	Record *Record
}

// notifier provides in-memory pub/sub for committed store writes.
// Subscribers receive events in commit order, which is what makes the
// foreground view's last-write-wins merge deterministic.
type notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event // subID -> ch
	logger      *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &notifier{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "store-notifier"),
	}
}

// subscribe registers a subscriber and returns its channel and ID.
// The subscription is automatically cleaned up when ctx is cancelled.
func (n *notifier) subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	n.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		n.unsubscribe(subID)
	}()

	return ch, subID
}

// publish sends an event to all subscribers.
// Non-blocking: events are dropped for subscribers whose channels are full.
// The read lock is held across the sends; channels are only closed under
// the write lock, so a send can never race a close.
func (n *notifier) publish(event Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- event:
			// Sent
		default:
			n.logger.Debug("dropped event for slow subscriber",
				"event_type", event.Type,
				"record_id", event.ID)
		}
	}
}

// unsubscribe removes a subscription and closes its channel.
func (n *notifier) unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}

	delete(n.subscribers, subID)
	close(ch)

	n.logger.Debug("subscriber removed", "sub_id", subID)
}

// closeAll shuts down the notifier and closes all subscriber channels.
func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}
}
