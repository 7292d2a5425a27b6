package auth

import (
	"sync"
	"time"
)

// StateChange describes an auth lifecycle event for one user.
type StateChange struct {
	UserID string
	Event  string // "registered", "logged_in"
	At     time.Time
}

// Notifier fans auth state changes out to interested listeners, one buffered
// channel per subscriber id. A subscriber that falls behind misses events
// rather than blocking the publisher.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[string]chan StateChange
	buffer    int
}

func NewNotifier(buffer int) *Notifier {
	return &Notifier{
		listeners: make(map[string]chan StateChange),
		buffer:    buffer,
	}
}

// Subscribe registers a listener. Subscribing again under the same id
// replaces the previous channel, which is closed.
func (n *Notifier) Subscribe(id string) <-chan StateChange {
	n.mu.Lock()
	defer n.mu.Unlock()

	if old, ok := n.listeners[id]; ok {
		close(old)
	}
	ch := make(chan StateChange, n.buffer)
	n.listeners[id] = ch
	return ch
}

func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.listeners[id]; ok {
		close(ch)
		delete(n.listeners, id)
	}
}

func (n *Notifier) Publish(change StateChange) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.listeners {
		select {
		case ch <- change:
		default:
		}
	}
}
