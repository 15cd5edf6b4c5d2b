package realtime

import (
	"log"
	"sync"
)

// subscriptionBuffer bounds how many undelivered events a subscriber
// can accumulate before newer events are dropped.
const subscriptionBuffer = 16

// Event is a single realtime message delivered to a subscribed user.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Subscription is one live listener for a user's events. A user can
// hold several subscriptions at once, one per open connection.
type Subscription struct {
	userID string
	events chan Event
}

// Events returns the channel of events for this subscription. The
// channel is closed when the subscription is removed from the hub.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Hub fans events out to per-user subscriptions. Delivery is best
// effort: a subscriber that stops draining its channel loses events
// rather than blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new listener for the given user.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		userID: userID,
		events: make(chan Event, subscriptionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	return sub
}

// Unsubscribe removes a listener and closes its event channel. It is
// safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.events)
}

// Publish delivers an event to every subscription of the given user.
// Users with no subscriptions are ignored.
func (h *Hub) Publish(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[userID] {
		select {
		case sub.events <- ev:
		default:
			log.Printf("realtime: dropping %s event for slow subscriber of user %s", ev.Type, userID)
		}
	}
}

// SubscriberCount reports how many subscriptions a user currently holds.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
