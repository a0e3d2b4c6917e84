package sim

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Subscriber is one live connection's hook into the hub.
type Subscriber struct {
	Writer Writer
}

// Hub fans broadcast messages out to the subscribers of each topic. One
// subscriber may follow many topics; dropping it releases all of them.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	bySub  map[*Subscriber]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscriber]struct{}),
		bySub:  make(map[*Subscriber]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(topic string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}

	if h.bySub[sub] == nil {
		h.bySub[sub] = make(map[string]struct{})
	}
	h.bySub[sub][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(topic string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(topic, sub)
}

func (h *Hub) unsubscribeLocked(topic string, sub *Subscriber) {
	if set := h.topics[topic]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
	if set := h.bySub[sub]; set != nil {
		delete(set, topic)
		if len(set) == 0 {
			delete(h.bySub, sub)
		}
	}
}

// Drop releases every subscription held by sub.
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.bySub[sub] {
		h.unsubscribeLocked(topic, sub)
	}
	delete(h.bySub, sub)
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Broadcast(topic string, message []byte) {
	h.mu.RLock()
	set := h.topics[topic]
	subs := make([]*Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var failed []*Subscriber
	for _, sub := range subs {
		if err := sub.Writer.Write(message); err != nil {
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		_ = sub.Writer.Close()
		h.Drop(sub)
	}
}
