package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type delivery struct {
	room  string
	event Event
}

// Hub is the in-process Broker. All publishes funnel through a single
// dispatch goroutine, so events for any given room reach subscribers in
// publish order. The dispatch queue is bounded: when it is full, publishes
// are dropped and logged rather than blocking mutations.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]HandlerFunc
	queue  chan delivery
	done   chan struct{}
	closed sync.Once
	logger *zap.Logger
}

// NewHub starts the dispatch loop. queueSize bounds the number of pending
// deliveries before publishes start dropping.
func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		rooms:  make(map[string]map[string]HandlerFunc),
		queue:  make(chan delivery, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.dispatch()
	return h
}

func (h *Hub) Subscribe(room, subscriberID string, fn HandlerFunc) {
	if room == "" || subscriberID == "" || fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[string]HandlerFunc)
		h.rooms[room] = subs
	}
	subs[subscriberID] = fn
}

func (h *Hub) Unsubscribe(room, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[room]; ok {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// UnsubscribeAll removes the subscriber from every room. Called when a
// connection closes.
func (h *Hub) UnsubscribeAll(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, subs := range h.rooms {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Publish(ctx context.Context, room string, event Event) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case h.queue <- delivery{room: room, event: event}:
		return nil
	default:
		h.logger.Warn("dispatch queue full, event dropped",
			zap.String("room", room),
			zap.String("event", event.Name),
		)
		return nil
	}
}

// SubscriberCount reports how many subscriptions are currently held, for the
// health monitor.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, subs := range h.rooms {
		total += len(subs)
	}
	return total
}

func (h *Hub) Close() error {
	h.closed.Do(func() {
		close(h.done)
	})
	return nil
}

func (h *Hub) dispatch() {
	for {
		select {
		case <-h.done:
			return
		case d := <-h.queue:
			h.mu.RLock()
			handlers := make([]HandlerFunc, 0, len(h.rooms[d.room]))
			for _, fn := range h.rooms[d.room] {
				handlers = append(handlers, fn)
			}
			h.mu.RUnlock()
			for _, fn := range handlers {
				fn(d.room, d.event)
			}
		}
	}
}
