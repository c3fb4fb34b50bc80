package hub

import (
	"context"
	"log/slog"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-posture/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub maintains the set of active subscribers and broadcasts messages to them.
type Hub struct {
	name string
	log  *slog.Logger

	// Guards subs and stopped
	mu      sync.RWMutex
	subs    map[*Subscriber]bool
	stopped bool

	broadcast chan Message
	done      chan struct{}
}

// New creates a new Hub. Messages flow once Run is started.
func New(name string) *Hub {
	return &Hub{
		name:      name,
		log:       log.With("hub", name),
		subs:      make(map[*Subscriber]bool),
		broadcast: make(chan Message, 256),
		done:      make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		h.stopped = true
		for s := range h.subs {
			delete(h.subs, s)
			close(s.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.broadcast:
			h.mu.Lock()
			for s := range h.subs {
				select {
				case s.send <- msg:
				default:
					if s.lossy {
						continue
					}
					// Too slow: drop the subscriber
					close(s.send)
					delete(h.subs, s)
					h.log.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every subscriber. It never blocks.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	m, err := NewJSON(v)
	if err != nil {
		return err
	}
	h.Broadcast(m)
	return nil
}

// BroadcastBinary broadcasts binary data (JPEG frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscriber receives broadcast messages on a buffered channel.
type Subscriber struct {
	hub   *Hub
	send  chan Message
	lossy bool
	once  sync.Once
}

// Subscribe registers a subscriber. A lossy subscriber skips messages when
// its buffer is full instead of being disconnected, which suits live video.
// Subscribe returns nil once the hub has stopped.
func (h *Hub) Subscribe(buffer int, lossy bool) *Subscriber {
	s := &Subscriber{hub: h, send: make(chan Message, buffer), lossy: lossy}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.subs[s] = true
	h.log.Debug("subscriber connected", "total", len(h.subs))
	return s
}

// Messages is closed when the subscriber is removed or the hub stops.
func (s *Subscriber) Messages() <-chan Message {
	return s.send
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (s *Subscriber) Unsubscribe() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.subs[s] {
			delete(h.subs, s)
			close(s.send)
			h.log.Debug("subscriber disconnected", "remaining", len(h.subs))
		}
	})
}
