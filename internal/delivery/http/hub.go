package http

import (
	"sync"

	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// Hub fans orchestrator events out to SSE subscribers. A subscriber whose
// buffer is full is dropped instead of stalling the orchestrator.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan usecase.Event]struct{}
	buffer int
	logger *zap.Logger
}

// NewHub creates a hub with a per-subscriber buffer
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[chan usecase.Event]struct{}),
		buffer: buffer,
		logger: logger.Named("hub"),
	}
}

// OnEvent implements usecase.Listener
func (h *Hub) OnEvent(e usecase.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			delete(h.subs, ch)
			close(ch)
			h.logger.Warn("dropping slow event subscriber")
		}
	}
}

// Subscribe registers a subscriber. The returned function unregisters it
// and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan usecase.Event, func()) {
	ch := make(chan usecase.Event, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
