package memory

import (
	"context"
	"sync"

	"teamquiz-service/internal/domain"
)

// Hub fans events out to in-process subscribers of a room. It implements
// app.Publisher and feeds the websocket handler.
type Hub struct {
	mu     sync.Mutex
	buffer int
	rooms  map[int64]map[chan domain.Event]struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub{
		buffer: buffer,
		rooms:  make(map[int64]map[chan domain.Event]struct{}),
	}
}

// Subscribe returns a channel of the room's events.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(roomID int64) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, h.buffer)

	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		h.rooms[roomID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.rooms[roomID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending event.
func (h *Hub) Publish(_ context.Context, ev domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[ev.RoomID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return nil
}

// Subscribers reports how many observers a room has.
func (h *Hub) Subscribers(roomID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}
