package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/domain"
)

// Subscriber hands out per-room event streams.
type Subscriber interface {
	Subscribe(roomID int64) (<-chan domain.Event, func())
}

type WSHandler struct {
	service  *app.ScoringService
	events   Subscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ScoringService, events Subscriber) *WSHandler {
	return &WSHandler{
		service: service,
		events:  events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams the events of one room to an observer. The first message
// is the current scoreboard; every later message is an event.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomRef := r.URL.Query().Get("roomId")
	if roomRef == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	room, err := h.service.ResolveRoom(r.Context(), roomRef)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.events.Subscribe(room.ID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws: write error: %v", err)
				return
			}
		}
	}()

	board, err := h.service.Scoreboard(r.Context(), roomRef)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	} else {
		send <- outboundMessage[any]{Type: "scoreboard", Payload: board}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Observers never send; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
