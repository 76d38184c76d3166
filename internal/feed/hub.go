// Package feed broadcasts judgements to spectators and other players over
// websockets.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"git.lost.host/meutraa/judgeline/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 2 * time.Second
	bufferSize = 64
)

type subscriber struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans session updates out to every connected client. Publish never
// blocks; a client that cannot keep up loses updates.
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	closed      bool
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:         log,
		subscribers: map[uuid.UUID]*subscriber{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if nil != err {
		h.log.WithError(err).Warn("unable to upgrade feed connection")
		return
	}
	sub := &subscriber{id: uuid.New(), conn: conn, send: make(chan []byte, bufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"subscriber": sub.id, "remote": r.RemoteAddr}).Info("feed subscriber joined")

	go h.write(sub)
	go h.read(sub)
}

// read only exists to notice the client going away.
func (h *Hub) read(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); nil != err {
			return
		}
	}
}

func (h *Hub) write(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); nil != err {
			h.log.WithError(err).WithField("subscriber", sub.id).Debug("feed write failed")
			h.remove(sub)
			return
		}
	}
	sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	h.mu.Unlock()
	sub.close()
	if ok {
		h.log.WithField("subscriber", sub.id).Info("feed subscriber left")
	}
}

// Subscribers counts connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish implements session.Sink. Updates without events are skipped.
func (h *Hub) Publish(u session.Update) {
	if len(u.Events) == 0 {
		return
	}
	data, err := json.Marshal(u)
	if nil != err {
		h.log.WithError(err).Warn("unable to marshal feed update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.log.WithField("subscriber", sub.id).Debug("feed subscriber too slow, dropping update")
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subscribers
	h.subscribers = map[uuid.UUID]*subscriber{}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}
