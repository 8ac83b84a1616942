// Package realtime fans out map and wallet events to websocket subscribers.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Topics
const (
	TopicMap = "map"
)

// Event types
const (
	EventSnapshot      = "snapshot"
	EventDumpReported  = "dump.reported"
	EventDumpCleared   = "dump.cleared"
	EventCenterUpdated = "center.updated"
	EventWalletUpdated = "wallet.updated"
)

// WalletTopic is the private topic of one user.
func WalletTopic(userID uint) string {
	return "wallet:" + strconv.FormatUint(uint64(userID), 10)
}

// Event is one message pushed to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	At   int64  `json:"at"`
}

// ErrHubClosed is returned to subscribers arriving after Close.
var ErrHubClosed = errors.New("realtime: hub closed")

// Snapshot builds the first events a new subscriber receives.
type Snapshot func() ([]Event, error)

// Publisher is what the rest of the service needs from the hub.
type Publisher interface {
	Publish(topic string, ev Event) int
}

// Hub tracks subscribers per topic.
type Hub struct {
	SendBuffer   int
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
	closed bool
}

// NewHub creates a hub with production timings.
func NewHub() *Hub {
	return &Hub{
		SendBuffer:   32,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		topics:       make(map[string]map[*client]struct{}),
	}
}

// Upgrader accepts websocket handshakes from the configured origins.
// An empty list accepts any origin.
func Upgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed[origin]
		},
	}
}

// Publish delivers ev to every subscriber of topic and returns how many
// accepted it. Subscribers whose queue is full are disconnected.
func (h *Hub) Publish(topic string, ev Event) int {
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithFields(logrus.Fields{"topic": topic, "type": ev.Type, "error": err.Error()}).Error("Event encode failed")
		return 0
	}

	var slow []*client
	delivered := 0
	h.mu.RLock()
	for c := range h.topics[topic] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logrus.WithField("topic", topic).Warn("Dropping slow websocket subscriber")
		h.remove(c)
	}
	return delivered
}

// Subscribers returns the number of connections on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve subscribes conn to topic, queues the initial events and blocks
// until the connection goes away.
func (h *Hub) Serve(conn *websocket.Conn, topic string, initial ...Event) {
	_ = h.ServeSnapshot(conn, topic, func() ([]Event, error) { return initial, nil })
}

// ServeSnapshot is Serve with initial events read from the store. load runs
// while publishing is held back, so the snapshot reflects every event
// published before the subscription and every later event follows it.
func (h *Hub) ServeSnapshot(conn *websocket.Conn, topic string, load Snapshot) error {
	c := &client{hub: h, conn: conn, topic: topic}
	if err := h.subscribe(c, load); err != nil {
		_ = conn.Close()
		return err
	}
	go c.writePump()
	c.readPump()
	h.remove(c)
	return nil
}

func (h *Hub) subscribe(c *client, load Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	initial, err := load()
	if err != nil {
		return err
	}
	c.send = make(chan []byte, h.SendBuffer+len(initial))
	for _, ev := range initial {
		if ev.At == 0 {
			ev.At = time.Now().UnixMilli()
		}
		if b, err := json.Marshal(ev); err == nil {
			c.send <- b
		}
	}
	h.join(c)
	return nil
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for topic, set := range h.topics {
		for c := range set {
			close(c.send)
		}
		delete(h.topics, topic)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.join(c)
	return true
}

// join registers c; the caller holds h.mu.
func (h *Hub) join(c *client) {
	set, ok := h.topics[c.topic]
	if !ok {
		set = make(map[*client]struct{})
		h.topics[c.topic] = set
	}
	set[c] = struct{}{}
}

// remove unsubscribes c and closes its queue exactly once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.topics, c.topic)
	}
}
