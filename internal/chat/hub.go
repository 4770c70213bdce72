// Package chat keeps the conversation between the user and the trading
// agent: a broadcast hub with bounded history, and a responder that turns
// user messages into agent replies or trade commands.
package chat

import (
	"sync"
	"time"

	"conflux/internal/logger"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// Message is one chat line as it goes over the wire and into history.
type Message struct {
	ID        string    `json:"id"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is the write half of a chat connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Peer serializes writes to one connection.
type Peer struct {
	mu   sync.Mutex
	conn Conn
}

func (p *Peer) send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(msg)
}

const defaultMaxHistory = 500

// Hub fans every published message out to all connected peers and keeps a
// bounded in-memory history so late joiners can catch up.
type Hub struct {
	mu         sync.Mutex
	peers      map[*Peer]struct{}
	history    []Message
	maxHistory int
	observer   func(Message)
}

// SetObserver registers a callback invoked for every published message,
// after it is broadcast. Used for transcript persistence.
func (h *Hub) SetObserver(fn func(Message)) {
	h.mu.Lock()
	h.observer = fn
	h.mu.Unlock()
}

func NewHub() *Hub {
	return &Hub{
		peers:      make(map[*Peer]struct{}),
		maxHistory: defaultMaxHistory,
	}
}

// Join registers a connection and replays the current history to it before
// any new broadcast can reach it.
func (h *Hub) Join(conn Conn) *Peer {
	p := &Peer{conn: conn}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	backlog := append([]Message(nil), h.history...)
	h.mu.Unlock()

	for _, msg := range backlog {
		if err := p.send(msg); err != nil {
			logger.Warnf("chat: history replay to peer failed: %v", err)
			break
		}
	}
	return p
}

// Leave drops the peer. Safe to call twice.
func (h *Hub) Leave(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// Publish appends a message to history and broadcasts it. Peers whose write
// fails are evicted rather than allowed to stall the hub.
func (h *Hub) Publish(sender Sender, cycleID, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		CycleID:   cycleID,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	h.history = append(h.history, msg)
	if len(h.history) > h.maxHistory {
		h.history = h.history[len(h.history)-h.maxHistory:]
	}
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	observer := h.observer
	h.mu.Unlock()

	logger.LogChatLine(string(sender), content)
	for _, p := range peers {
		if err := p.send(msg); err != nil {
			logger.Warnf("chat: dropping peer after write error: %v", err)
			h.Leave(p)
		}
	}
	if observer != nil {
		observer(msg)
	}
	return msg
}

// History returns a copy of the retained messages, oldest first.
func (h *Hub) History() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.history...)
}
