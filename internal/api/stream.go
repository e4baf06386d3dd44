package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ScoreEvent describes websocket payloads emitted during scoring runs.
type ScoreEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Total     int64     `json:"total,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Score     *ScoreDTO `json:"score,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// ScoreNotifier tracks active websocket clients and broadcasts score events.
type ScoreNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *ScoreEvent
}

// NewScoreNotifier constructs a notifier instance.
func NewScoreNotifier() *ScoreNotifier {
	return &ScoreNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle. The
// most recent status snapshot is replayed so late joiners catch up.
func (n *ScoreNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client and closes the socket.
func (n *ScoreNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *ScoreNotifier) Broadcast(event ScoreEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "progress" || event.Type == "score" || event.Type == "started" {
		snapshot := event
		snapshot.Score = nil
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns a copy of the latest status snapshot, if any.
func (n *ScoreNotifier) LastStatus() *ScoreEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	snapshot := *n.lastStatus
	return &snapshot
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
