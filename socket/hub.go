package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"docdash/internal/document/model"
	"docdash/pkg/logger"
)

const (
	SnapshotType = "SNAPSHOT" // Full current contents of a collection
	ErrorType    = "ERROR"    // The subscription could not be served
)

type WSMessage struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Payload    json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// SnapshotLoader reads the full contents of a collection.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, c model.Collection) ([]model.Document, error)
}

// Hub keeps one room per collection and pushes a full snapshot to every
// client in a room whenever the collection changes.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	loader     SnapshotLoader
	// Collections that changed since the last flush.
	Dirty map[string]bool
	mu    sync.Mutex
	// loadMu serializes snapshot loads and sends so a client never receives
	// an older snapshot after a newer one.
	loadMu sync.Mutex
	wake   chan struct{}
}

func NewHub(loader SnapshotLoader) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		loader:     loader,
		Dirty:      make(map[string]bool),
		wake:       make(chan struct{}, 1),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.mu.Lock()
			path := client.Collection.Path()
			if h.Rooms[path] == nil {
				h.Rooms[path] = make(map[*Client]bool)
			}
			h.Rooms[path][client] = true
			h.mu.Unlock()

			// The joining client gets the current state right away.
			h.loadMu.Lock()
			msg := h.snapshotMessage(ctx, client.Collection)
			client.trySend(msg)
			h.loadMu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			path := client.Collection.Path()
			if _, ok := h.Rooms[path][client]; ok {
				delete(h.Rooms[path], client)
				client.closeSend()

				if len(h.Rooms[path]) == 0 {
					delete(h.Rooms, path)
					delete(h.Dirty, path)
					logger.Sugar.Infof("Closed and cleaned up empty room: %s", path)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify marks a collection as changed and wakes the flush worker. It never
// blocks.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	if _, ok := h.Rooms[collection]; ok {
		h.Dirty[collection] = true
	}
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// FlushWorker pushes snapshots of changed collections. It flushes as soon as
// it is woken and on every tick as a safety net.
func (h *Hub) FlushWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.wake:
		case <-ticker.C:
		}
		h.Flush(ctx)
	}
}

// Flush loads one snapshot per dirty collection and sends it to that room.
func (h *Hub) Flush(ctx context.Context) {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	h.mu.Lock()
	dirty := make([]string, 0, len(h.Dirty))
	for path := range h.Dirty {
		dirty = append(dirty, path)
	}
	h.Dirty = make(map[string]bool)
	h.mu.Unlock()

	for _, path := range dirty {
		c, err := model.ParseCollection(path)
		if err != nil {
			logger.Sugar.Warnf("Skipping flush of unknown collection %q", path)
			continue
		}
		msg := h.snapshotMessage(ctx, c)

		// Collect recipients under the lock, send outside of it.
		h.mu.Lock()
		clientsToSend := make([]*Client, 0, len(h.Rooms[path]))
		for client := range h.Rooms[path] {
			clientsToSend = append(clientsToSend, client)
		}
		h.mu.Unlock()

		for _, client := range clientsToSend {
			if !client.trySend(msg) {
				// The client is lagging. Unregister it so it does not block the hub.
				logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
				go func(c *Client) { h.Unregister <- c }(client)
			}
		}
	}
}

// DisconnectSession closes every connection opened with sessionID. Each read
// pump then exits and unregisters its client.
func (h *Hub) DisconnectSession(sessionID string) {
	if sessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.Rooms {
		for client := range clients {
			if client.SessionID == sessionID {
				client.Conn.Close()
			}
		}
	}
}

// Watchers returns how many clients are subscribed to a collection.
func (h *Hub) Watchers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[collection])
}

func (h *Hub) snapshotMessage(ctx context.Context, c model.Collection) []byte {
	docs, err := h.loader.Snapshot(ctx, c)
	if err != nil {
		logger.Sugar.Errorf("Failed to load snapshot of %s: %v", c, err)
		return encode(ErrorType, c, ErrorPayload{Message: err.Error()})
	}
	return encode(SnapshotType, c, docs)
}

func encode(msgType string, c model.Collection, payload any) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", msgType, err)
		body, _ = json.Marshal(ErrorPayload{Message: "internal error"})
		msgType = ErrorType
	}
	msg, _ := json.Marshal(WSMessage{Type: msgType, Collection: c.Path(), Payload: body})
	return msg
}
