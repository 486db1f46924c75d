// Package sse streams drift lifecycle events to browsers over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/internal/metrics"
)

// HeartbeatInterval is how often an idle stream receives a comment line so
// proxies keep the connection open.
const HeartbeatInterval = 15 * time.Second

// Client represents a connected SSE client.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	mu      sync.Mutex
	once    sync.Once
}

// write sends one frame; writes from Broadcast and the heartbeat must not
// interleave.
func (c *Client) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.Writer.Write(frame); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// Broadcaster manages SSE client connections and message broadcasting.
type Broadcaster struct {
	clients   map[string]*Client
	heartbeat time.Duration
	nextID    int
	mu        sync.RWMutex
	closed    bool
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:   make(map[string]*Client),
		heartbeat: HeartbeatInterval,
	}
}

// SetHeartbeat changes the heartbeat interval for new connections.
func (b *Broadcaster) SetHeartbeat(d time.Duration) {
	b.mu.Lock()
	b.heartbeat = d
	b.mu.Unlock()
}

// AddClient adds a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("broadcaster closed")
	}
	b.nextID++
	client := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[client.ID] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	metrics.SSEClients.Set(float64(clientCount))
	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client connection. Safe to call more than once.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	_, exists := b.clients[client.ID]
	delete(b.clients, client.ID)
	clientCount := len(b.clients)
	b.mu.Unlock()

	client.close()

	if exists {
		metrics.SSEClients.Set(float64(clientCount))
		log.Debug().
			Str("clientId", client.ID).
			Int("totalClients", clientCount).
			Msg("SSE client disconnected")
	}
}

// Broadcast sends a message to all connected clients.
func (b *Broadcaster) Broadcast(data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}
	frame := []byte(fmt.Sprintf("data: %s\n\n", payload))

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	var dead []*Client
	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
		}
		if err := client.write(frame); err != nil {
			log.Debug().Str("clientId", client.ID).Err(err).Msg("Failed to write to SSE client, marking for removal")
			dead = append(dead, client)
		}
	}

	for _, client := range dead {
		b.RemoveClient(client)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.Unlock()

	for _, client := range clients {
		b.RemoveClient(client)
	}
}

// HandleSSE handles an SSE connection request.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello, _ := json.Marshal(map[string]string{"type": "connected", "clientId": client.ID})
	if err := client.write([]byte(fmt.Sprintf("data: %s\n\n", hello))); err != nil {
		return
	}

	b.mu.RLock()
	interval := b.heartbeat
	b.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-ticker.C:
			if err := client.write([]byte(": ping\n\n")); err != nil {
				return
			}
		}
	}
}
