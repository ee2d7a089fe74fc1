package main

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// SpectatorFrame is the msgpack message pushed to websocket watchers
type SpectatorFrame struct {
	T       string      `msgpack:"t" json:"t"`
	ArenaID string      `msgpack:"arenaId" json:"arenaId"`
	Match   *MatchState `msgpack:"match,omitempty" json:"match,omitempty"`
	Error   string      `msgpack:"error,omitempty" json:"error,omitempty"`
}

type subscription struct {
	client  *Client
	arenaID string
}

type arenaFrame struct {
	arenaID string
	data    []byte
}

// Hub fans match snapshots out to websocket spectators grouped by arena
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	arenas     map[string]map[*Client]bool
	register   chan subscription
	unregister chan *Client
	broadcast  chan arenaFrame
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// snapshot loads the current match for a newly subscribed watcher
	snapshot func(ctx context.Context, arenaID string) (*MatchState, error)
}

// NewHub creates a Hub; snapshot may be nil
func NewHub(snapshot func(ctx context.Context, arenaID string) (*MatchState, error)) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		arenas:     make(map[string]map[*Client]bool),
		register:   make(chan subscription, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan arenaFrame, 256),
		ipConns:    make(map[string]int),
		snapshot:   snapshot,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Publish queues a snapshot of m for every watcher of arenaID. It never
// blocks the caller; a full queue drops the frame. Arenas nobody watches
// are skipped before encoding.
func (h *Hub) Publish(arenaID string, m *MatchState) {
	if h.Watchers(arenaID) == 0 {
		return
	}
	data, err := msgpack.Marshal(SpectatorFrame{T: "state", ArenaID: arenaID, Match: m})
	if err != nil {
		log.Warn("encode spectator frame failed", "arena", arenaID, "err", err)
		return
	}
	select {
	case h.broadcast <- arenaFrame{arenaID: arenaID, data: data}:
	default:
		log.Debug("spectator queue full, dropping frame", "arena", arenaID)
	}
}

// Run processes register, subscribe and broadcast events until ctx ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.closed = true
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.arenas = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case sub := <-h.register:
			// registers a new client or moves a known one to another arena
			h.mu.Lock()
			if !sub.client.closed {
				h.clients[sub.client] = true
				h.leaveArena(sub.client)
				if sub.arenaID != "" {
					set, ok := h.arenas[sub.arenaID]
					if !ok {
						set = make(map[*Client]bool)
						h.arenas[sub.arenaID] = set
					}
					set[sub.client] = true
					sub.client.arenaID = sub.arenaID
				}
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if !client.closed {
				client.closed = true
				delete(h.clients, client)
				h.leaveArena(client)
				close(client.send)
			}
			h.mu.Unlock()

		case f := <-h.broadcast:
			h.mu.RLock()
			for c := range h.arenas[f.arenaID] {
				c.SendBinary(f.data)
			}
			h.mu.RUnlock()
		}
	}
}

// leaveArena drops a client's current subscription; caller holds h.mu
func (h *Hub) leaveArena(c *Client) {
	if c.arenaID == "" {
		return
	}
	if set, ok := h.arenas[c.arenaID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.arenas, c.arenaID)
		}
	}
	c.arenaID = ""
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Watchers returns how many clients watch arenaID
func (h *Hub) Watchers(arenaID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.arenas[arenaID])
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
