package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1024
	sendBufSize       = 64
	maxMessagesPerSec = 10
)

// WatchMessage is the only message spectators send: which arena to follow
type WatchMessage struct {
	T       string `json:"t"`
	ArenaID string `json:"arenaId"`
}

// Client is one websocket spectator
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string
	arenaID    string // owned by Hub.Run
	closed     bool   // owned by Hub.Run
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads watch requests from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read error", "client", c.id, "err", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Warn("rate limit exceeded, disconnecting", "addr", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes queued frames to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendBinary queues a binary frame, dropping it if the client is too slow
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}

// SendFrame encodes and queues a frame
func (c *Client) SendFrame(f SpectatorFrame) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		log.Warn("encode frame failed", "client", c.id, "err", err)
		return
	}
	c.SendBinary(data)
}

func (c *Client) handleMessage(raw []byte) {
	var msg WatchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug("bad spectator message", "client", c.id, "err", err)
		return
	}
	if msg.T != "watch" || msg.ArenaID == "" {
		return
	}
	c.watch(msg.ArenaID)
}

// watch moves the subscription to arenaID and sends the current snapshot
func (c *Client) watch(arenaID string) {
	c.hub.register <- subscription{client: c, arenaID: arenaID}
	c.sendSnapshot(arenaID)
}

// sendSnapshot pushes the arena's current match, or an empty frame
func (c *Client) sendSnapshot(arenaID string) {
	if c.hub.snapshot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	m, err := c.hub.snapshot(ctx, arenaID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.SendFrame(SpectatorFrame{T: "empty", ArenaID: arenaID})
	case err != nil:
		c.SendFrame(SpectatorFrame{T: "error", ArenaID: arenaID, Error: err.Error()})
	default:
		c.SendFrame(SpectatorFrame{T: "state", ArenaID: arenaID, Match: m})
	}
}
