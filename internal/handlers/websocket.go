package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pcapscope/internal/engine"
	"pcapscope/internal/models"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient wraps a WebSocket connection and implements engine.Client.
type WSClient struct {
	conn   *websocket.Conn
	srv    *engine.Server
	sendCh chan models.WSMessage
	done   chan struct{}
}

// NewWSClient creates a WSClient and registers it with the server.
func NewWSClient(conn *websocket.Conn, srv *engine.Server) *WSClient {
	c := &WSClient{
		conn:   conn,
		srv:    srv,
		sendCh: make(chan models.WSMessage, sendBuffer),
		done:   make(chan struct{}),
	}
	srv.RegisterClient(c)
	go c.writeLoop()
	return c
}

// SendMessage queues a message for async delivery. Non-blocking: packet
// messages drop when the buffer is full so a slow client cannot stall the
// analysis broadcast; control messages displace an old packet instead.
func (c *WSClient) SendMessage(msg models.WSMessage) error {
	select {
	case <-c.done:
		return nil
	case c.sendCh <- msg:
		return nil
	default:
		if msg.Type != "packet" {
			select {
			case <-c.sendCh:
				c.sendCh <- msg
			default:
				select {
				case c.sendCh <- msg:
				default:
				}
			}
		}
		return nil
	}
}

// writeLoop drains the send channel and writes to the WebSocket.
func (c *WSClient) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

			// Drain any queued messages in a single burst.
			n := len(c.sendCh)
			for i := 0; i < n; i++ {
				msg = <-c.sendCh
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(msg); err != nil {
					return
				}
			}
		case <-c.done:
			return
		}
	}
}

// ReadLoop reads messages from the client and dispatches commands.
func (c *WSClient) ReadLoop() {
	// The send channel is never closed: a concurrent broadcast may still
	// hold a reference. Closing done unblocks the write loop instead.
	defer func() {
		c.srv.UnregisterClient(c)
		close(c.done)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg models.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.handleCommand(msg)
	}
}

func (c *WSClient) handleCommand(msg models.WSMessage) {
	switch msg.Type {
	case "get_analysis":
		analysis := c.srv.LastAnalysis()
		if analysis == nil {
			c.sendError("no analysis available")
			return
		}
		payload, _ := json.Marshal(analysis)
		c.SendMessage(models.WSMessage{Type: "analysis", Payload: payload})

	default:
		c.sendError("unknown command: " + msg.Type)
	}
}

func (c *WSClient) sendError(message string) {
	payload, _ := json.Marshal(models.ErrorPayload{Message: message})
	c.SendMessage(models.WSMessage{Type: "error", Payload: payload})
}

// HandleWebSocket is the HTTP handler for WebSocket upgrades.
func HandleWebSocket(srv *engine.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		client := NewWSClient(conn, srv)
		client.ReadLoop()
	}
}
