package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lifeline/models"
	"lifeline/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 64
)

// inboundMessage is what devices send; Data is decoded per Type.
type inboundMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

type Client struct {
	conn *websocket.Conn
	hub  *Hub

	userID       string
	connectionID string
	connectedAt  time.Time
	lastActivity atomic.Int64
	ipAddress    string

	// Buffered channel of outbound messages
	send chan models.WSMessage

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, userID string, r *http.Request) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)

	client := &Client{
		conn:         conn,
		hub:          hub,
		userID:       userID,
		connectionID: utils.GenerateUUID(),
		connectedAt:  time.Now(),
		send:         make(chan models.WSMessage, sendBufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}
	if r != nil {
		client.ipAddress = getClientIP(r)
	}
	client.touch()
	return client
}

func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for user %s: %v", c.userID, err)
			}
			return
		}

		c.touch()
		c.handleMessage(data)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for user %s: %v", c.userID, err)
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.Warnf("Ping failed for user %s, disconnecting", c.userID)
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("INVALID_MESSAGE", "Invalid message format", "")
		return
	}

	switch msg.Type {
	case models.WSTypeLocationResponse:
		c.handleLocationResponse(msg)
	case models.WSTypePing:
		c.SendMessage(models.WSMessage{
			Type:      models.WSTypePong,
			Timestamp: time.Now(),
			RequestID: msg.RequestID,
		})
	default:
		c.sendError("INVALID_MESSAGE", "Unknown message type", msg.RequestID)
	}
}

func (c *Client) handleLocationResponse(msg inboundMessage) {
	if msg.RequestID == "" {
		c.sendError("INVALID_MESSAGE", "requestId required", "")
		return
	}

	var resp models.WSLocationResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		c.sendError("INVALID_LOCATION", "Invalid location data", msg.RequestID)
		return
	}

	if !c.hub.deliverLocationResponse(c.userID, msg.RequestID, resp) {
		logrus.Debugf("Late or unknown location response %s from %s", msg.RequestID, c.userID)
	}
}

func (c *Client) sendError(code, message, requestID string) {
	c.SendMessage(models.WSMessage{
		Type: models.WSTypeError,
		Data: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// SendMessage queues a message without blocking. It reports whether the
// message was queued.
func (c *Client) SendMessage(message models.WSMessage) bool {
	if c.ctx.Err() != nil {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		logrus.Warnf("Send channel full for user %s", c.userID)
		return false
	}
}

func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Close unregisters the client and stops both pumps. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()

		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}

		if c.conn != nil {
			c.conn.Close()
		}
		logrus.Infof("Client disconnected: %s (%s) after %s", c.userID, c.connectionID, time.Since(c.connectedAt).Round(time.Second))
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
