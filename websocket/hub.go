package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"lifeline/models"
	"lifeline/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub tracks connected devices per user. It pushes coordinator events to
// them and brokers location requests to the user's devices.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Devices per user; a user may be connected from several
	userClients map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Location requests waiting for a device answer, by request ID
	pending   map[string]pendingLocation
	pendingMu sync.Mutex

	stats HubStats

	// Mutex for thread safety
	mutex sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc

	cleanupTicker *time.Ticker
	idleTimeout   time.Duration
}

type HubStats struct {
	TotalConnections  int64     `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	ConnectedUsers    int       `json:"connectedUsers"`
	MessagesSent      int64     `json:"messagesSent"`
	LocationRequests  int64     `json:"locationRequests"`
	StartTime         time.Time `json:"startTime"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Clients are mobile apps authenticated by token, not browsers
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		pending:       make(map[string]pendingLocation),
		stats:         HubStats{StartTime: time.Now()},
		ctx:           ctx,
		cancel:        cancel,
		cleanupTicker: time.NewTicker(time.Minute),
		idleTimeout:   5 * time.Minute,
	}
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.cleanupTicker.C:
			h.performCleanup()

		case <-h.ctx.Done():
			logrus.Info("WebSocket Hub shutting down...")
			return
		}
	}
}

// Upgrade turns the request into a device connection for principal.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, principal models.Principal) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.ServeClient(conn, principal, r)
	return nil
}

// ServeClient registers an upgraded connection and starts its pumps.
func (h *Hub) ServeClient(conn *websocket.Conn, principal models.Principal, r *http.Request) {
	client := NewClient(conn, h, principal.UserID, r)

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	client.SendMessage(models.WSMessage{
		Type: models.WSTypeConnected,
		Data: map[string]interface{}{
			"connectionId": client.connectionID,
			"userId":       client.userID,
		},
		Timestamp: time.Now(),
	})
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	devices, ok := h.userClients[client.userID]
	if !ok {
		devices = make(map[*Client]bool)
		h.userClients[client.userID] = devices
	}
	devices[client] = true

	h.stats.ActiveConnections++
	h.stats.TotalConnections++

	logrus.WithFields(logrus.Fields{
		"user_id":       client.userID,
		"connection_id": client.connectionID,
		"ip":            client.ipAddress,
	}).Infof("Client registered (Total: %d)", h.stats.ActiveConnections)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	if devices, ok := h.userClients[client.userID]; ok {
		delete(devices, client)
		if len(devices) == 0 {
			delete(h.userClients, client.userID)
		}
	}
	h.stats.ActiveConnections--

	logrus.Infof("Client unregistered: %s (Total: %d)", client.userID, h.stats.ActiveConnections)
}

func (h *Hub) devicesFor(userID string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	devices := make([]*Client, 0, len(h.userClients[userID]))
	for client := range h.userClients[userID] {
		devices = append(devices, client)
	}
	return devices
}

// SendToUser delivers a message to every connected device of the user.
// It never blocks; a device with a full queue misses the message.
func (h *Hub) SendToUser(userID string, message models.WSMessage) int {
	sent := 0
	for _, client := range h.devicesFor(userID) {
		if client.SendMessage(message) {
			sent++
		}
	}

	h.mutex.Lock()
	h.stats.MessagesSent += int64(sent)
	h.mutex.Unlock()
	return sent
}

// Emit forwards coordinator events to the user's own devices.
func (h *Hub) Emit(event models.CoordinatorEvent) {
	h.SendToUser(event.UserID, models.WSMessage{
		Type:      models.WSTypeEmergencyEvent,
		Data:      event,
		UserID:    event.UserID,
		Timestamp: event.Timestamp,
	})
}

// pendingLocation is an outstanding location request and the user it was sent to.
type pendingLocation struct {
	userID string
	waiter chan models.WSLocationResponse
}

// RequestPosition asks the user's devices for a fix and waits for the first
// answer or for ctx to end.
func (h *Hub) RequestPosition(ctx context.Context, req services.PositionRequest) (*models.Position, error) {
	requestID := uuid.NewString()
	waiter := make(chan models.WSLocationResponse, 1)

	h.pendingMu.Lock()
	h.pending[requestID] = pendingLocation{userID: req.UserID, waiter: waiter}
	h.pendingMu.Unlock()

	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, requestID)
		h.pendingMu.Unlock()
	}()

	sent := h.SendToUser(req.UserID, models.WSMessage{
		Type: models.WSTypeLocationRequest,
		Data: models.WSLocationRequest{
			HighAccuracy: req.HighAccuracy,
			TimeoutMs:    req.Timeout.Milliseconds(),
			MaximumAgeMs: req.MaximumAge.Milliseconds(),
		},
		UserID:    req.UserID,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
	if sent == 0 {
		return nil, &services.LocationUnavailableError{
			Reason: models.LocationUnavailable,
			Cause:  services.ErrNoDeviceConnected,
		}
	}

	h.mutex.Lock()
	h.stats.LocationRequests++
	h.mutex.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-waiter:
		return positionFromResponse(resp)
	}
}

// deliverLocationResponse hands a device answer to the waiting request.
// Answers for unknown or already answered requests, or from a device of
// another user, are dropped.
func (h *Hub) deliverLocationResponse(userID, requestID string, resp models.WSLocationResponse) bool {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	p, ok := h.pending[requestID]
	if !ok {
		return false
	}
	if p.userID != userID {
		logrus.Warnf("Location response %s from user %s rejected, request belongs to %s", requestID, userID, p.userID)
		return false
	}
	delete(h.pending, requestID)
	p.waiter <- resp
	return true
}

func positionFromResponse(resp models.WSLocationResponse) (*models.Position, error) {
	if resp.Error == "" {
		return &models.Position{
			Latitude:  resp.Latitude,
			Longitude: resp.Longitude,
			Accuracy:  resp.Accuracy,
			Timestamp: resp.Timestamp,
		}, nil
	}

	reason := models.LocationFailureReason(resp.Error)
	switch reason {
	case models.LocationPermissionDenied, models.LocationTimeout:
	default:
		reason = models.LocationUnavailable
	}
	message := resp.Message
	if message == "" {
		message = resp.Error
	}
	return nil, &services.LocationUnavailableError{Reason: reason, Cause: errors.New(message)}
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients[userID]) > 0
}

func (h *Hub) GetStats() HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := h.stats
	stats.ConnectedUsers = len(h.userClients)
	return stats
}

func (h *Hub) performCleanup() {
	h.mutex.RLock()
	var stale []*Client
	for client := range h.clients {
		if time.Since(client.LastActivity()) > h.idleTimeout {
			stale = append(stale, client)
		}
	}
	h.mutex.RUnlock()

	// Close hands the client back to Run, so it must not run on this goroutine
	for _, client := range stale {
		logrus.Warnf("Removing inactive client: %s", client.userID)
		go client.Close()
	}
}

func (h *Hub) Shutdown() {
	logrus.Info("Shutting down WebSocket Hub...")

	h.cleanupTicker.Stop()
	h.cancel()

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.Close()
	}

	logrus.Info("WebSocket Hub shutdown complete")
}
