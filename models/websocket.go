// models/websocket.go
package models

import (
	"time"
)

// WebSocket Message Types
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	UserID    string      `json:"userId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

const (
	WSTypeEmergencyEvent   = "emergency_event"
	WSTypeLocationRequest  = "location_request"
	WSTypeLocationResponse = "location_response"
	WSTypePing             = "ping"
	WSTypePong             = "pong"
	WSTypeError            = "error"
	WSTypeConnected        = "connected"
)

// WSLocationRequest asks a device for a fix.
type WSLocationRequest struct {
	HighAccuracy bool  `json:"highAccuracy"`
	TimeoutMs    int64 `json:"timeoutMs"`
	MaximumAgeMs int64 `json:"maximumAgeMs"`
}

// WSLocationResponse is the device's answer. Error is one of the
// LocationFailureReason values when no fix could be taken.
type WSLocationResponse struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
}
