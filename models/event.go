package models

import "time"

// Coordinator event types delivered to observability sinks.
const (
	EventConfirming           = "confirming"
	EventConfirmationAborted  = "confirmation_aborted"
	EventActivated            = "activated"
	EventCancelled            = "cancelled"
	EventResolved             = "resolved"
	EventReset                = "reset"
	EventNotificationResult   = "notification_result"
	EventLocationUnavailable  = "location_unavailable"
	EventDirectoryUnavailable = "directory_unavailable"
	EventDurationTick         = "duration_tick"
	EventStandDownResult      = "stand_down_result"
	EventLocationRefreshed    = "location_refreshed"
)

// CoordinatorEvent is a lifecycle or telemetry record emitted by a coordinator.
type CoordinatorEvent struct {
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId"`
	EpisodeID string                 `json:"episodeId,omitempty"`
	State     EmergencyState         `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
