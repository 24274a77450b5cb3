package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmergencyState is the lifecycle state of a user's emergency coordinator.
type EmergencyState string

const (
	EmergencyStateIdle       EmergencyState = "idle"
	EmergencyStateConfirming EmergencyState = "confirming"
	EmergencyStateActive     EmergencyState = "active"
	EmergencyStateCancelled  EmergencyState = "cancelled"
	EmergencyStateResolved   EmergencyState = "resolved"
)

// IsTerminal reports whether the state ends an episode.
func (s EmergencyState) IsTerminal() bool {
	return s == EmergencyStateCancelled || s == EmergencyStateResolved
}

// Notification statuses tracked per contact
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSucceeded NotificationStatus = "succeeded"
	NotificationFailed    NotificationStatus = "failed"
)

// DispatchOutcome summarises how far an episode got in reaching its contacts.
type DispatchOutcome string

const (
	DispatchOutcomeNone        DispatchOutcome = "none"
	DispatchOutcomeInProgress  DispatchOutcome = "in_progress"
	DispatchOutcomeFully       DispatchOutcome = "fully_notified"
	DispatchOutcomePartially   DispatchOutcome = "partially_notified"
	DispatchOutcomeNotNotified DispatchOutcome = "not_notified"
	DispatchOutcomeNoContacts  DispatchOutcome = "no_contacts"
	DispatchOutcomeUnavailable DispatchOutcome = "unavailable"
)

// ChannelResult is the outcome of one channel attempt for one contact.
type ChannelResult struct {
	Channel   NotificationChannel `json:"channel" bson:"channel"`
	Success   bool                `json:"success" bson:"success"`
	MessageID string              `json:"messageId,omitempty" bson:"messageId,omitempty"`
	Error     string              `json:"error,omitempty" bson:"error,omitempty"`
	SentAt    time.Time           `json:"sentAt" bson:"sentAt"`
}

type ContactNotification struct {
	ContactID   string             `json:"contactId" bson:"contactId"`
	ContactName string             `json:"contactName" bson:"contactName"`
	IsPrimary   bool               `json:"isPrimary" bson:"isPrimary"`
	Status      NotificationStatus `json:"status" bson:"status"`
	Channels    []ChannelResult    `json:"channels,omitempty" bson:"channels,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Succeeded is true when at least one channel reached the contact.
func (cn ContactNotification) Succeeded() bool {
	for _, ch := range cn.Channels {
		if ch.Success {
			return true
		}
	}
	return false
}

type DispatchSummary struct {
	Total     int `json:"total" bson:"total"`
	Pending   int `json:"pending" bson:"pending"`
	Succeeded int `json:"succeeded" bson:"succeeded"`
	Failed    int `json:"failed" bson:"failed"`
}

// EmergencyEvent is a read-only snapshot of the coordinator's current episode.
type EmergencyEvent struct {
	EpisodeID           string                         `json:"episodeId,omitempty"`
	UserID              string                         `json:"userId"`
	State               EmergencyState                 `json:"state"`
	StartedAt           *time.Time                     `json:"startedAt,omitempty"`
	EndedAt             *time.Time                     `json:"endedAt,omitempty"`
	DurationSeconds     int64                          `json:"durationSeconds"`
	Location            *LocationSample                `json:"location,omitempty"`
	LocationFailure     *LocationFailure               `json:"locationFailure,omitempty"`
	DirectoryError      string                         `json:"directoryError,omitempty"`
	DispatchOrder       []string                       `json:"dispatchOrder"`
	NotifiedContactIDs  []string                       `json:"notifiedContactIds"`
	NotificationResults map[string]ContactNotification `json:"notificationResults"`
	DispatchOutcome     DispatchOutcome                `json:"dispatchOutcome"`
	Summary             DispatchSummary                `json:"summary"`
	CancelReason        string                         `json:"cancelReason,omitempty"`
	Resolution          string                         `json:"resolution,omitempty"`
	ResolvedBy          string                         `json:"resolvedBy,omitempty"`
	UpdatedAt           time.Time                      `json:"updatedAt"`
}

// Payload kinds
type PayloadKind string

const (
	PayloadAlert     PayloadKind = "alert"
	PayloadStandDown PayloadKind = "stand_down"
)

// EmergencyPayload is what gets rendered into every outbound notification.
type EmergencyPayload struct {
	Kind       PayloadKind     `json:"kind"`
	EpisodeID  string          `json:"episodeId"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	Location   *LocationSample `json:"location,omitempty"`
	LocationNA string          `json:"locationUnavailable,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	Reason     string          `json:"reason,omitempty"`
}

// EmergencyRecord is the persisted history of one episode.
type EmergencyRecord struct {
	ID                  primitive.ObjectID             `json:"id" bson:"_id,omitempty"`
	EpisodeID           string                         `json:"episodeId" bson:"episodeId"`
	UserID              string                         `json:"userId" bson:"userId"`
	State               EmergencyState                 `json:"state" bson:"state"`
	StartedAt           time.Time                      `json:"startedAt" bson:"startedAt"`
	EndedAt             *time.Time                     `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	DurationSeconds     int64                          `json:"durationSeconds" bson:"durationSeconds"`
	Location            *LocationSample                `json:"location,omitempty" bson:"location,omitempty"`
	LocationFailure     *LocationFailure               `json:"locationFailure,omitempty" bson:"locationFailure,omitempty"`
	DirectoryError      string                         `json:"directoryError,omitempty" bson:"directoryError,omitempty"`
	DispatchOrder       []string                       `json:"dispatchOrder" bson:"dispatchOrder"`
	NotificationResults map[string]ContactNotification `json:"notificationResults" bson:"notificationResults"`
	DispatchOutcome     DispatchOutcome                `json:"dispatchOutcome" bson:"dispatchOutcome"`
	CancelReason        string                         `json:"cancelReason,omitempty" bson:"cancelReason,omitempty"`
	Resolution          string                         `json:"resolution,omitempty" bson:"resolution,omitempty"`
	ResolvedBy          string                         `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty"`
	Revision            int64                          `json:"revision" bson:"revision"`
	CreatedAt           time.Time                      `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time                      `json:"updatedAt" bson:"updatedAt"`
}

// =================== REQUEST DTOs ===================

type CancelEmergencyRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

type ResolveEmergencyRequest struct {
	Resolution string `json:"resolution" validate:"omitempty,max=500"`
}

type EmergencyHistoryQuery struct {
	Limit int64 `form:"limit" validate:"omitempty,min=1,max=100"`
}
