package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationChannel is a delivery mechanism for reaching a contact.
type NotificationChannel string

const (
	ChannelCall  NotificationChannel = "call"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
	ChannelEmail NotificationChannel = "email"
)

func (c NotificationChannel) IsValid() bool {
	switch c {
	case ChannelCall, ChannelSMS, ChannelPush, ChannelEmail:
		return true
	}
	return false
}

// EmergencyContact is a person to notify when the owner activates an emergency.
type EmergencyContact struct {
	ID            primitive.ObjectID    `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID    `json:"userId" bson:"userId"`
	Name          string                `json:"name" bson:"name"`
	Phone         string                `json:"phone" bson:"phone"`
	Email         string                `json:"email,omitempty" bson:"email,omitempty"`
	Relationship  string                `json:"relationship,omitempty" bson:"relationship,omitempty"`
	IsPrimary     bool                  `json:"isPrimary" bson:"isPrimary"`
	IsOnline      bool                  `json:"isOnline" bson:"isOnline"`
	LastSeen      *time.Time            `json:"lastSeen,omitempty" bson:"lastSeen,omitempty"`
	DeviceToken   string                `json:"-" bson:"deviceToken,omitempty"`
	NotifyMethods []NotificationChannel `json:"notifyMethods,omitempty" bson:"notifyMethods,omitempty"`
	CreatedAt     time.Time             `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt" bson:"updatedAt"`
}

// Key returns the identifier used in notification bookkeeping.
func (c EmergencyContact) Key() string {
	return c.ID.Hex()
}

// =================== REQUEST DTOs ===================

type CreateEmergencyContactRequest struct {
	Name          string                `json:"name" validate:"required,min=1,max=100"`
	Phone         string                `json:"phone" validate:"required,phone"`
	Email         string                `json:"email" validate:"omitempty,email"`
	Relationship  string                `json:"relationship" validate:"omitempty,max=50"`
	IsPrimary     bool                  `json:"isPrimary"`
	DeviceToken   string                `json:"deviceToken" validate:"omitempty,max=4096"`
	NotifyMethods []NotificationChannel `json:"notifyMethods" validate:"omitempty,dive,channel"`
}

type UpdateEmergencyContactRequest struct {
	Name          *string               `json:"name" validate:"omitempty,min=1,max=100"`
	Phone         *string               `json:"phone" validate:"omitempty,phone"`
	Email         *string               `json:"email" validate:"omitempty,email"`
	Relationship  *string               `json:"relationship" validate:"omitempty,max=50"`
	IsPrimary     *bool                 `json:"isPrimary"`
	IsOnline      *bool                 `json:"isOnline"`
	DeviceToken   *string               `json:"deviceToken" validate:"omitempty,max=4096"`
	NotifyMethods []NotificationChannel `json:"notifyMethods" validate:"omitempty,dive,channel"`
}
