package models

import (
	"fmt"
	"time"
)

// AccuracyTier is a coarse label derived from horizontal accuracy in metres.
type AccuracyTier string

const (
	AccuracyExcellent AccuracyTier = "excellent"
	AccuracyGood      AccuracyTier = "good"
	AccuracyModerate  AccuracyTier = "moderate"
	AccuracyLow       AccuracyTier = "low"
)

// TierForAccuracy maps metres to a tier: <=5 excellent, <=10 good, <=20 moderate.
func TierForAccuracy(meters float64) AccuracyTier {
	switch {
	case meters <= 5:
		return AccuracyExcellent
	case meters <= 10:
		return AccuracyGood
	case meters <= 20:
		return AccuracyModerate
	default:
		return AccuracyLow
	}
}

// LocationFailureReason explains why no sample could be produced.
type LocationFailureReason string

const (
	LocationPermissionDenied LocationFailureReason = "permission_denied"
	LocationUnavailable      LocationFailureReason = "unavailable"
	LocationTimeout          LocationFailureReason = "timeout"
)

type LocationFailure struct {
	Reason  LocationFailureReason `json:"reason" bson:"reason"`
	Message string                `json:"message,omitempty" bson:"message,omitempty"`
}

// Position is a raw fix reported by a device.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationSample is a geocoded position attached to an emergency.
type LocationSample struct {
	Latitude             float64      `json:"latitude" bson:"latitude"`
	Longitude            float64      `json:"longitude" bson:"longitude"`
	AccuracyMeters       float64      `json:"accuracyMeters" bson:"accuracyMeters"`
	AccuracyTier         AccuracyTier `json:"accuracyTier" bson:"accuracyTier"`
	CapturedAt           time.Time    `json:"capturedAt" bson:"capturedAt"`
	HumanReadableAddress string       `json:"address" bson:"address"`
}

// IsStale reports whether the sample was captured more than window before at.
func (s LocationSample) IsStale(at time.Time, window time.Duration) bool {
	return at.Sub(s.CapturedAt) > window
}

// MapsURL returns a link contacts can open on any phone.
func (s LocationSample) MapsURL() string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", s.Latitude, s.Longitude)
}

// PlaceholderAddress is used when reverse geocoding is disabled or failed.
func PlaceholderAddress(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}
