package services

import (
	"errors"
	"fmt"

	"lifeline/models"
)

// InvalidTransitionError is returned when an operation is not legal in the
// coordinator's current state. The state is left untouched.
type InvalidTransitionError struct {
	Operation string
	From      models.EmergencyState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s while %s", e.Operation, e.From)
}

// LocationUnavailableError carries the reason a location sample could not be produced.
type LocationUnavailableError struct {
	Reason models.LocationFailureReason
	Cause  error
}

func (e *LocationUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("location unavailable (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("location unavailable (%s)", e.Reason)
}

func (e *LocationUnavailableError) Unwrap() error { return e.Cause }

// Failure converts the error into the value recorded on an event.
func (e *LocationUnavailableError) Failure() *models.LocationFailure {
	f := &models.LocationFailure{Reason: e.Reason}
	if e.Cause != nil {
		f.Message = e.Cause.Error()
	}
	return f
}

// NotificationFailure is a single contact/channel delivery failure.
type NotificationFailure struct {
	ContactID string
	Channel   models.NotificationChannel
	Cause     error
}

func (e *NotificationFailure) Error() string {
	return fmt.Sprintf("notify %s via %s: %v", e.ContactID, e.Channel, e.Cause)
}

func (e *NotificationFailure) Unwrap() error { return e.Cause }

// DirectoryUnavailableError means the contact list could not be read.
type DirectoryUnavailableError struct {
	Cause error
}

func (e *DirectoryUnavailableError) Error() string {
	return fmt.Sprintf("contact directory unavailable: %v", e.Cause)
}

func (e *DirectoryUnavailableError) Unwrap() error { return e.Cause }

var (
	ErrChannelNotConfigured = errors.New("channel not configured")
	ErrMissingPhone         = errors.New("contact has no phone number")
	ErrMissingEmail         = errors.New("contact has no email address")
	ErrMissingDeviceToken   = errors.New("contact has no registered device")
	ErrNoDeviceConnected    = errors.New("no device connected")
)

// AsLocationUnavailable normalises any provider error into a LocationUnavailableError.
func AsLocationUnavailable(err error) *LocationUnavailableError {
	var lu *LocationUnavailableError
	if errors.As(err, &lu) {
		return lu
	}
	return &LocationUnavailableError{Reason: models.LocationUnavailable, Cause: err}
}
