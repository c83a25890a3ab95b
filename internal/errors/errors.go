// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// ErrNoBaseline signals that no analysis snapshot exists yet to compare or
// report against.
var ErrNoBaseline = errors.New("no baseline snapshot")

// SourceFetchError represents a failure fetching listings from a source.
type SourceFetchError struct {
	SourceID string
	URL      string
	Attempts int
	Err      error
}

func (e *SourceFetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("source fetch [%s] %s after %d attempts: %v", e.SourceID, e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("source fetch [%s] after %d attempts: %v", e.SourceID, e.Attempts, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// NewSourceFetchError creates a new SourceFetchError.
func NewSourceFetchError(sourceID, url string, attempts int, err error) *SourceFetchError {
	return &SourceFetchError{
		SourceID: sourceID,
		URL:      url,
		Attempts: attempts,
		Err:      err,
	}
}

// ValidationError represents a validation error on a scraped listing field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientDataError represents an analysis over too few records to be
// meaningful.
type InsufficientDataError struct {
	Analysis string
	Have     int
	Need     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d records, need %d", e.Analysis, e.Have, e.Need)
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(analysis string, have, need int) *InsufficientDataError {
	return &InsufficientDataError{
		Analysis: analysis,
		Have:     have,
		Need:     need,
	}
}

// NotificationDeliveryError represents a failure delivering alerts over a
// notification channel. Undelivered events remain queued for retry.
type NotificationDeliveryError struct {
	Channel string
	Count   int
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notification delivery [%s] failed for %d alerts: %v", e.Channel, e.Count, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}

// NewNotificationDeliveryError creates a new NotificationDeliveryError.
func NewNotificationDeliveryError(channel string, count int, err error) *NotificationDeliveryError {
	return &NotificationDeliveryError{
		Channel: channel,
		Count:   count,
		Err:     err,
	}
}
