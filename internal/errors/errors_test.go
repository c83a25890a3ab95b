package errors

import (
	stderrors "errors"
	"testing"
)

func TestSourceFetchError(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewSourceFetchError("alibaba", "https://example.com/feed", 3, cause)

	want := "source fetch [alibaba] https://example.com/feed after 3 attempts: connection reset"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable with errors.Is")
	}

	bare := NewSourceFetchError("alibaba", "", 2, cause)
	want = "source fetch [alibaba] after 2 attempts: connection reset"
	if got := bare.Error(); got != want {
		t.Errorf("Error() without URL = %q, want %q", got, want)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("rating", 7.5, "rating must be within 0-5")

	want := "validation error: rating (7.5): rating must be within 0-5"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var verr *ValidationError
	if !stderrors.As(error(err), &verr) {
		t.Fatal("expected errors.As to match *ValidationError")
	}
	if verr.Field != "rating" {
		t.Errorf("Field = %q, want %q", verr.Field, "rating")
	}
}

func TestInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError("snapshot", 0, 10)

	want := "insufficient data for snapshot: have 0 records, need 10"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNotificationDeliveryError(t *testing.T) {
	cause := stderrors.New("webhook returned 500")
	err := NewNotificationDeliveryError("slack", 4, cause)

	want := "notification delivery [slack] failed for 4 alerts: webhook returned 500"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable with errors.Is")
	}
}
