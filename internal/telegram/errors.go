// ABOUTME: Error types for the Telegram client and inbound payload validation
// ABOUTME: DeliveryError carries the method, chat and API status of a failed outbound call

package telegram

import (
	"errors"
	"fmt"
)

// ErrClientClosed is wrapped by DeliveryError for calls made after Close.
var ErrClientClosed = errors.New("telegram client closed")

// DeliveryError is returned for every failed outbound call: network errors,
// timeouts, non-2xx responses and ok=false API responses.
type DeliveryError struct {
	Method      string
	ChatID      int64 // zero when the method is not chat-scoped
	StatusCode  int   // zero when no HTTP response was received
	Description string
	Err         error
}

func (e *DeliveryError) Error() string {
	msg := "telegram " + e.Method
	if e.ChatID != 0 {
		msg += fmt.Sprintf(" to chat %d", e.ChatID)
	}
	msg += " failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http %d", e.StatusCode)
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ValidationError reports an inbound payload missing a required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid update payload: missing %s", e.Field)
}
