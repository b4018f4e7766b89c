package models

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("operation conflicts with current state")
)

// AppError represents an application-level error with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrInvalidInput creates a validation error
func ErrInvalidInput(message string) error {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
	}
}

// ErrNotFoundWithMsg creates a not found error with custom message
func ErrNotFoundWithMsg(message string) error {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Err:     ErrNotFound,
	}
}

// conflict builds a state-conflict error with a lifecycle-specific code.
func conflict(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     ErrConflict,
	}
}

// Campaign lifecycle conflicts. Surfaced synchronously to the caller with
// campaign state unchanged.
func ErrAlreadyRunning(id int64) error {
	return conflict("ALREADY_RUNNING", fmt.Sprintf("campaign %d is already running", id))
}

func ErrAlreadyCompleted(id int64) error {
	return conflict("ALREADY_COMPLETED", fmt.Sprintf("campaign %d is already completed", id))
}

func ErrNotRunning(id int64) error {
	return conflict("NOT_RUNNING", fmt.Sprintf("campaign %d is not running", id))
}

func ErrNotPaused(id int64) error {
	return conflict("NOT_PAUSED", fmt.Sprintf("campaign %d is not paused", id))
}

func ErrCampaignBusy(id int64) error {
	return conflict("CAMPAIGN_BUSY", fmt.Sprintf("campaign %d is running and cannot be modified", id))
}

// Start-time input errors.
func ErrNoEligibleContacts() error {
	return &AppError{
		Code:    "NO_ELIGIBLE_CONTACTS",
		Message: "no eligible contacts match the campaign audience",
	}
}

func ErrNoActiveIntegration(channel string) error {
	return &AppError{
		Code:    "NO_ACTIVE_INTEGRATION",
		Message: fmt.Sprintf("no active %s integration is configured", channel),
	}
}
