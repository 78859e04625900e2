package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the anomaly does not exist
	ErrNotFound = errors.New("anomaly not found")
	// ErrInvalidState is returned when the anomaly's status forbids the transition
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation is returned when required input is missing
	ErrValidation = errors.New("validation failed")
	// ErrNotAutoResolvable is returned by AutoResolve for anomalies whose type requires operator judgment
	ErrNotAutoResolvable = errors.New("anomaly is not auto-resolvable")
	// ErrStoreUnavailable marks a total detection failure
	ErrStoreUnavailable = errors.New("anomaly store unavailable")
)

// Rejection codes reported to callers of the workflow
const (
	CodeInvalidState      = "invalid_state"
	CodeNotFound          = "not_found"
	CodeValidation        = "validation_error"
	CodeNotAutoResolvable = "not_auto_resolvable"
)

// TransitionError describes why a workflow action was rejected
type TransitionError struct {
	Code      string
	Action    string
	AnomalyID string
	Message   string
	Err       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Action, e.AnomalyID, e.Message)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func rejection(code, action, anomalyID, message string) *TransitionError {
	var sentinel error
	switch code {
	case CodeNotFound:
		sentinel = ErrNotFound
	case CodeValidation:
		sentinel = ErrValidation
	case CodeNotAutoResolvable:
		sentinel = ErrNotAutoResolvable
	default:
		sentinel = ErrInvalidState
	}
	return &TransitionError{
		Code:      code,
		Action:    action,
		AnomalyID: anomalyID,
		Message:   message,
		Err:       sentinel,
	}
}

// RejectionCode returns the machine-readable reason for a workflow error,
// or an empty string if err is not a rejection
func RejectionCode(err error) string {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotAutoResolvable):
		return CodeNotAutoResolvable
	}
	return ""
}
