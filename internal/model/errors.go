package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNoItemSelected     = errors.New("no item selected")
	ErrMissingCorrelation = errors.New("missing correlation id")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrTransport          = errors.New("transport failure")
	ErrTimeout            = errors.New("transport timeout")
	ErrOracleUnavailable  = errors.New("oracle unavailable")
)

// StateError is a local failure detected before any I/O.
// Never retried automatically.
type StateError struct {
	Code    string
	Message string
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewNoItemError reports a payment turn attempted without a selected item.
func NewNoItemError() *StateError {
	return &StateError{
		Code:    "NO_ITEM_SELECTED",
		Message: "none of selected item found in conversation",
		Err:     ErrNoItemSelected,
	}
}

// NewMissingCorrelationError reports a correlation id the protocol requires but the state lacks.
func NewMissingCorrelationError(field string) *StateError {
	return &StateError{
		Code:    "MISSING_CORRELATION",
		Message: fmt.Sprintf("%s is required to continue the task", field),
		Err:     ErrMissingCorrelation,
	}
}

// NewValidationError reports invalid local input.
func NewValidationError(field, reason string) *StateError {
	return &StateError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Err:     ErrInvalidRequest,
	}
}

// TransportError covers network failures, timeouts, and malformed or
// unsuccessful responses from either transport.
type TransportError struct {
	Transport  string // "a2a" or "mcp"
	Op         string // e.g. "resolve card", "send message", "call tool"
	StatusCode int    // HTTP status when the remote answered, else 0
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Transport, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err so that errors.Is(err, ErrTransport) holds.
// Deadline failures additionally match ErrTimeout.
func NewTransportError(transport, op string, err error) *TransportError {
	if errors.Is(err, ErrTransport) {
		return &TransportError{Transport: transport, Op: op, Err: err}
	}
	return &TransportError{
		Transport: transport,
		Op:        op,
		Err:       fmt.Errorf("%w: %w", ErrTransport, err),
	}
}

// NewStatusError reports a non-success HTTP response.
func NewStatusError(transport, op string, status int, body string) *TransportError {
	return &TransportError{
		Transport:  transport,
		Op:         op,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %s", ErrTransport, body),
	}
}

// NewTimeoutError reports an exceeded transport deadline.
func NewTimeoutError(transport, op string, err error) *TransportError {
	return &TransportError{
		Transport: transport,
		Op:        op,
		Err:       fmt.Errorf("%w: %w: %w", ErrTransport, ErrTimeout, err),
	}
}

// OracleError reports an unreachable or misbehaving completion oracle.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// NewOracleError wraps err so that errors.Is(err, ErrOracleUnavailable) holds.
func NewOracleError(op string, err error) *OracleError {
	return &OracleError{
		Op:  op,
		Err: fmt.Errorf("%w: %w", ErrOracleUnavailable, err),
	}
}
