package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfig represents watchlist/history configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeNavigationTimeout represents page navigation deadline errors
	ErrorTypeNavigationTimeout ErrorType = "navigation_timeout"
	// ErrorTypeSelectorTimeout represents selector wait deadline errors
	ErrorTypeSelectorTimeout ErrorType = "selector_timeout"
	// ErrorTypeParse represents price extraction errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypePicker represents interactive selector pick errors
	ErrorTypePicker ErrorType = "picker"
	// ErrorTypeTransport represents notification delivery errors
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeStorage represents store read/write errors
	ErrorTypeStorage ErrorType = "storage"
)

// CheckError represents an error raised while checking a watchlist item
// or managing its surrounding state.
type CheckError struct {
	Type    ErrorType
	Item    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CheckError) Error() string {
	if e.Err != nil {
		if e.Item != "" {
			return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Item, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s - %v", e.Type, e.Message, e.Err)
	}
	if e.Item != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Item, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *CheckError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error must abort the whole run. Per-item
// failures are isolated; only configuration and storage errors surface
// as process-level failures.
func (e *CheckError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeConfig, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// New creates a new CheckError
func New(errType ErrorType, item, message string, err error) *CheckError {
	return &CheckError{
		Type:    errType,
		Item:    item,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewConfig creates a new configuration error
func NewConfig(message string, err error) *CheckError {
	return New(ErrorTypeConfig, "", message, err)
}

// NewNavigationTimeout creates a new navigation timeout error
func NewNavigationTimeout(item, url string, err error) *CheckError {
	return New(ErrorTypeNavigationTimeout, item, fmt.Sprintf("navigating %s", url), err)
}

// NewSelectorTimeout creates a new selector wait timeout error
func NewSelectorTimeout(item, selector string, err error) *CheckError {
	return New(ErrorTypeSelectorTimeout, item, fmt.Sprintf("waiting for %q", selector), err)
}

// NewParse creates a new price extraction error
func NewParse(item, message string, err error) *CheckError {
	return New(ErrorTypeParse, item, message, err)
}

// NewPicker creates a new selector pick error
func NewPicker(item, message string, err error) *CheckError {
	return New(ErrorTypePicker, item, message, err)
}

// NewTransport creates a new notification delivery error
func NewTransport(item, channel string, err error) *CheckError {
	return New(ErrorTypeTransport, item, fmt.Sprintf("sending via %s", channel), err)
}

// NewStorage creates a new storage error
func NewStorage(message string, err error) *CheckError {
	return New(ErrorTypeStorage, "", message, err)
}

// TypeOf returns the taxonomy type of err, or an empty string when err is
// not a CheckError.
func TypeOf(err error) ErrorType {
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}
