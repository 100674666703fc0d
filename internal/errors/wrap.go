package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper attaches a fixed module/operation pair to errors raised
// within one phase of work, so every error leaving that phase carries
// the same scope without repeating it at each return site.
type ErrorWrapper struct {
	module    string
	operation string
}

// NewWrapper builds an ErrorWrapper scoped to module and operation
// (e.g. "digest"/"aggregating").
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap attaches the wrapper's scope and a user-facing message to err.
// A nil err wraps to nil, so callers can wrap a function's return
// unconditionally.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// Wrapf is Wrap with a formatted user message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// WrappedError pairs the internal cause with the message suitable for a
// Task's error_message column or an HTTP error body.
type WrappedError struct {
	Module      string
	Operation   string
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.UserMessage, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// GetUserMessage extracts the user-facing message from err, falling
// back to err.Error() when no WrappedError is in the chain.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.UserMessage
	}
	return err.Error()
}
