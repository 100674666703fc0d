// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "ctxutil.requestID"
	taskDateKey  contextKey = "ctxutil.taskDate"
)

// WithRequestID adds a request ID to the context for tracing.
// Request ID is generated per HTTP request (or per background trigger
// invocation) for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// MustGetRequestID retrieves the request ID from the context.
// Panics if the request ID is not found.
func MustGetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		panic("ctxutil: requestID not found")
	}
	return requestID
}

// WithTaskDate adds the digest job's target date (YYYY-MM-DD) to the
// context so every log line emitted while processing a trigger
// correlates back to the Task it advanced.
func WithTaskDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, taskDateKey, date)
}

// GetTaskDate retrieves the task date from the context.
// Returns the date if found, empty string otherwise.
func GetTaskDate(ctx context.Context) string {
	if v := ctx.Value(taskDateKey); v != nil {
		if date, ok := v.(string); ok && date != "" {
			return date
		}
	}
	return ""
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// This function creates a fresh context.Background() and copies only tracing values,
// avoiding memory leaks from retaining parent context references (Go issue #64478).
//
// Use for background work that must outlive the HTTP request that triggered it,
// such as an asynchronous /trigger-export invocation that continues after the
// 202 response is sent.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if taskDate := GetTaskDate(ctx); taskDate != "" {
		newCtx = WithTaskDate(newCtx, taskDate)
	}

	return newCtx
}
