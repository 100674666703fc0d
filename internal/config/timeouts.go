// Package config provides centralized timeout and interval constants.
// Values are tuned for HackerNews API response times, LLM provider latency,
// and SQLite performance characteristics.
package config

import "time"

// Fetcher timeouts
const (
	// FetchRequest is the default per-call deadline for the Budgeted Fetcher.
	FetchRequest = 15 * time.Second

	// FetchRetryInitial is the initial delay for exponential backoff
	// (2s -> 4s -> 8s, jitter-free doubling per the fetcher's retry policy).
	FetchRetryInitial = 2 * time.Second

	// FetchMaxRetries bounds retry attempts for a single fetch call.
	FetchMaxRetries = 3
)

// LLM timeouts
const (
	// LLMRequest is the per-call deadline for a chat-completion request.
	LLMRequest = 30 * time.Second

	// LLMRetryInitial is the initial backoff delay used when a provider's
	// own minimum retry delay is not larger.
	LLMRetryInitial = 1500 * time.Millisecond

	// LLMMaxRetries bounds retry attempts for a single chat-completion call.
	LLMMaxRetries = 3
)

// Classifier timeout
const (
	// ClassifierDeadline is the strict per-call deadline for the content
	// classifier; exceeding it is treated as a soft, fail-open failure.
	ClassifierDeadline = 15 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite's busy_timeout pragma value for
	// concurrent write contention between the writer connection and
	// any in-flight reads.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Batch Executor timeout
const (
	// BatchDeadline bounds the wall-clock time of a single runBatch
	// invocation. It is set comfortably below the host platform's own
	// invocation budget so that completed-item writes flush before the
	// host terminates the process.
	BatchDeadline = 4 * time.Minute
)

// Publisher timeouts
const (
	// PublisherRequest is the timeout for a single Git/Chat sink API call.
	PublisherRequest = 20 * time.Second

	// ChatInterMessageDelay is the pause the Chat sink takes between
	// bursts of TELEGRAM_BATCH_SIZE messages, to stay under the platform's
	// per-chat rate limit. Messages within one burst are sent back to back.
	ChatInterMessageDelay = 400 * time.Millisecond
)

// HTTP server timeouts
const (
	// HTTPRead is the HTTP server read timeout.
	HTTPRead = 10 * time.Second

	// HTTPWrite must exceed the synchronous trigger's worst-case duration
	// (a full batch run) so `/trigger-export-sync` can complete.
	HTTPWrite = 5 * time.Minute

	// HTTPIdle is the HTTP server idle timeout for keep-alive connections.
	HTTPIdle = 120 * time.Second

	// GracefulShutdown is the time allotted to drain in-flight requests
	// and background goroutines on shutdown.
	GracefulShutdown = 10 * time.Second
)

// Background trigger interval
const (
	// TriggerInterval is the default period of the background scheduler
	// loop that invokes the state machine, matching the "every ≈10
	// minutes" cadence named in the concurrency model.
	TriggerInterval = 10 * time.Minute
)
