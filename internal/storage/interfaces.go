// Package storage provides repository interfaces for data access abstraction.
// These interfaces enable dependency inversion and facilitate testing by
// decoupling the state machine and HTTP handlers from the concrete SQLite
// implementation.
package storage

import (
	"context"

	"github.com/hn-digest/hn-digest-go/internal/hn"
)

// TaskRepository defines the interface for Task lifecycle operations.
type TaskRepository interface {
	// GetOrCreateTask returns the Task for date, creating it in status
	// init if it does not already exist.
	GetOrCreateTask(ctx context.Context, date string) (*Task, error)

	// GetTask returns the Task for date, or nil if none exists.
	GetTask(ctx context.Context, date string) (*Task, error)

	// TransitionTask atomically moves the Task for date from `from` to
	// `to`. Returns false without error if the Task was not in `from`
	// when the update ran, signaling a lost race to another worker.
	TransitionTask(ctx context.Context, date string, from, to TaskStatus) (bool, error)

	// FailTask marks the Task for date as failed with the given message,
	// unless it has already reached a terminal status.
	FailTask(ctx context.Context, date, message string) error

	// Snapshot reports the Task for date along with an Article status
	// breakdown, for status-polling endpoints.
	Snapshot(ctx context.Context, date string) (*TaskSnapshot, error)
}

// ArticleRepository defines the interface for Article operations.
type ArticleRepository interface {
	// InsertArticles bulk-inserts one pending Article per story for
	// date. Existing articles for the date are left untouched so a
	// resumed run does not duplicate rows.
	InsertArticles(ctx context.Context, date string, stories []hn.Story) error

	// ListArticles returns the Articles for date, optionally filtered
	// by status. Pass "" to return every Article regardless of status.
	ListArticles(ctx context.Context, date string, status ArticleStatus) ([]Article, error)

	// ClaimPendingBatch atomically moves up to n pending Articles for
	// date into processing and returns them ordered by rank. Safe for
	// concurrent callers: each Article is claimed by exactly one call.
	ClaimPendingBatch(ctx context.Context, date string, n int) ([]Article, error)

	// CompleteArticle marks an Article completed and stores its
	// translated/summarized fields.
	CompleteArticle(ctx context.Context, date string, storyID int64, fields ArticleResult) error

	// FailArticle marks an Article failed with the given message and
	// increments its retry count.
	FailArticle(ctx context.Context, date string, storyID int64, message string) error

	// RetryFailed moves every failed Article for date back to pending
	// and returns how many rows were affected.
	RetryFailed(ctx context.Context, date string) (int, error)

	// GetCompletedOrdered returns every completed Article for date,
	// ordered by rank ascending, for aggregation into the digest.
	GetCompletedOrdered(ctx context.Context, date string) ([]Article, error)
}

// ArticleResult holds the fields written back to an Article once its
// pipeline (translate, summarize, classify) succeeds.
type ArticleResult struct {
	TitleChinese   string
	Content        string
	ContentChinese string
	CommentSummary *string
}

// HealthRepository defines the interface for health check operations.
type HealthRepository interface {
	// Ping verifies database connection is alive.
	Ping(ctx context.Context) error
}

// Repository is the aggregate interface that combines all repository
// interfaces. The DB type implements this interface, providing a single
// entry point for all data operations.
type Repository interface {
	TaskRepository
	ArticleRepository
	HealthRepository
	Close() error
}

// Ensure DB implements all repository interfaces at compile time.
var (
	_ TaskRepository    = (*DB)(nil)
	_ ArticleRepository = (*DB)(nil)
	_ HealthRepository  = (*DB)(nil)
	_ Repository        = (*DB)(nil)
)
