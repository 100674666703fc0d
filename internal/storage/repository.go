package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
	"github.com/hn-digest/hn-digest-go/internal/hn"
)

// GetOrCreateTask returns the Task for date, creating it in status init
// if this is the first time the date has been seen.
func (db *DB) GetOrCreateTask(ctx context.Context, date string) (*Task, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO daily_tasks (date, status, total_articles, created_at, updated_at)
		VALUES (?, 'init', 0, ?, ?)
		ON CONFLICT(date) DO NOTHING
	`
	if _, err := db.writer.ExecContext(ctx, query, date, now, now); err != nil {
		slog.ErrorContext(ctx, "failed to create task", "date", date, "error", err)
		return nil, fmt.Errorf("create task: %w", err)
	}

	task, err := db.GetTask(ctx, date)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s missing immediately after insert", date)
	}
	return task, nil
}

// GetTask returns the Task for date, or nil if none exists.
func (db *DB) GetTask(ctx context.Context, date string) (*Task, error) {
	query := `
		SELECT date, status, total_articles, published_at, error_message, created_at, updated_at
		FROM daily_tasks WHERE date = ?
	`

	var task Task
	var publishedAt sql.NullInt64
	var errMsg sql.NullString

	err := db.reader.QueryRowContext(ctx, query, date).Scan(
		&task.Date, &task.Status, &task.TotalArticles, &publishedAt, &errMsg,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query task", "date", date, "error", err)
		return nil, fmt.Errorf("query task: %w", err)
	}

	if publishedAt.Valid {
		task.PublishedAt = &publishedAt.Int64
	}
	task.ErrorMessage = errMsg.String

	return &task, nil
}

// TransitionTask atomically moves the Task for date from `from` to `to`.
// Returns false without error when the current row was not in `from`,
// which signals that another caller already advanced it.
func (db *DB) TransitionTask(ctx context.Context, date string, from, to TaskStatus) (bool, error) {
	now := time.Now().Unix()

	var res sql.Result
	var err error
	if to == TaskPublished {
		res, err = db.writer.ExecContext(ctx, `
			UPDATE daily_tasks SET status = ?, published_at = ?, updated_at = ?
			WHERE date = ? AND status = ?`, to, now, now, date, from)
	} else {
		res, err = db.writer.ExecContext(ctx, `
			UPDATE daily_tasks SET status = ?, updated_at = ?
			WHERE date = ? AND status = ?`, to, now, date, from)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to transition task",
			"date", date, "from", from, "to", to, "error", err)
		return false, fmt.Errorf("transition task: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition task rows affected: %w", err)
	}
	if rows == 0 {
		slog.WarnContext(ctx, "task transition lost race",
			"date", date, "from", from, "to", to)
	}
	return rows > 0, nil
}

// FailTask marks the Task for date as failed with message, unless it has
// already reached a terminal status (published or failed).
func (db *DB) FailTask(ctx context.Context, date, message string) error {
	now := time.Now().Unix()
	_, err := db.writer.ExecContext(ctx, `
		UPDATE daily_tasks SET status = 'failed', error_message = ?, updated_at = ?
		WHERE date = ? AND status NOT IN ('published', 'failed')`, message, now, date)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fail task", "date", date, "error", err)
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

// Snapshot reports the Task for date along with an Article status
// breakdown.
func (db *DB) Snapshot(ctx context.Context, date string) (*TaskSnapshot, error) {
	task, err := db.GetTask(ctx, date)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", domerrors.ErrNotFound, date)
	}

	rows, err := db.reader.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM articles WHERE task_date = ? GROUP BY status`, date)
	if err != nil {
		return nil, fmt.Errorf("query article counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := &TaskSnapshot{Task: *task}
	for rows.Next() {
		var status ArticleStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan article count: %w", err)
		}
		switch status {
		case ArticlePending:
			snapshot.PendingCount = count
		case ArticleProcessing:
			snapshot.ProcessingCount = count
		case ArticleCompleted:
			snapshot.CompletedCount = count
		case ArticleFailed:
			snapshot.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article counts: %w", err)
	}

	return snapshot, nil
}

// CountTasksByStatus reports how many daily_tasks rows currently sit in
// each TaskStatus, for the task-state gauge exposed over /metrics.
func (db *DB) CountTasksByStatus(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := db.reader.QueryContext(ctx, `SELECT status, COUNT(*) FROM daily_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query task counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[TaskStatus]int)
	for rows.Next() {
		var status TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task counts: %w", err)
	}
	return counts, nil
}

// InsertArticles bulk-inserts one pending Article per story for date.
// Existing rows are left untouched so a resumed run does not duplicate
// or regress already-claimed articles.
func (db *DB) InsertArticles(ctx context.Context, date string, stories []hn.Story) error {
	if len(stories) == 0 {
		return nil
	}

	start := time.Now()
	now := time.Now().Unix()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (task_date, story_id, rank, status, title, url, score, created_at_unix, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?, ?, ?, ?)
		ON CONFLICT(task_date, story_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, story := range stories {
		if _, err := stmt.ExecContext(ctx, date, story.ID, story.Rank, story.Title, story.URL, story.Score, story.CreatedAt.Unix(), now); err != nil {
			return fmt.Errorf("insert article %d: %w", story.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE daily_tasks SET total_articles = (SELECT COUNT(*) FROM articles WHERE task_date = ?), updated_at = ?
		WHERE date = ?`, date, now, date); err != nil {
		return fmt.Errorf("update total articles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "failed to insert articles", "date", date, "error", err)
		return fmt.Errorf("commit insert transaction: %w", err)
	}
	committed = true

	if duration := time.Since(start); duration > 500*time.Millisecond {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "InsertArticles", "count", len(stories), "duration_ms", duration.Milliseconds())
	}
	return nil
}

// ListArticles returns the Articles for date, optionally filtered by
// status. Pass "" to return every Article regardless of status.
func (db *DB) ListArticles(ctx context.Context, date string, status ArticleStatus) ([]Article, error) {
	query := `
		SELECT task_date, story_id, rank, status, title, title_chinese, url, score,
		       created_at_unix, content, content_chinese, comment_summary, retry_count,
		       error_message, updated_at
		FROM articles WHERE task_date = ?
	`
	args := []any{date}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY rank ASC"

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanArticles(rows)
}

// ClaimPendingBatch atomically moves up to n pending Articles for date
// into processing and returns them ordered by rank. The writer
// connection is single-connection (see db.go), so concurrent calls
// serialize on the transaction and never claim the same Article twice.
func (db *DB) ClaimPendingBatch(ctx context.Context, date string, n int) ([]Article, error) {
	if n <= 0 {
		return nil, nil
	}

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT story_id, rank, title, url, score, created_at_unix, retry_count
		FROM articles
		WHERE task_date = ? AND status = 'pending'
		ORDER BY rank ASC
		LIMIT ?`, date, n)
	if err != nil {
		return nil, fmt.Errorf("select pending articles: %w", err)
	}

	var claimed []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.StoryID, &a.Rank, &a.Title, &a.URL, &a.Score, &a.CreatedAtUnix, &a.RetryCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan pending article: %w", err)
		}
		a.TaskDate = date
		a.Status = ArticleProcessing
		claimed = append(claimed, a)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate pending articles: %w", err)
	}
	_ = rows.Close()

	now := time.Now().Unix()
	for _, a := range claimed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE articles SET status = 'processing', updated_at = ?
			WHERE task_date = ? AND story_id = ? AND status = 'pending'`, now, date, a.StoryID); err != nil {
			return nil, fmt.Errorf("claim article %d: %w", a.StoryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim transaction: %w", err)
	}
	committed = true

	return claimed, nil
}

// CompleteArticle marks an Article completed and stores its
// translated/summarized fields.
func (db *DB) CompleteArticle(ctx context.Context, date string, storyID int64, fields ArticleResult) error {
	now := time.Now().Unix()
	var commentSummary sql.NullString
	if fields.CommentSummary != nil {
		commentSummary = sql.NullString{String: *fields.CommentSummary, Valid: true}
	}

	_, err := db.writer.ExecContext(ctx, `
		UPDATE articles SET status = 'completed', title_chinese = ?, content = ?,
			content_chinese = ?, comment_summary = ?, updated_at = ?
		WHERE task_date = ? AND story_id = ?`,
		fields.TitleChinese, fields.Content, fields.ContentChinese, commentSummary, now, date, storyID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to complete article",
			"date", date, "story_id", storyID, "error", err)
		return fmt.Errorf("complete article: %w", err)
	}
	return nil
}

// FailArticle marks an Article failed with message and increments its
// retry count.
func (db *DB) FailArticle(ctx context.Context, date string, storyID int64, message string) error {
	now := time.Now().Unix()
	_, err := db.writer.ExecContext(ctx, `
		UPDATE articles SET status = 'failed', error_message = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE task_date = ? AND story_id = ?`, message, now, date, storyID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fail article",
			"date", date, "story_id", storyID, "error", err)
		return fmt.Errorf("fail article: %w", err)
	}
	return nil
}

// RetryFailed moves every failed Article for date back to pending,
// incrementing each row's retry count, and returns how many rows were
// affected.
func (db *DB) RetryFailed(ctx context.Context, date string) (int, error) {
	now := time.Now().Unix()
	res, err := db.writer.ExecContext(ctx, `
		UPDATE articles SET status = 'pending', retry_count = retry_count + 1, updated_at = ?
		WHERE task_date = ? AND status = 'failed'`, now, date)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retry failed articles", "date", date, "error", err)
		return 0, fmt.Errorf("retry failed articles: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retry failed articles rows affected: %w", err)
	}
	return int(rows), nil
}

// GetCompletedOrdered returns every completed Article for date, ordered
// by rank ascending, for aggregation into the digest.
func (db *DB) GetCompletedOrdered(ctx context.Context, date string) ([]Article, error) {
	return db.ListArticles(ctx, date, ArticleCompleted)
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var a Article
		var commentSummary sql.NullString
		var errMsg sql.NullString

		if err := rows.Scan(
			&a.TaskDate, &a.StoryID, &a.Rank, &a.Status, &a.Title, &a.TitleChinese, &a.URL, &a.Score,
			&a.CreatedAtUnix, &a.Content, &a.ContentChinese, &commentSummary, &a.RetryCount,
			&errMsg, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if commentSummary.Valid {
			a.CommentSummary = &commentSummary.String
		}
		a.ErrorMessage = errMsg.String
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}
