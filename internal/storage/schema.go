package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
// Note: WAL mode is configured in db.go's configureConnection function.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createDailyTasksTable(ctx, db); err != nil {
		return err
	}

	return createArticlesTable(ctx, db)
}

func createDailyTasksTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS daily_tasks (
		date TEXT PRIMARY KEY,
		status TEXT NOT NULL CHECK(status IN ('init','listFetched','processing','aggregating','published','failed')),
		total_articles INTEGER NOT NULL DEFAULT 0,
		published_at INTEGER,
		error_message TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_daily_tasks_status ON daily_tasks(status);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create daily_tasks table: %w", err)
	}
	return nil
}

func createArticlesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS articles (
		task_date TEXT NOT NULL REFERENCES daily_tasks(date),
		story_id INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('pending','processing','completed','failed')),
		title TEXT NOT NULL,
		title_chinese TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		created_at_unix INTEGER NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		content_chinese TEXT NOT NULL DEFAULT '',
		comment_summary TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (task_date, story_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_date_rank ON articles(task_date, rank);
	CREATE INDEX IF NOT EXISTS idx_articles_date_status ON articles(task_date, status);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}
	return nil
}
