package storage

// TaskStatus is the lifecycle state of a daily digest Task.
type TaskStatus string

const (
	TaskInit        TaskStatus = "init"
	TaskListFetched TaskStatus = "listFetched"
	TaskProcessing  TaskStatus = "processing"
	TaskAggregating TaskStatus = "aggregating"
	TaskPublished   TaskStatus = "published"
	TaskFailed      TaskStatus = "failed"
)

// ArticleStatus is the per-story processing state within a Task.
type ArticleStatus string

const (
	ArticlePending    ArticleStatus = "pending"
	ArticleProcessing ArticleStatus = "processing"
	ArticleCompleted  ArticleStatus = "completed"
	ArticleFailed     ArticleStatus = "failed"
)

// Task represents one calendar day's digest run. Date is the primary key
// (YYYY-MM-DD); a day advances through Status exactly once from init to
// either published or failed.
type Task struct {
	Date          string     `json:"date"`
	Status        TaskStatus `json:"status"`
	TotalArticles int        `json:"total_articles"`
	PublishedAt   *int64     `json:"published_at,omitzero"`
	ErrorMessage  string     `json:"error_message,omitzero"`
	CreatedAt     int64      `json:"created_at"`
	UpdatedAt     int64      `json:"updated_at"`
}

// Article is one Hacker News story tracked under a Task. Rank is its
// position (1-based) in that day's front-page window; it is unique per
// date and determines ordering in the published digest.
type Article struct {
	TaskDate       string        `json:"task_date"`
	StoryID        int64         `json:"story_id"`
	Rank           int           `json:"rank"`
	Status         ArticleStatus `json:"status"`
	Title          string        `json:"title"`
	TitleChinese   string        `json:"title_chinese,omitzero"`
	URL            string        `json:"url"`
	Score          int           `json:"score"`
	CreatedAtUnix  int64         `json:"created_at_unix"`
	Content        string        `json:"content,omitzero"`
	ContentChinese string        `json:"content_chinese,omitzero"`
	CommentSummary *string       `json:"comment_summary,omitzero"`
	RetryCount     int           `json:"retry_count"`
	ErrorMessage   string        `json:"error_message,omitzero"`
	UpdatedAt      int64         `json:"updated_at"`
}

// TaskSnapshot reports a Task's progress for the /task-status endpoint:
// the Task row plus a breakdown of its Articles by status.
type TaskSnapshot struct {
	Task             Task `json:"task"`
	PendingCount     int  `json:"pending_count"`
	ProcessingCount  int  `json:"processing_count"`
	CompletedCount   int  `json:"completed_count"`
	FailedCount      int  `json:"failed_count"`
}
