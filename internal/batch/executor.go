// Package batch implements the Batch Executor: it claims a bounded
// slice of pending Articles for a Task and drives each one through the
// extract/translate/summarize pipeline concurrently.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hn-digest/hn-digest-go/internal/extract"
	"github.com/hn-digest/hn-digest-go/internal/storage"
	"github.com/hn-digest/hn-digest-go/internal/translate"
)

// commentFetchLimit caps the number of top-level comments summarized per
// story.
const commentFetchLimit = 10

// placeholderContent stands in for an article's source text when
// extraction produced neither full content nor a meta description, so
// the summarizer still has something to work with.
const placeholderContent = "（原文无法获取全文，仅能根据标题摘要）"

// CommentSource resolves a story's comment ids and bodies. Comments are
// never persisted across triggers, so every batch run re-fetches them
// fresh from the upstream API.
type CommentSource interface {
	FetchStoryKids(ctx context.Context, storyID int64) ([]int, error)
	FetchComments(ctx context.Context, kidIDs []int, limit int) ([]string, error)
}

// Metrics records one Article's terminal outcome within a batch run. A
// nil Metrics (the default) disables this instrumentation.
type Metrics interface {
	RecordBatchArticle(outcome string)
}

// Executor runs the per-story pipeline over a claimed batch of Articles.
type Executor struct {
	store       storage.ArticleRepository
	extractor   *extract.Extractor
	translator  *translate.Translator
	comments    CommentSource
	summaryLen  int
	concurrency int
	deadline    time.Duration
	metrics     Metrics
}

// New creates an Executor. concurrency is clamped to at least 1 and
// deadline to at least one second, so a misconfigured caller cannot wedge
// every batch.
func New(store storage.ArticleRepository, extractor *extract.Extractor, translator *translate.Translator, comments CommentSource, summaryMaxLength, concurrency int, deadline time.Duration) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	if deadline < time.Second {
		deadline = time.Second
	}
	return &Executor{
		store:       store,
		extractor:   extractor,
		translator:  translator,
		comments:    comments,
		summaryLen:  summaryMaxLength,
		concurrency: concurrency,
		deadline:    deadline,
	}
}

// SetMetrics attaches per-article instrumentation. Optional; an
// Executor built without calling SetMetrics runs uninstrumented.
func (e *Executor) SetMetrics(metrics Metrics) *Executor {
	e.metrics = metrics
	return e
}

// RunBatch claims up to n pending Articles for date and runs each one's
// pipeline concurrently, bounded by the Executor's concurrency limit. It
// returns once every claimed Article has reached a terminal status for
// this run or the batch deadline elapses, whichever comes first. Articles
// still in flight when the deadline elapses are left in processing; this
// implementation does not revert them to pending. A later run's
// ClaimPendingBatch picks up only rows still pending, and RetryFailed
// resets only failed rows, so nothing here moves a processing row back.
func (e *Executor) RunBatch(ctx context.Context, date string, n int) error {
	claimed, err := e.store.ClaimPendingBatch(ctx, date, n)
	if err != nil {
		return fmt.Errorf("batch: claim pending articles: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, article := range claimed {
		g.Go(func() error {
			e.processOne(gctx, date, article)
			return nil
		})
	}

	return g.Wait()
}

// processOne drives a single Article through extraction, translation,
// summarization and comment summarization, then writes the outcome back
// to the store. It never returns an error: every failure is resolved
// into either a completeArticle or a failArticle call.
func (e *Executor) processOne(ctx context.Context, date string, article storage.Article) {
	logger := slog.With("date", date, "story_id", article.StoryID, "rank", article.Rank)

	canonicalURL := article.URL
	if canonicalURL == "" {
		canonicalURL = fmt.Sprintf("hn-item://%d", article.StoryID)
	}
	extracted := e.extractor.Extract(ctx, canonicalURL)

	titleChinese, err := e.translator.TranslateTitle(ctx, article.Title)
	if err != nil {
		logger.WarnContext(ctx, "title translation failed, falling back to original title", "error", err)
		titleChinese = article.Title
	}

	source := extracted.FullContent
	if source == "" {
		source = extracted.Description
	}
	if source == "" {
		source = placeholderContent
	}

	summary, err := e.translator.SummarizeArticle(ctx, article.Title, source, e.summaryLen)
	if err != nil {
		logger.ErrorContext(ctx, "article summary failed after retries", "error", err)
		if failErr := e.store.FailArticle(ctx, date, article.StoryID, fmt.Sprintf("summarize article: %v", err)); failErr != nil {
			logger.ErrorContext(ctx, "failed to record article failure", "error", failErr)
		}
		if e.metrics != nil {
			e.metrics.RecordBatchArticle("failed")
		}
		return
	}

	commentSummary := e.summarizeComments(ctx, logger, article.StoryID)

	if err := e.store.CompleteArticle(ctx, date, article.StoryID, storage.ArticleResult{
		TitleChinese:   titleChinese,
		Content:        extracted.FullContent,
		ContentChinese: summary,
		CommentSummary: commentSummary,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to record article completion", "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.RecordBatchArticle("completed")
	}
}

// summarizeComments fetches and summarizes a story's top comments. Any
// failure along the way (fetching kids, fetching bodies, or the
// summarization call itself) yields a nil summary rather than failing
// the article: a missing comment summary is never a hard failure.
func (e *Executor) summarizeComments(ctx context.Context, logger *slog.Logger, storyID int64) *string {
	kids, err := e.comments.FetchStoryKids(ctx, storyID)
	if err != nil || len(kids) == 0 {
		if err != nil {
			logger.WarnContext(ctx, "fetching comment ids failed, skipping comment summary", "error", err)
		}
		return nil
	}

	bodies, err := e.comments.FetchComments(ctx, kids, commentFetchLimit)
	if err != nil {
		logger.WarnContext(ctx, "fetching comment bodies failed, skipping comment summary", "error", err)
		return nil
	}

	summary, err := e.translator.SummarizeComments(ctx, bodies)
	if err != nil {
		logger.WarnContext(ctx, "comment summary failed, continuing without it", "error", err)
		return nil
	}
	return summary
}
