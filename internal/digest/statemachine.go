// Package digest implements the per-trigger State Machine: it
// resolves the target date, loads or creates that day's Task, and
// advances it one step through init, listFetched, processing,
// aggregating, published and failed (a processing phase with nothing
// left outstanding falls through to aggregating in the same call).
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
	"github.com/hn-digest/hn-digest-go/internal/hn"
	"github.com/hn-digest/hn-digest-go/internal/storage"
)

const dateLayout = "2006-01-02"

// Trigger distinguishes the scheduled cron trigger from a manually
// invoked one, since only a manual trigger may override the resolved
// date.
type Trigger int

const (
	TriggerCron Trigger = iota
	TriggerManual
)

// SourceAdapter resolves the day's candidate stories.
type SourceAdapter interface {
	FetchDailyCandidates(ctx context.Context, date time.Time, windowHours, storyLimit int) ([]hn.Story, error)
}

// ContentClassifier filters a set of titles down to the indices that pass
// the configured rubric. A nil ContentClassifier disables filtering
// entirely, matching the fail-open classifier's own nil-receiver safety.
type ContentClassifier interface {
	FilterIndices(ctx context.Context, titles []string) []int
}

// BatchRunner drives one bounded batch of pending Articles.
type BatchRunner interface {
	RunBatch(ctx context.Context, date string, n int) error
}

// BatchMetrics records one whole-batch run's duration and outcome. A nil
// BatchMetrics (the default) disables this instrumentation.
type BatchMetrics interface {
	RecordBatch(outcome string, durationSeconds float64, claimedSize int)
}

// Renderer builds the day's Digest from its completed Articles.
type Renderer interface {
	Render(ctx context.Context, date string) (*aggregate.Digest, error)
}

// Publisher fans a rendered Digest out to every configured sink.
type Publisher interface {
	PublishAll(ctx context.Context, digest *aggregate.Digest) error
}

// StateMachine is the State Machine: one Run call advances a
// single Task by one phase, except that a drained processing phase
// falls through to aggregating.
type StateMachine struct {
	tasks      storage.TaskRepository
	articles   storage.ArticleRepository
	source     SourceAdapter
	batch      BatchRunner
	renderer   Renderer
	pub        Publisher
	classifier ContentClassifier
	metrics    BatchMetrics

	windowHours int
	storyLimit  int
	batchSize   int
}

// New creates a StateMachine. windowHours and storyLimit configure the
// Source Adapter call made from the init phase; batchSize bounds how
// many Articles one Run call claims from the Batch Executor. classifier
// may be nil, disabling content filtering on the init phase.
func New(tasks storage.TaskRepository, articles storage.ArticleRepository, source SourceAdapter, batch BatchRunner, renderer Renderer, pub Publisher, classifier ContentClassifier, windowHours, storyLimit, batchSize int) *StateMachine {
	return &StateMachine{
		tasks:       tasks,
		articles:    articles,
		source:      source,
		batch:       batch,
		renderer:    renderer,
		pub:         pub,
		classifier:  classifier,
		windowHours: windowHours,
		storyLimit:  storyLimit,
		batchSize:   batchSize,
	}
}

// SetMetrics attaches batch-run instrumentation. Optional; a StateMachine
// built without calling SetMetrics runs with instrumentation disabled.
func (m *StateMachine) SetMetrics(metrics BatchMetrics) {
	m.metrics = metrics
}

// ResolveDate applies the "previous UTC calendar day" rule. A manual
// trigger may override it with an explicit YYYY-MM-DD date; a cron
// trigger may not, since the schedule itself determines the date.
func ResolveDate(trigger Trigger, override string, now time.Time) (string, error) {
	if override != "" {
		if trigger != TriggerManual {
			return "", fmt.Errorf("digest: date override is only valid for a manual trigger")
		}
		if _, err := time.Parse(dateLayout, override); err != nil {
			return "", fmt.Errorf("digest: invalid date override %q: %w", override, err)
		}
		return override, nil
	}
	return now.UTC().AddDate(0, 0, -1).Format(dateLayout), nil
}

// Run resolves the target date, loads or creates its Task, and
// advances it by one phase per the Task's current status. Any error
// returned by a phase is also recorded on the Task as a failure,
// per the uncaught-exception rule.
func (m *StateMachine) Run(ctx context.Context, trigger Trigger, dateOverride string) error {
	date, err := ResolveDate(trigger, dateOverride, time.Now())
	if err != nil {
		return fmt.Errorf("digest: resolving date: %w", err)
	}
	return m.RunDate(ctx, date)
}

// RunDate advances the Task for an already-resolved date by one
// phase. Exported separately from Run so callers like a status-poll-
// triggered retry or a supplemental CLI can target a specific date
// directly, bypassing date resolution.
func (m *StateMachine) RunDate(ctx context.Context, date string) (err error) {
	logger := slog.With("date", date)

	defer func() {
		if err != nil {
			if failErr := m.tasks.FailTask(ctx, date, domerrors.GetUserMessage(err)); failErr != nil {
				logger.ErrorContext(ctx, "failed to record task failure", "error", failErr)
			}
		}
	}()

	task, err := m.tasks.GetOrCreateTask(ctx, date)
	if err != nil {
		return domerrors.NewWrapper("digest", "get_or_create_task").Wrap(err, "could not load or create today's task")
	}

	switch task.Status {
	case storage.TaskInit:
		return domerrors.NewWrapper("digest", "init").Wrap(m.runInit(ctx, date), "could not fetch and queue today's candidate stories")
	case storage.TaskListFetched, storage.TaskProcessing:
		return domerrors.NewWrapper("digest", "processing").Wrap(m.runProcessing(ctx, date, task.Status), "could not process today's queued articles")
	case storage.TaskAggregating:
		return domerrors.NewWrapper("digest", "aggregating").Wrap(m.runAggregating(ctx, date), "could not render and publish today's digest")
	case storage.TaskPublished, storage.TaskFailed:
		return nil
	default:
		return fmt.Errorf("digest: task %s has unknown status %q", date, task.Status)
	}
}

// runInit resolves the candidate list, inserts one pending Article per
// story, and advances init -> listFetched.
func (m *StateMachine) runInit(ctx context.Context, date string) error {
	target, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("digest: parsing date %q: %w", date, err)
	}

	stories, err := m.source.FetchDailyCandidates(ctx, target, m.windowHours, m.storyLimit)
	if err != nil {
		return fmt.Errorf("digest: fetching candidates: %w", err)
	}

	stories = m.filterStories(ctx, stories)

	if err := m.articles.InsertArticles(ctx, date, stories); err != nil {
		return fmt.Errorf("digest: inserting articles: %w", err)
	}

	if _, err := m.tasks.TransitionTask(ctx, date, storage.TaskInit, storage.TaskListFetched); err != nil {
		return fmt.Errorf("digest: transitioning to listFetched: %w", err)
	}
	return nil
}

// filterStories applies the Content Classifier ahead of every other
// stage, as required by the data-flow order. A nil classifier is a no-op;
// fail-open behavior for call failures lives inside the classifier itself.
func (m *StateMachine) filterStories(ctx context.Context, stories []hn.Story) []hn.Story {
	if m.classifier == nil || len(stories) == 0 {
		return stories
	}

	titles := make([]string, len(stories))
	for i, s := range stories {
		titles[i] = s.Title
	}

	kept := m.classifier.FilterIndices(ctx, titles)
	filtered := make([]hn.Story, 0, len(kept))
	for _, i := range kept {
		filtered = append(filtered, stories[i])
	}
	return filtered
}

// runProcessing checks whether every Article has left pending/
// processing. If so it advances to aggregating and falls through; if
// not it runs one bounded batch and returns, leaving further progress
// to a later trigger.
func (m *StateMachine) runProcessing(ctx context.Context, date string, current storage.TaskStatus) error {
	snapshot, err := m.tasks.Snapshot(ctx, date)
	if err != nil {
		return fmt.Errorf("digest: snapshot: %w", err)
	}

	if snapshot.PendingCount+snapshot.ProcessingCount == 0 {
		if _, err := m.tasks.TransitionTask(ctx, date, current, storage.TaskAggregating); err != nil {
			return fmt.Errorf("digest: transitioning to aggregating: %w", err)
		}
		return m.runAggregating(ctx, date)
	}

	if current == storage.TaskListFetched {
		if _, err := m.tasks.TransitionTask(ctx, date, storage.TaskListFetched, storage.TaskProcessing); err != nil {
			return fmt.Errorf("digest: transitioning to processing: %w", err)
		}
	}

	start := time.Now()
	batchErr := m.batch.RunBatch(ctx, date, m.batchSize)
	if m.metrics != nil {
		// BatchRunner has no way to distinguish a deadline cutoff from
		// any other failure, so any error is attributed to
		// deadline_exceeded, the only failure mode RunBatch's own
		// contract documents.
		outcome := "completed"
		if batchErr != nil {
			outcome = "deadline_exceeded"
		}
		m.metrics.RecordBatch(outcome, time.Since(start).Seconds(), m.batchSize)
	}
	if batchErr != nil {
		return fmt.Errorf("digest: running batch: %w", batchErr)
	}
	return nil
}

// runAggregating renders the digest and fans it out. A hard publisher
// failure leaves the Task in aggregating for the next trigger to
// retry; only a clean PublishAll advances to published.
func (m *StateMachine) runAggregating(ctx context.Context, date string) error {
	digest, err := m.renderer.Render(ctx, date)
	if err != nil {
		return fmt.Errorf("digest: rendering digest: %w", err)
	}

	if err := m.pub.PublishAll(ctx, digest); err != nil {
		slog.ErrorContext(ctx, "publish fan-out failed, task stays in aggregating", "date", date, "error", err)
		return nil
	}

	if _, err := m.tasks.TransitionTask(ctx, date, storage.TaskAggregating, storage.TaskPublished); err != nil {
		return fmt.Errorf("digest: transitioning to published: %w", err)
	}
	return nil
}
