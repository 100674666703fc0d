package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
	"github.com/hn-digest/hn-digest-go/internal/hn"
	"github.com/hn-digest/hn-digest-go/internal/storage"
)

type stubTasks struct {
	task            *storage.Task
	snapshot        *storage.TaskSnapshot
	transitions     []string
	transitionOK    bool
	transitionErr   error
	failed          string
	getOrCreateErr  error
	snapshotErr     error
}

func (s *stubTasks) GetOrCreateTask(_ context.Context, date string) (*storage.Task, error) {
	if s.getOrCreateErr != nil {
		return nil, s.getOrCreateErr
	}
	if s.task == nil {
		s.task = &storage.Task{Date: date, Status: storage.TaskInit}
	}
	return s.task, nil
}

func (s *stubTasks) GetTask(_ context.Context, _ string) (*storage.Task, error) {
	return s.task, nil
}

func (s *stubTasks) TransitionTask(_ context.Context, date string, from, to storage.TaskStatus) (bool, error) {
	s.transitions = append(s.transitions, string(from)+"->"+string(to))
	if s.transitionErr != nil {
		return false, s.transitionErr
	}
	if s.task != nil && s.task.Status == from {
		s.task.Status = to
		return true, nil
	}
	return false, nil
}

func (s *stubTasks) FailTask(_ context.Context, _ string, message string) error {
	s.failed = message
	if s.task != nil {
		s.task.Status = storage.TaskFailed
	}
	return nil
}

func (s *stubTasks) Snapshot(_ context.Context, date string) (*storage.TaskSnapshot, error) {
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	return s.snapshot, nil
}

type stubArticles struct {
	inserted []hn.Story
	insertErr error
}

func (s *stubArticles) InsertArticles(_ context.Context, _ string, stories []hn.Story) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = stories
	return nil
}
func (s *stubArticles) ListArticles(context.Context, string, storage.ArticleStatus) ([]storage.Article, error) {
	return nil, nil
}
func (s *stubArticles) ClaimPendingBatch(context.Context, string, int) ([]storage.Article, error) {
	return nil, nil
}
func (s *stubArticles) CompleteArticle(context.Context, string, int64, storage.ArticleResult) error {
	return nil
}
func (s *stubArticles) FailArticle(context.Context, string, int64, string) error { return nil }
func (s *stubArticles) RetryFailed(context.Context, string) (int, error)        { return 0, nil }
func (s *stubArticles) GetCompletedOrdered(context.Context, string) ([]storage.Article, error) {
	return nil, nil
}

type stubSource struct {
	stories []hn.Story
	err     error
}

func (s *stubSource) FetchDailyCandidates(context.Context, time.Time, int, int) ([]hn.Story, error) {
	return s.stories, s.err
}

type stubBatch struct {
	ran bool
	err error
}

func (b *stubBatch) RunBatch(context.Context, string, int) error {
	b.ran = true
	return b.err
}

type stubRenderer struct {
	digest *aggregate.Digest
	err    error
}

func (r *stubRenderer) Render(context.Context, string) (*aggregate.Digest, error) {
	return r.digest, r.err
}

type stubPublisher struct {
	err error
}

func (p *stubPublisher) PublishAll(context.Context, *aggregate.Digest) error {
	return p.err
}

func TestResolveDate_CronUsesPreviousUTCDay(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	date, err := ResolveDate(TriggerCron, "", now)
	if err != nil {
		t.Fatalf("ResolveDate: %v", err)
	}
	if date != "2026-07-30" {
		t.Errorf("expected 2026-07-30, got %s", date)
	}
}

func TestResolveDate_CronRejectsOverride(t *testing.T) {
	if _, err := ResolveDate(TriggerCron, "2026-07-01", time.Now()); err == nil {
		t.Error("expected a cron trigger to reject a date override")
	}
}

func TestResolveDate_ManualOverrideMustBeValidDate(t *testing.T) {
	if _, err := ResolveDate(TriggerManual, "not-a-date", time.Now()); err == nil {
		t.Error("expected an invalid manual override to be rejected")
	}
}

func TestRunDate_InitFetchesInsertsAndTransitions(t *testing.T) {
	tasks := &stubTasks{task: &storage.Task{Date: "2026-07-30", Status: storage.TaskInit}}
	articles := &stubArticles{}
	source := &stubSource{stories: []hn.Story{{ID: 1, Title: "hi"}}}

	m := New(tasks, articles, source, &stubBatch{}, &stubRenderer{}, &stubPublisher{}, nil, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
		t.Fatalf("RunDate: %v", err)
	}
	if len(articles.inserted) != 1 {
		t.Errorf("expected 1 story inserted, got %d", len(articles.inserted))
	}
	if tasks.task.Status != storage.TaskListFetched {
		t.Errorf("expected task to advance to listFetched, got %s", tasks.task.Status)
	}
}

func TestRunDate_ListFetchedWithPendingRunsOneBatchAndAdvancesToProcessing(t *testing.T) {
	tasks := &stubTasks{
		task:     &storage.Task{Date: "2026-07-30", Status: storage.TaskListFetched},
		snapshot: &storage.TaskSnapshot{PendingCount: 3},
	}
	batch := &stubBatch{}

	m := New(tasks, &stubArticles{}, &stubSource{}, batch, &stubRenderer{}, &stubPublisher{}, nil, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
		t.Fatalf("RunDate: %v", err)
	}
	if !batch.ran {
		t.Error("expected one batch to run")
	}
	if tasks.task.Status != storage.TaskProcessing {
		t.Errorf("expected task to advance to processing, got %s", tasks.task.Status)
	}
}

func TestRunDate_ProcessingWithZeroOutstandingAdvancesToAggregatingAndRenders(t *testing.T) {
	tasks := &stubTasks{
		task:     &storage.Task{Date: "2026-07-30", Status: storage.TaskProcessing},
		snapshot: &storage.TaskSnapshot{PendingCount: 0, ProcessingCount: 0},
	}
	renderer := &stubRenderer{digest: &aggregate.Digest{Date: "2026-07-30"}}
	pub := &stubPublisher{}

	m := New(tasks, &stubArticles{}, &stubSource{}, &stubBatch{}, renderer, pub, nil, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
		t.Fatalf("RunDate: %v", err)
	}
	if tasks.task.Status != storage.TaskPublished {
		t.Errorf("expected task to fall through all the way to published, got %s", tasks.task.Status)
	}
}

func TestRunDate_AggregatingHardPublishFailureStaysInAggregating(t *testing.T) {
	tasks := &stubTasks{task: &storage.Task{Date: "2026-07-30", Status: storage.TaskAggregating}}
	renderer := &stubRenderer{digest: &aggregate.Digest{Date: "2026-07-30"}}
	pub := &stubPublisher{err: errors.New("git publish failed")}

	m := New(tasks, &stubArticles{}, &stubSource{}, &stubBatch{}, renderer, pub, nil, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
		t.Fatalf("RunDate should absorb a partial publish failure, got %v", err)
	}
	if tasks.task.Status != storage.TaskAggregating {
		t.Errorf("expected task to remain in aggregating, got %s", tasks.task.Status)
	}
	if tasks.failed != "" {
		t.Error("a partial publish failure must not mark the task failed")
	}
}

func TestRunDate_PublishedAndFailedAreNoops(t *testing.T) {
	for _, status := range []storage.TaskStatus{storage.TaskPublished, storage.TaskFailed} {
		tasks := &stubTasks{task: &storage.Task{Date: "2026-07-30", Status: status}}
		m := New(tasks, &stubArticles{}, &stubSource{}, &stubBatch{}, &stubRenderer{}, &stubPublisher{}, nil, 24, 30, 6)
		if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
			t.Fatalf("RunDate on %s should be a no-op, got %v", status, err)
		}
		if tasks.task.Status != status {
			t.Errorf("expected %s to remain unchanged, got %s", status, tasks.task.Status)
		}
	}
}

type stubClassifier struct {
	keep []int
}

func (c *stubClassifier) FilterIndices(context.Context, []string) []int {
	return c.keep
}

func TestRunDate_InitFiltersStoriesThroughClassifier(t *testing.T) {
	tasks := &stubTasks{task: &storage.Task{Date: "2026-07-30", Status: storage.TaskInit}}
	articles := &stubArticles{}
	source := &stubSource{stories: []hn.Story{{ID: 1, Title: "ok"}, {ID: 2, Title: "spam"}, {ID: 3, Title: "also ok"}}}
	classifier := &stubClassifier{keep: []int{0, 2}}

	m := New(tasks, articles, source, &stubBatch{}, &stubRenderer{}, &stubPublisher{}, classifier, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err != nil {
		t.Fatalf("RunDate: %v", err)
	}
	if len(articles.inserted) != 2 {
		t.Fatalf("expected 2 stories to survive classification, got %d", len(articles.inserted))
	}
	if articles.inserted[0].ID != 1 || articles.inserted[1].ID != 3 {
		t.Errorf("expected stories 1 and 3 to survive in order, got %+v", articles.inserted)
	}
}

func TestRunDate_UncaughtErrorFailsTheTask(t *testing.T) {
	tasks := &stubTasks{task: &storage.Task{Date: "2026-07-30", Status: storage.TaskInit}}
	source := &stubSource{err: errors.New("upstream unreachable")}

	m := New(tasks, &stubArticles{}, source, &stubBatch{}, &stubRenderer{}, &stubPublisher{}, nil, 24, 30, 6)
	if err := m.RunDate(context.Background(), "2026-07-30"); err == nil {
		t.Fatal("expected the fetch error to propagate")
	}
	if tasks.failed == "" {
		t.Error("expected the task to be recorded as failed")
	}
}
