package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hn-digest/hn-digest-go/internal/config"
	"github.com/hn-digest/hn-digest-go/internal/extract"
	"github.com/hn-digest/hn-digest-go/internal/fetch"
	"github.com/hn-digest/hn-digest-go/internal/hn"
	"github.com/hn-digest/hn-digest-go/internal/llm"
	"github.com/hn-digest/hn-digest-go/internal/storage"
	"github.com/hn-digest/hn-digest-go/internal/translate"
)

type stubComments struct {
	kids      map[int64][]int
	bodies    []string
	kidsErr   error
	bodiesErr error
}

func (s *stubComments) FetchStoryKids(_ context.Context, storyID int64) ([]int, error) {
	if s.kidsErr != nil {
		return nil, s.kidsErr
	}
	return s.kids[storyID], nil
}

func (s *stubComments) FetchComments(_ context.Context, _ []int, _ int) ([]string, error) {
	if s.bodiesErr != nil {
		return nil, s.bodiesErr
	}
	return s.bodies, nil
}

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(context.Background(), filepath.Join(dir, "digest.db"))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func chatPayload(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id": "chatcmpl-test", "object": "chat.completion", "created": 0, "model": "test-model",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	return body
}

// llmTranslator wires a Translator to a fake OpenAI-compatible server whose
// reply is derived from the request's user content, so title and summary
// calls (distinguished by the shape of the prompt each builds) can be told
// apart without depending on unexported prompt text.
func llmTranslator(t *testing.T, respond func(userContent string) string) *translate.Translator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var user string
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatPayload(respond(user)))
	}))
	t.Cleanup(srv.Close)

	oc := openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test-key"))
	client := llm.NewWithClients(map[llm.Provider]openai.Client{config.ProviderDeepSeek: oc}, 1)
	return translate.New(client, config.ProviderDeepSeek, "deepseek-chat")
}

func errorTranslator(t *testing.T) *translate.Translator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	oc := openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test-key"))
	client := llm.NewWithClients(map[llm.Provider]openai.Client{config.ProviderDeepSeek: oc}, 1)
	return translate.New(client, config.ProviderDeepSeek, "deepseek-chat")
}

func newExtractor(t *testing.T, html string) *extract.Extractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return extract.New(fetch.New(5*time.Second), 2*time.Second, "", "")
}

func articleHTML() string {
	body := strings.Repeat("This is a sentence about the story. ", 40)
	return `<html><head><title>Story</title></head><body><article><h1>Story</h1><p>` + body + `</p></article></body></html>`
}

func seedTask(t *testing.T, db *storage.DB, date string, stories []hn.Story) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.GetOrCreateTask(ctx, date); err != nil {
		t.Fatalf("GetOrCreateTask: %v", err)
	}
	if err := db.InsertArticles(ctx, date, stories); err != nil {
		t.Fatalf("InsertArticles: %v", err)
	}
}

func TestRunBatch_CompletesArticlesSuccessfully(t *testing.T) {
	db := setupTestDB(t)
	articleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML()))
	}))
	defer articleSrv.Close()

	date := "2026-07-30"
	stories := []hn.Story{
		{ID: 1, Rank: 1, Title: "First Story", URL: articleSrv.URL, Score: 100},
		{ID: 2, Rank: 2, Title: "Second Story", URL: articleSrv.URL, Score: 90},
	}
	seedTask(t, db, date, stories)

	translator := llmTranslator(t, func(user string) string {
		if strings.Contains(user, "Maximum length:") {
			return "這是摘要"
		}
		return "翻譯標題"
	})
	extractor := extract.New(fetch.New(5*time.Second), 2*time.Second, "", "")
	comments := &stubComments{kids: map[int64][]int{1: {10, 11, 12}, 2: {}}, bodies: []string{"c1", "c2", "c3"}}

	exec := New(db, extractor, translator, comments, 300, 4, time.Minute)
	if err := exec.RunBatch(context.Background(), date, 10); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	completed, err := db.GetCompletedOrdered(context.Background(), date)
	if err != nil {
		t.Fatalf("GetCompletedOrdered: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed articles, got %d", len(completed))
	}
	if completed[0].Rank != 1 || completed[1].Rank != 2 {
		t.Errorf("expected completed articles ordered by rank, got ranks %d, %d", completed[0].Rank, completed[1].Rank)
	}
	for _, a := range completed {
		if a.TitleChinese == "" {
			t.Errorf("expected non-empty translated title for story %d", a.StoryID)
		}
		if a.ContentChinese == "" {
			t.Errorf("expected non-empty summary for story %d", a.StoryID)
		}
	}
}

func TestRunBatch_SummarizeFailureMarksArticleFailed(t *testing.T) {
	db := setupTestDB(t)
	date := "2026-07-30"
	stories := []hn.Story{{ID: 3, Rank: 1, Title: "Broken Story", URL: "https://example.invalid/missing", Score: 10}}
	seedTask(t, db, date, stories)

	translator := errorTranslator(t)
	extractor := newExtractor(t, "<html></html>")
	comments := &stubComments{}

	exec := New(db, extractor, translator, comments, 300, 2, time.Minute)
	if err := exec.RunBatch(context.Background(), date, 10); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	articles, err := db.ListArticles(context.Background(), date, storage.ArticleFailed)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 failed article, got %d", len(articles))
	}
	if articles[0].RetryCount != 1 {
		t.Errorf("expected retry count incremented once, got %d", articles[0].RetryCount)
	}
}

func TestRunBatch_EmptyClaimIsNoop(t *testing.T) {
	db := setupTestDB(t)
	translator := llmTranslator(t, func(_ string) string { return "x" })
	extractor := newExtractor(t, "<html></html>")
	exec := New(db, extractor, translator, &stubComments{}, 300, 2, time.Minute)
	if err := exec.RunBatch(context.Background(), "2026-01-01", 10); err != nil {
		t.Fatalf("expected nil error on empty claim, got %v", err)
	}
}

func TestNew_ClampsConcurrencyAndDeadline(t *testing.T) {
	e := New(nil, nil, nil, nil, 300, 0, 0)
	if e.concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", e.concurrency)
	}
	if e.deadline != time.Second {
		t.Errorf("expected deadline clamped to 1s, got %s", e.deadline)
	}
}
