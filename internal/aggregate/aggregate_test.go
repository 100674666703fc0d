package aggregate

import (
	"context"
	"strings"
	"testing"

	"github.com/hn-digest/hn-digest-go/internal/hn"
	"github.com/hn-digest/hn-digest-go/internal/storage"
)

// stubArticles implements storage.ArticleRepository with just enough
// behavior to drive the Aggregator's one read path.
type stubArticles struct {
	completed []storage.Article
	err       error
}

func (s *stubArticles) InsertArticles(context.Context, string, []hn.Story) error { return nil }
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
func (s *stubArticles) RetryFailed(context.Context, string) (int, error)         { return 0, nil }
func (s *stubArticles) GetCompletedOrdered(_ context.Context, _ string) ([]storage.Article, error) {
	return s.completed, s.err
}

func ptr(s string) *string { return &s }

func TestRender_RenumbersRankContiguously(t *testing.T) {
	stub := &stubArticles{completed: []storage.Article{
		{StoryID: 1, Rank: 1, Title: "First", TitleChinese: "第一", URL: "https://a.example", ContentChinese: "摘要一", CreatedAtUnix: 1700000000},
		{StoryID: 3, Rank: 3, Title: "Third", TitleChinese: "第三", URL: "https://c.example", ContentChinese: "摘要三", CreatedAtUnix: 1700000100, CommentSummary: ptr("热议")},
	}}

	agg := New(stub)
	digest, err := agg.Render(context.Background(), "2026-07-30")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(digest.Stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(digest.Stories))
	}
	if digest.Stories[0].Rank != 1 || digest.Stories[1].Rank != 2 {
		t.Errorf("expected contiguous ranks 1,2, got %d,%d", digest.Stories[0].Rank, digest.Stories[1].Rank)
	}
	if digest.FileName != "2026-07-30-daily.md" {
		t.Errorf("unexpected filename: %s", digest.FileName)
	}
}

func TestRender_FallsBackToItemLinkWhenURLEmpty(t *testing.T) {
	stub := &stubArticles{completed: []storage.Article{
		{StoryID: 7, Rank: 1, Title: "Ask HN: something", TitleChinese: "问 HN", ContentChinese: "摘要", CreatedAtUnix: 1700000000},
	}}

	digest, err := New(stub).Render(context.Background(), "2026-07-30")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := digest.Stories[0].URL; got != "https://news.ycombinator.com/item?id=7" {
		t.Errorf("expected HN item link for a URL-less story, got %q", got)
	}
}

func TestRenderMarkdown_OmitsCommentSectionWhenNil(t *testing.T) {
	stories := []Story{{Rank: 1, StoryID: 42, TitleChinese: "標題", TitleEnglish: "Title", URL: "https://x.example", Description: "描述文字"}}
	md := renderMarkdown("2026-07-30", stories)
	if strings.Contains(md, "评论要点") {
		t.Errorf("expected comment section omitted when CommentSummary is nil, got:\n%s", md)
	}
	if !strings.Contains(md, "## 1. 標題") {
		t.Errorf("expected rendered heading, got:\n%s", md)
	}
	if !strings.Contains(md, "layout: post") {
		t.Errorf("expected front matter, got:\n%s", md)
	}
}

func TestRenderMarkdown_IncludesCommentSectionWhenPresent(t *testing.T) {
	stories := []Story{{Rank: 1, StoryID: 42, TitleChinese: "標題", TitleEnglish: "Title", URL: "https://x.example", Description: "描述文字", CommentSummary: ptr("熱烈討論")}}
	md := renderMarkdown("2026-07-30", stories)
	if !strings.Contains(md, "评论要点") || !strings.Contains(md, "熱烈討論") {
		t.Errorf("expected comment section present, got:\n%s", md)
	}
}
