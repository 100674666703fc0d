// Package aggregate implements the Aggregator: it renders a day's
// completed Articles into the published digest artifact.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/storage"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// Story is one published entry in a digest: an Article re-numbered to a
// contiguous rank and reshaped into the fields both the Markdown
// renderer and the Publisher fan-out's structured sinks need.
type Story struct {
	Rank           int
	StoryID        int64
	TitleChinese   string
	TitleEnglish   string
	URL            string
	PublishedAt    time.Time
	Description    string
	CommentSummary *string
}

// Digest is the rendered artifact for one date: Markdown plus the
// structured data it was built from, so Publisher sinks that format
// their own output (the Chat sink) never have to re-parse Markdown.
type Digest struct {
	Date     string
	FileName string
	Markdown string
	Stories  []Story
}

// Aggregator renders a day's completed Articles into its Digest.
type Aggregator struct {
	articles storage.ArticleRepository
}

// New creates an Aggregator backed by articles.
func New(articles storage.ArticleRepository) *Aggregator {
	return &Aggregator{articles: articles}
}

// Render builds the Digest for date from its completed Articles, ordered
// by rank with survivors re-numbered 1..k so the published rank sequence
// has no gaps even when some positions failed.
func (a *Aggregator) Render(ctx context.Context, date string) (*Digest, error) {
	completed, err := a.articles.GetCompletedOrdered(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("aggregate: loading completed articles for %s: %w", date, err)
	}

	stories := make([]Story, 0, len(completed))
	for i, article := range completed {
		url := article.URL
		if url == "" {
			// Ask HN and similar stories carry no external URL; link the
			// HN item itself.
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", article.StoryID)
		}
		stories = append(stories, Story{
			Rank:           i + 1,
			StoryID:        article.StoryID,
			TitleChinese:   article.TitleChinese,
			TitleEnglish:   article.Title,
			URL:            url,
			PublishedAt:    time.Unix(article.CreatedAtUnix, 0).UTC(),
			Description:    article.ContentChinese,
			CommentSummary: article.CommentSummary,
		})
	}

	return &Digest{
		Date:     date,
		FileName: date + "-daily.md",
		Markdown: renderMarkdown(date, stories),
		Stories:  stories,
	}, nil
}

func renderMarkdown(date string, stories []Story) string {
	var b strings.Builder

	fmt.Fprintf(&b, "---\nlayout: post\ntitle: HackerNews Daily - %s\ndate: %s\n---\n\n", date, date)

	for _, s := range stories {
		fmt.Fprintf(&b, "## %d. %s\n\n", s.Rank, s.TitleChinese)
		fmt.Fprintf(&b, "%s\n\n", s.TitleEnglish)
		fmt.Fprintf(&b, "**发布时间**: %s\n\n", s.PublishedAt.Format(timestampLayout))
		fmt.Fprintf(&b, "**链接**: [%s](%s)\n\n", s.URL, s.URL)
		fmt.Fprintf(&b, "**描述**:\n\n%s\n\n", s.Description)
		if s.CommentSummary != nil && *s.CommentSummary != "" {
			fmt.Fprintf(&b, "**评论要点**:\n\n%s\n\n", *s.CommentSummary)
		}
		fmt.Fprintf(&b, "*[HackerNews](https://news.ycombinator.com/item?id=%d)*\n\n---\n\n", s.StoryID)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
