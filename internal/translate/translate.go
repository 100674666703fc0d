package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hn-digest/hn-digest-go/internal/llm"
)

// minCommentsForSummary is the floor below which SummarizeComments
// returns nil instead of calling the model on an unrepresentative thread.
const minCommentsForSummary = 3

// maxCommentChars caps the concatenated comment text sent to the model,
// preserving comment order up to the cap.
const maxCommentChars = 5000

// Translator performs title translation and article/comment
// summarization through the LLM Client.
type Translator struct {
	client   *llm.Client
	provider llm.Provider
	model    string
}

// New creates a Translator bound to a single provider/model pair.
func New(client *llm.Client, provider llm.Provider, model string) *Translator {
	return &Translator{client: client, provider: provider, model: model}
}

// TranslateTitle translates a single story title. A title already
// predominantly Chinese is returned unchanged without a model call.
func (t *Translator) TranslateTitle(ctx context.Context, title string) (string, error) {
	if isPredominantlyChinese(title) {
		return title, nil
	}

	resp, err := t.client.ChatCompletion(ctx, llm.ChatRequest{
		Provider:    t.provider,
		Model:       t.model,
		Temperature: 0.3,
		Messages: []llm.Message{
			{Role: "system", Content: titleSystemPrompt},
			{Role: "user", Content: title},
		},
		Operation: "translate_title",
	})
	if err != nil {
		return "", fmt.Errorf("translate: title: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SummarizeArticle summarizes an article's full content within
// maxLength characters.
func (t *Translator) SummarizeArticle(ctx context.Context, title, content string, maxLength int) (string, error) {
	prompt := fmt.Sprintf("Title: %s\nMaximum length: %d characters\n\nContent:\n%s", title, maxLength, content)
	resp, err := t.client.ChatCompletion(ctx, llm.ChatRequest{
		Provider:    t.provider,
		Model:       t.model,
		Temperature: 0.3,
		Messages: []llm.Message{
			{Role: "system", Content: articleSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Operation: "summarize_article",
	})
	if err != nil {
		return "", fmt.Errorf("translate: summarize article: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SummarizeComments summarizes a comment thread, returning nil if fewer
// than minCommentsForSummary non-empty comments are present.
func (t *Translator) SummarizeComments(ctx context.Context, comments []string) (*string, error) {
	nonEmpty := nonEmptyComments(comments)
	if len(nonEmpty) < minCommentsForSummary {
		return nil, nil
	}

	prompt := truncateRunes(strings.Join(nonEmpty, "\n---\n"), maxCommentChars)
	resp, err := t.client.ChatCompletion(ctx, llm.ChatRequest{
		Provider:    t.provider,
		Model:       t.model,
		Temperature: 0.3,
		Messages: []llm.Message{
			{Role: "system", Content: commentsSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Operation: "summarize_comments",
	})
	if err != nil {
		return nil, fmt.Errorf("translate: summarize comments: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	return &summary, nil
}

// isPredominantlyChinese reports whether more than half of title's
// non-whitespace characters fall in the CJK ideograph or CJK
// punctuation ranges, the heuristic TranslateTitle uses to skip
// already-Chinese titles.
func isPredominantlyChinese(title string) bool {
	var cjk, total int
	for _, r := range title {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJKIdeographOrPunctuation(r) {
			cjk++
		}
	}
	return total > 0 && cjk*2 > total
}

func isCJKIdeographOrPunctuation(r rune) bool {
	if unicode.Is(unicode.Han, r) {
		return true
	}
	// CJK Symbols and Punctuation, Fullwidth Forms (、。「」『』,：；！？ etc.)
	return (r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func nonEmptyComments(comments []string) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
