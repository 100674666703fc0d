package translate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultConcurrency bounds how many per-item chat-completion requests a
// batched translate/summarize operation dispatches at once. Each
// request is itself gated per-provider inside ChatCompletion, so
// this limit only bounds how many requests this process issues
// concurrently across all providers.
const defaultConcurrency = 5

// TranslateTitlesBatch translates titles, preserving strict positional
// mapping: result[i] corresponds to titles[i]. Batched operations must
// not ask the model for one ordered JSON array of
// outputs — the model's compliance with positional order is not a
// contract. Instead each non-empty title is dispatched as its own
// chat-completion request, concurrency-limited to defaultConcurrency,
// and the result is scattered back onto its original index. Empty
// entries in titles are skipped (not sent to the model) and come back as
// empty strings. A failure translating one title — including rate-limit
// exhaustion — falls back to TranslateTitle's own fallback, the original
// title, without failing the rest of the batch.
func (t *Translator) TranslateTitlesBatch(ctx context.Context, titles []string) ([]string, error) {
	present, indices := nonEmptyIndexed(titles)
	out := make([]string, len(titles))
	if len(present) == 0 {
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(defaultConcurrency)

	for i, origIdx := range indices {
		title := present[i]
		origIdx := origIdx
		g.Go(func() error {
			translated, err := t.TranslateTitle(ctx, title)
			if err != nil {
				translated = title
			}
			out[origIdx] = translated
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// SummarizeArticlesBatch summarizes articles with the same strict
// positional-mapping guarantee and per-item scatter/gather strategy as
// TranslateTitlesBatch. Entries whose content is empty are skipped and
// returned as an empty summary; a failure summarizing one article falls
// back to an empty summary for that position rather than failing the
// batch.
func (t *Translator) SummarizeArticlesBatch(ctx context.Context, titles, contents []string, maxLength int) ([]string, error) {
	if len(titles) != len(contents) {
		return nil, fmt.Errorf("translate: titles/contents length mismatch: %d != %d", len(titles), len(contents))
	}

	out := make([]string, len(contents))
	var g errgroup.Group
	g.SetLimit(defaultConcurrency)

	for i, content := range contents {
		if strings.TrimSpace(content) == "" {
			continue
		}
		i, content := i, content
		title := titles[i]
		g.Go(func() error {
			summary, err := t.SummarizeArticle(ctx, title, content, maxLength)
			if err != nil {
				summary = ""
			}
			out[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// SummarizeCommentsBatch summarizes comment threads with strict
// positional mapping, one chat-completion request per story concurrency-
// limited to defaultConcurrency. A story whose comment list has fewer
// than minCommentsForSummary non-empty entries is skipped (not sent to
// the model) and its result position is left nil; a failure
// summarizing one story's comments also falls back to nil rather than
// failing the batch.
func (t *Translator) SummarizeCommentsBatch(ctx context.Context, commentSets [][]string) ([]*string, error) {
	out := make([]*string, len(commentSets))
	var g errgroup.Group
	g.SetLimit(defaultConcurrency)

	for i, set := range commentSets {
		if len(nonEmptyComments(set)) < minCommentsForSummary {
			continue
		}
		i, set := i, set
		g.Go(func() error {
			summary, err := t.SummarizeComments(ctx, set)
			if err != nil {
				summary = nil
			}
			out[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func nonEmptyIndexed(items []string) (present []string, indices []int) {
	for i, s := range items {
		if strings.TrimSpace(s) == "" {
			continue
		}
		present = append(present, s)
		indices = append(indices, i)
	}
	return present, indices
}
