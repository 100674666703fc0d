// Package classify implements the Content Classifier: an optional,
// fail-open filter that drops stories judged unsuitable for the digest
// under a configured sensitivity rubric.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/config"
	"github.com/hn-digest/hn-digest-go/internal/llm"
)

// Classifier is the Content Classifier. A nil *Classifier (or one
// built with an empty provider) means content filtering is disabled;
// Filter then returns the input unchanged.
type Classifier struct {
	client      *llm.Client
	provider    llm.Provider
	model       string
	sensitivity config.Sensitivity
	deadline    time.Duration
}

// New creates a Classifier. Pass config.SensitivityLow/Medium/High as
// the active rubric.
func New(client *llm.Client, provider llm.Provider, model string, sensitivity config.Sensitivity, deadline time.Duration) *Classifier {
	return &Classifier{client: client, provider: provider, model: model, sensitivity: sensitivity, deadline: deadline}
}

const (
	tokenSafe      = "SAFE"
	tokenSensitive = "SENSITIVE"
)

type classification struct {
	Index          int    `json:"index"`
	Classification string `json:"classification"` // "SAFE" or "SENSITIVE"
}

// Filter classifies each title and returns the subset that passed. Any
// failure — timeout, parse error, provider error, or a malformed
// response (wrong length, missing/duplicate indices, or a
// classification token other than SAFE/SENSITIVE) — fails open: the
// original slice is returned unmodified and the error is logged, never
// propagated, so the pipeline never blocks on a Content Classifier
// failure.
func (c *Classifier) Filter(ctx context.Context, titles []string) []string {
	if c == nil || len(titles) == 0 {
		return titles
	}

	keep, ok := c.classify(ctx, titles)
	if !ok {
		return titles
	}

	kept := make([]string, 0, len(titles))
	for _, i := range keep {
		kept = append(kept, titles[i])
	}
	return kept
}

// classify runs one classification call over titles and returns the
// indices judged SAFE, in ascending order. ok is false whenever the
// call or the response is unusable for any reason, signaling the
// caller to fail open with the unfiltered input.
func (c *Classifier) classify(ctx context.Context, titles []string) (keep []int, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	payload, err := json.Marshal(titles)
	if err != nil {
		slog.WarnContext(ctx, "classifier: marshal failed, failing open", "error", err)
		return nil, false
	}

	resp, err := c.client.ChatCompletion(ctx, llm.ChatRequest{
		Provider:    c.provider,
		Model:       c.model,
		Temperature: 0,
		Messages: []llm.Message{
			{Role: "system", Content: systemPromptFor(c.sensitivity)},
			{Role: "user", Content: string(payload)},
		},
		Operation:        "classify",
		ExpectJSONArray:  true,
		ExpectedArrayLen: len(titles),
	})
	if err != nil {
		slog.WarnContext(ctx, "classifier: call failed, failing open", "error", err)
		return nil, false
	}

	var results []classification
	if err := json.Unmarshal([]byte(stripFence(resp.Content)), &results); err != nil {
		slog.WarnContext(ctx, "classifier: parse failed, failing open", "error", err)
		return nil, false
	}

	return resolveKeepIndices(titles, results)
}

// resolveKeepIndices validates a classification response as a whole: the
// array must carry exactly one entry per input title, covering every
// index 0..len(titles)-1 exactly once, each tagged SAFE or SENSITIVE. A
// length mismatch, a missing/duplicate/out-of-range index, or any other
// classification token makes the entire response a soft failure —
// partial application of a malformed batch would otherwise mask which
// stories were actually reviewed.
func resolveKeepIndices(titles []string, results []classification) (keep []int, ok bool) {
	if len(results) != len(titles) {
		return nil, false
	}

	seen := make([]bool, len(titles))
	verdict := make([]bool, len(titles))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(titles) || seen[r.Index] {
			return nil, false
		}
		switch r.Classification {
		case tokenSafe:
			verdict[r.Index] = true
		case tokenSensitive:
			verdict[r.Index] = false
		default:
			return nil, false
		}
		seen[r.Index] = true
	}

	keep = make([]int, 0, len(titles))
	for i, v := range verdict {
		if v {
			keep = append(keep, i)
		}
	}
	return keep, true
}

func systemPromptFor(sensitivity config.Sensitivity) string {
	rubric := rubrics[sensitivity]
	if rubric == "" {
		rubric = rubrics[config.SensitivityMedium]
	}
	return fmt.Sprintf(`You classify Hacker News story titles for inclusion in a daily digest.
%s
Input is a JSON array of titles. Output a JSON array of objects {"index": <int>, "classification": "SAFE"|"SENSITIVE"},
one per input title, covering every index exactly once, where SAFE keeps the story and SENSITIVE drops it. Output only the JSON array.`, rubric)
}

var rubrics = map[config.Sensitivity]string{
	config.SensitivityLow:    "Mark SENSITIVE only content that is explicitly illegal, sexually explicit/adult, or graphically violent. Everything else is SAFE.",
	config.SensitivityMedium: "Mark SENSITIVE anything illegal, or material that is politically sensitive with respect to China (e.g. Taiwan independence, Tiananmen, Xinjiang/Tibet, CCP leadership criticism, Hong Kong protests). Everything else is SAFE.",
	config.SensitivityHigh:   "Mark SENSITIVE any content that touches politics or government at all, anywhere in the world, even tangentially. Everything else is SAFE.",
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
