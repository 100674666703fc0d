package hn

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/fetch"
	"github.com/hn-digest/hn-digest-go/internal/sliceutil"
)

const (
	defaultBaseURL  = "https://hacker-news.firebaseio.com/v0"
	bestStoriesPath = "/beststories.json"
	itemPathFmt     = "/item/%d.json"
	batchPageSize   = 100
	maxBatchPages   = 10
)

// Adapter is the Source Adapter: it resolves the best-story id
// list, fetches item details in capped batches, filters to the day's
// window, and produces a ranked, truncated candidate list.
type Adapter struct {
	fetcher     *fetch.Fetcher
	maxRetries  int
	retryDelay  time.Duration
	testBaseURL string // overrides defaultBaseURL in tests; empty in production
}

// New creates an Adapter using fetcher for all outbound HTTP calls.
func New(fetcher *fetch.Fetcher, maxRetries int, retryDelay time.Duration) *Adapter {
	return &Adapter{fetcher: fetcher, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (a *Adapter) baseURL() string {
	if a.testBaseURL != "" {
		return a.testBaseURL
	}
	return defaultBaseURL
}

// FetchDailyCandidates resolves the ranked candidate stories created in
// the windowHours-long window starting at date's UTC midnight, truncated to storyLimit
// entries with rank_i = i+1 assigned by final sort order.
func (a *Adapter) FetchDailyCandidates(ctx context.Context, date time.Time, windowHours, storyLimit int) ([]Story, error) {
	ids, err := a.bestStoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("hn: fetching best story ids: %w", err)
	}

	windowStart := date.Truncate(24 * time.Hour)
	windowEnd := windowStart.Add(time.Duration(windowHours) * time.Hour)

	var candidates []Story
	pages := (len(ids) + batchPageSize - 1) / batchPageSize
	if pages > maxBatchPages {
		pages = maxBatchPages
	}

	for page := 0; page < pages; page++ {
		start := page * batchPageSize
		end := start + batchPageSize
		if end > len(ids) {
			end = len(ids)
		}
		if start >= end {
			break
		}

		items := a.resolveBatch(ctx, ids[start:end])

		for _, item := range items {
			if item == nil || item.Type != "story" || item.Dead || item.Deleted {
				continue
			}
			createdAt := time.Unix(item.Time, 0).UTC()
			if createdAt.Before(windowStart) || !createdAt.Before(windowEnd) {
				continue
			}
			candidates = append(candidates, Story{
				ID:          item.ID,
				Title:       item.Title,
				URL:         item.URL,
				Score:       item.Score,
				Descendants: item.Descendants,
				By:          item.By,
				CreatedAt:   createdAt,
				Kids:        item.Kids,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	if storyLimit > 0 && len(candidates) > storyLimit {
		candidates = candidates[:storyLimit]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return candidates, nil
}

// bestStoryIDs resolves the /beststories.json list, deduplicated by id:
// the upstream feed has been observed to repeat an id across adjacent
// pages, which would otherwise double-count a story's rank.
func (a *Adapter) bestStoryIDs(ctx context.Context) ([]int, error) {
	resp, err := a.fetcher.Fetch(ctx, "GET", a.baseURL()+bestStoriesPath, fetch.Options{
		MaxRetries:     a.maxRetries,
		RetryBaseDelay: a.retryDelay,
		ExpectJSON:     true,
		Source:         "hn_api",
	})
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := resp.JSON(&ids); err != nil {
		return nil, err
	}
	return sliceutil.Deduplicate(ids, func(id int) int { return id }), nil
}

// resolveBatch fetches each item id concurrently within the batch,
// preserving the slot for a failed lookup as nil so indices remain
// meaningful to the caller. A single item's lookup failure is logged
// and skipped, never fatal to the batch.
func (a *Adapter) resolveBatch(ctx context.Context, ids []int) []*rawItem {
	results := make([]*rawItem, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			item, err := a.fetchItem(ctx, id)
			if err != nil {
				slog.WarnContext(ctx, "item detail fetch failed, skipping story", "item_id", id, "error", err)
				return
			}
			results[i] = item
		}(i, id)
	}

	wg.Wait()
	return results
}

func (a *Adapter) fetchItem(ctx context.Context, id int) (*rawItem, error) {
	resp, err := a.fetcher.Fetch(ctx, "GET", a.baseURL()+fmt.Sprintf(itemPathFmt, id), fetch.Options{
		MaxRetries:     a.maxRetries,
		RetryBaseDelay: a.retryDelay,
		ExpectJSON:     true,
		Source:         "hn_api",
	})
	if err != nil {
		return nil, err
	}
	var item rawItem
	if err := resp.JSON(&item); err != nil {
		return nil, err
	}
	return &item, nil
}
