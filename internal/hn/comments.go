package hn

import "context"

// FetchStoryKids re-resolves a story's top-level comment ids. Kids are
// not persisted on the Article record (comments are transient per the
// data model), so the Batch Executor re-fetches them from the item
// detail endpoint each time it processes a story.
func (a *Adapter) FetchStoryKids(ctx context.Context, storyID int64) ([]int, error) {
	item, err := a.fetchItem(ctx, int(storyID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return item.Kids, nil
}

// FetchComments resolves the top-level comment bodies for a story,
// skipping dead, deleted, or empty comments. Used by the Batch
// Executor to feed the Translator/Summarizer's summarizeComments step.
func (a *Adapter) FetchComments(ctx context.Context, kidIDs []int, limit int) ([]string, error) {
	if limit > 0 && len(kidIDs) > limit {
		kidIDs = kidIDs[:limit]
	}

	var comments []string
	for _, id := range kidIDs {
		item, err := a.fetchItem(ctx, id)
		if err != nil {
			continue // a single comment fetch failure does not abort the story
		}
		if item == nil || item.Dead || item.Deleted || item.Text == "" {
			continue
		}
		comments = append(comments, item.Text)
	}
	return comments, nil
}
