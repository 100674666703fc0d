package classify

import "context"

// FilterIndices classifies each title and returns the indices of the
// titles that passed, preserving order. Used by callers that need to
// filter a parallel slice of richer story values by title without
// matching on title text, which breaks when two stories share an
// identical title. Fail-open behavior mirrors Filter: any error, or any
// malformed response, returns every index 0..len(titles)-1 unfiltered.
func (c *Classifier) FilterIndices(ctx context.Context, titles []string) []int {
	all := make([]int, len(titles))
	for i := range titles {
		all[i] = i
	}
	if c == nil || len(titles) == 0 {
		return all
	}

	keep, ok := c.classify(ctx, titles)
	if !ok {
		return all
	}
	return keep
}
