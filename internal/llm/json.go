package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// validateJSONArray checks that content parses as a JSON array, and
// optionally that it has exactly expectedLen elements. Batched
// translate/summarize/classify calls rely on this to catch a model
// response that silently drops or merges positions before the caller
// tries to scatter results back by index.
func validateJSONArray(content string, expectedLen int) error {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
		return fmt.Errorf("response is not a JSON array: %w", err)
	}
	if expectedLen > 0 && len(arr) != expectedLen {
		return fmt.Errorf("expected %d array elements, got %d", expectedLen, len(arr))
	}
	return nil
}

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ```
// fence, which chat models frequently wrap structured output in despite
// being asked not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
