package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"

	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
)

// classify maps a raw openai-go client error to a retryable/non-retryable
// verdict, mirroring the fetcher's status-code categories so both the
// fetcher and the LLM client share one retry vocabulary.
func classify(err error) (retryable bool) {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var fe *domerrors.FetchError
	if errors.As(err, &fe) {
		return errors.Is(fe, domerrors.ErrHTTP5xx) || errors.Is(fe, domerrors.ErrRateLimit) || errors.Is(fe, domerrors.ErrNetwork) || errors.Is(fe, domerrors.ErrTimeout)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return true
	case containsAny(msg, "500", "502", "503", "504", "unavailable", "overloaded", "capacity"):
		return true
	case containsAny(msg, "timeout", "deadline", "connection reset", "connection refused"):
		return true
	case containsAny(msg, "400", "401", "403", "404", "422", "invalid", "unauthorized", "forbidden"):
		return false
	default:
		return true
	}
}

func statusCodeOf(err error) int {
	var fe *domerrors.FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
