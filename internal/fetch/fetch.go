// Package fetch provides a time-bounded HTTP client that classifies
// transport and status failures into typed categories instead of
// surfacing raw transport errors to callers.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corpix/uarand"

	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
)

// Options configures a single Fetch call.
type Options struct {
	Headers        map[string]string
	Body           []byte
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	ExpectJSON     bool

	// Source labels this call for metrics, e.g. "hn_api" or "article".
	// Empty disables per-call instrumentation.
	Source string
}

// Metrics records one outbound fetch. A nil Metrics (the default)
// disables this instrumentation.
type Metrics interface {
	RecordFetch(source, status string, durationSeconds float64)
}

// Response is the successful result of a Fetch call.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return domerrors.NewFetchError("", r.StatusCode, domerrors.ErrParse, err)
	}
	return nil
}

// Fetcher is the Budgeted Fetcher: a time-bounded HTTP client with
// retries that classifies transport/status errors instead of
// propagating them raw.
type Fetcher struct {
	httpClient *http.Client
	metrics    Metrics
}

// New creates a new Fetcher. The supplied timeout is a ceiling; each
// Fetch call may further narrow it via Options.Timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// SetMetrics attaches per-call instrumentation, keyed by Options.Source.
func (f *Fetcher) SetMetrics(metrics Metrics) *Fetcher {
	f.metrics = metrics
	return f
}

// Fetch performs a time-bounded HTTP request with retries, returning
// either a successful Response or a typed *errors.FetchError. It never
// panics and never returns an untyped error to the caller.
func (f *Fetcher) Fetch(ctx context.Context, method, url string, opts Options) (*Response, error) {
	start := time.Now()
	resp, err := f.fetch(ctx, method, url, opts)
	if f.metrics != nil && opts.Source != "" {
		status := "success"
		if err != nil {
			status = "error"
			if errors.Is(err, domerrors.ErrTimeout) {
				status = "timeout"
			}
		}
		f.metrics.RecordFetch(opts.Source, status, time.Since(start).Seconds())
	}
	return resp, err
}

func (f *Fetcher) fetch(ctx context.Context, method, url string, opts Options) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := opts.MaxRetries
	baseDelay := opts.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := f.doOnce(callCtx, method, url, opts)
		cancel()

		if err == nil {
			return resp, nil
		}

		var fe *domerrors.FetchError
		if errors.As(err, &fe) {
			lastErr = fe
			// http4xx (other than 429) never retries.
			if errors.Is(fe, domerrors.ErrHTTP4xx) {
				return nil, fe
			}
		} else {
			lastErr = err
		}

		if attempt == maxRetries {
			break
		}

		// Jitter-free doubling, per the fetcher's retry policy.
		delay := baseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, domerrors.NewFetchError(url, 0, domerrors.ErrTimeout, ctx.Err())
		}
	}

	return nil, lastErr
}

func (f *Fetcher) doOnce(ctx context.Context, method, url string, opts Options) (*Response, error) {
	var bodyReader io.Reader = http.NoBody
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, domerrors.NewFetchError(url, 0, domerrors.ErrNetwork, err)
	}

	req.Header.Set("User-Agent", uarand.GetRandom())
	req.Header.Set("Accept-Encoding", "gzip")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domerrors.NewFetchError(url, 0, domerrors.ErrTimeout, ctx.Err())
		}
		return nil, domerrors.NewFetchError(url, 0, domerrors.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, category, err := readBody(resp)
	if err != nil {
		return nil, domerrors.NewFetchError(url, resp.StatusCode, category, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(url, resp.StatusCode, resp.Header, body)
	}

	if opts.ExpectJSON {
		ct := resp.Header.Get("Content-Type")
		if !strings.Contains(ct, "json") {
			return nil, domerrors.NewFetchError(url, resp.StatusCode, domerrors.ErrParse,
				fmt.Errorf("expected JSON content-type, got %q", ct))
		}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

func readBody(resp *http.Response) ([]byte, error, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, domerrors.ErrParse, fmt.Errorf("decompress gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, domerrors.ErrNetwork, fmt.Errorf("read body: %w", err)
	}
	return body, nil, nil
}

// classifyStatus maps an HTTP status code to one of the fetcher's
// failure categories.
func classifyStatus(url string, status int, header http.Header, body []byte) *domerrors.FetchError {
	switch {
	case status == http.StatusTooManyRequests:
		return domerrors.NewFetchError(url, status, domerrors.ErrRateLimit,
			fmt.Errorf("rate limited: %s", retryAfterHint(header)))
	case status >= 500:
		return domerrors.NewFetchError(url, status, domerrors.ErrHTTP5xx, fmt.Errorf("server error: %d", status))
	default:
		return domerrors.NewFetchError(url, status, domerrors.ErrHTTP4xx, fmt.Errorf("client error: %d body=%q", status, truncate(body, 200)))
	}
}

func retryAfterHint(header http.Header) string {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return (time.Duration(secs) * time.Second).String()
		}
		return v
	}
	return "no retry-after header"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
