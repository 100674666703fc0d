package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hn-digest/hn-digest-go/internal/concurrency"
	"github.com/hn-digest/hn-digest-go/internal/config"
)

func chatCompletionPayload(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	})
	return body
}

func newTestClient(t *testing.T, baseURL string, provider Provider) *Client {
	t.Helper()
	oc := openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey("test-key"))
	c := NewWithClients(map[Provider]openai.Client{provider: oc}, 2)
	// Tests don't want to wait out the real per-provider retry spacing.
	c.gates = concurrency.NewRegistry(func(string) (int, time.Duration) {
		return 3, 1 * time.Millisecond
	})
	return c
}

func TestChatCompletion_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionPayload("hello world"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, config.ProviderDeepSeek)
	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider: config.ProviderDeepSeek,
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello world" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.TotalTokens != 15 {
		t.Errorf("unexpected token count: %d", resp.TotalTokens)
	}
}

func TestChatCompletion_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionPayload("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, config.ProviderDeepSeek)
	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider: config.ProviderDeepSeek,
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestChatCompletion_NonRetryableFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, config.ProviderDeepSeek)
	_, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider: config.ProviderDeepSeek,
		Model:    "deepseek-chat",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 call for a 401, got %d", got)
	}
}

func TestChatCompletion_UnconfiguredProvider(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", config.ProviderDeepSeek)
	_, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider: config.ProviderZhipu,
		Model:    "glm-4",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
}

func TestChatCompletion_ExpectJSONArray_WrongLengthIsRetryable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n < 2 {
			_, _ = w.Write(chatCompletionPayload(`[{"a":1}]`))
			return
		}
		_, _ = w.Write(chatCompletionPayload(`[{"a":1},{"a":2}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, config.ProviderDeepSeek)
	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider:         config.ProviderDeepSeek,
		Model:            "deepseek-chat",
		Messages:         []Message{{Role: "user", Content: "hi"}},
		ExpectJSONArray:  true,
		ExpectedArrayLen: 2,
	})
	if err != nil {
		t.Fatalf("expected eventual success after retry, got %v", err)
	}
	if resp.Content != `[{"a":1},{"a":2}]` {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}

func TestNew_AttachesOpenRouterAttributionHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionPayload("ok"))
	}))
	defer srv.Close()

	originalEndpoint := providerEndpoint[config.ProviderOpenRouter]
	providerEndpoint[config.ProviderOpenRouter] = srv.URL
	defer func() { providerEndpoint[config.ProviderOpenRouter] = originalEndpoint }()

	cfg := &config.Config{
		LLMOpenRouterAPIKey:   "key",
		LLMOpenRouterSiteURL:  "https://example.com",
		LLMOpenRouterSiteName: "Example Digest",
	}
	c := New(cfg)
	c.gates = concurrency.NewRegistry(func(string) (int, time.Duration) {
		return 3, 1 * time.Millisecond
	})

	_, err := c.ChatCompletion(context.Background(), ChatRequest{
		Provider: config.ProviderOpenRouter,
		Model:    "openai/gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReferer != "https://example.com" {
		t.Errorf("expected HTTP-Referer attribution header, got %q", gotReferer)
	}
	if gotTitle != "Example Digest" {
		t.Errorf("expected X-Title attribution header, got %q", gotTitle)
	}
}

func TestAttributionHeaders_OnlyOpenRouter(t *testing.T) {
	cfg := &config.Config{LLMOpenRouterSiteURL: "https://example.com", LLMOpenRouterSiteName: "Example"}
	if headers := attributionHeaders(cfg, config.ProviderDeepSeek); headers != nil {
		t.Errorf("expected no attribution headers for non-OpenRouter provider, got %v", headers)
	}
	headers := attributionHeaders(cfg, config.ProviderOpenRouter)
	if headers["HTTP-Referer"] != "https://example.com" || headers["X-Title"] != "Example" {
		t.Errorf("unexpected OpenRouter attribution headers: %v", headers)
	}
}
