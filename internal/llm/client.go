package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hn-digest/hn-digest-go/internal/concurrency"
	"github.com/hn-digest/hn-digest-go/internal/config"
	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
)

// providerLimits holds the Concurrency Gate parameters for a provider.
type providerLimits struct {
	maxInFlight  int
	minRetryWait time.Duration
}

// defaultLimits sets each provider's gate: the strictest provider
// (Zhipu, historically rate-limit sensitive) gets the smallest
// in-flight budget.
var defaultLimits = map[Provider]providerLimits{
	config.ProviderDeepSeek:   {maxInFlight: 5, minRetryWait: 1000 * time.Millisecond},
	config.ProviderOpenRouter: {maxInFlight: 5, minRetryWait: 1500 * time.Millisecond},
	config.ProviderZhipu:      {maxInFlight: 2, minRetryWait: 2000 * time.Millisecond},
}

// Metrics records one LLM API request. A nil Metrics (the default)
// disables this instrumentation.
type Metrics interface {
	RecordLLM(operation, provider, status string, durationSeconds float64)
}

// Client is the unified LLM Client. It wraps one openai-go client
// per configured provider (all three are OpenAI-compatible endpoints)
// behind a single chatCompletion surface, with per-provider concurrency
// gating and retry.
type Client struct {
	cfg      *config.Config
	clients  map[Provider]openai.Client
	gates    *concurrency.Registry
	maxRetry int
	metrics  Metrics
}

// SetMetrics attaches per-call instrumentation, keyed by
// ChatRequest.Operation.
func (c *Client) SetMetrics(metrics Metrics) *Client {
	c.metrics = metrics
	return c
}

// New creates a Client configured for whichever providers have an API
// key set; calling ChatCompletion with an unconfigured provider returns
// an error.
func New(cfg *config.Config) *Client {
	clients := make(map[Provider]openai.Client)
	for provider, baseURL := range providerEndpoint {
		key := apiKeyFor(cfg, provider)
		if key == "" {
			continue
		}
		opts := []option.RequestOption{
			option.WithBaseURL(baseURL),
			option.WithAPIKey(key),
		}
		for header, value := range attributionHeaders(cfg, provider) {
			opts = append(opts, option.WithHeader(header, value))
		}
		clients[provider] = openai.NewClient(opts...)
	}

	return newClient(cfg, clients, cfg.MaxRetryCount)
}

// NewWithClients builds a Client from pre-constructed openai-go clients,
// bypassing API-key-driven discovery. Exposed so callers that need a
// non-default transport (a local OpenAI-compatible gateway in tests, or
// a self-hosted proxy in production) can wire one in directly.
func NewWithClients(clients map[Provider]openai.Client, maxRetry int) *Client {
	return newClient(&config.Config{}, clients, maxRetry)
}

func newClient(cfg *config.Config, clients map[Provider]openai.Client, maxRetry int) *Client {
	gates := concurrency.NewRegistry(func(provider string) (int, time.Duration) {
		limits, ok := defaultLimits[Provider(provider)]
		if !ok {
			return 3, 1500 * time.Millisecond
		}
		return limits.maxInFlight, limits.minRetryWait
	})

	return &Client{cfg: cfg, clients: clients, gates: gates, maxRetry: maxRetry}
}

func apiKeyFor(cfg *config.Config, provider Provider) string {
	switch provider {
	case config.ProviderDeepSeek:
		return cfg.LLMDeepSeekAPIKey
	case config.ProviderOpenRouter:
		return cfg.LLMOpenRouterAPIKey
	case config.ProviderZhipu:
		return cfg.LLMZhipuAPIKey
	default:
		return ""
	}
}

// ChatCompletion performs a gated, retried chat-completion call. On
// exhaustion of retries it returns an error wrapping
// errors.ErrRateLimitExhausted.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (resp *ChatResponse, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil && req.Operation != "" {
			status := "success"
			if err != nil {
				status = "error"
			}
			c.metrics.RecordLLM(req.Operation, string(req.Provider), status, time.Since(start).Seconds())
		}
	}()

	oc, ok := c.clients[req.Provider]
	if !ok {
		return nil, fmt.Errorf("llm: provider %q is not configured", req.Provider)
	}

	gate := c.gates.Gate(string(req.Provider))
	release, acquireErr := gate.Acquire(ctx)
	if acquireErr != nil {
		return nil, fmt.Errorf("llm: acquiring concurrency slot: %w", acquireErr)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetry; attempt++ {
		if attempt > 0 {
			if waitErr := gate.WaitRetryBudget(ctx); waitErr != nil {
				return nil, fmt.Errorf("llm: retry wait canceled: %w", waitErr)
			}
		}

		callResp, callErr := c.doCall(ctx, oc, req)
		if callErr == nil {
			return callResp, nil
		}
		lastErr = callErr

		if !classify(callErr) {
			return nil, domerrors.NewLLMError(string(req.Provider), statusCodeOf(callErr), callErr)
		}

		slog.WarnContext(ctx, "llm call failed, will retry",
			"provider", req.Provider, "model", req.Model, "attempt", attempt, "error", callErr)
	}

	return nil, fmt.Errorf("llm: %w: %w", domerrors.ErrRateLimitExhausted, lastErr)
}

func (c *Client) doCall(ctx context.Context, oc openai.Client, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}

	start := time.Now()
	resp, err := oc.Chat.Completions.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		return nil, domerrors.NewLLMError(string(req.Provider), 0, err)
	}
	if len(resp.Choices) == 0 {
		return nil, domerrors.NewLLMError(string(req.Provider), 0, fmt.Errorf("empty choices in response"))
	}

	content := resp.Choices[0].Message.Content

	if req.ExpectJSONArray {
		if err := validateJSONArray(content, req.ExpectedArrayLen); err != nil {
			return nil, domerrors.NewLLMError(string(req.Provider), 0, err)
		}
	}

	slog.DebugContext(ctx, "llm call completed",
		"provider", req.Provider, "model", req.Model,
		"duration_ms", duration.Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)

	return &ChatResponse{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
