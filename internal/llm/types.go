// Package llm provides the unified LLM Client: a single
// chat-completion surface over DeepSeek, OpenRouter, and Zhipu, all
// OpenAI-compatible endpoints reached through one client implementation.
package llm

import "github.com/hn-digest/hn-digest-go/internal/config"

// Provider identifies a configured chat-completion backend.
type Provider = config.LLMProvider

// Message is a single chat turn.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// ChatRequest describes a single chat-completion call.
type ChatRequest struct {
	Provider         Provider
	Model            string
	Messages         []Message
	Temperature      float64
	ExpectJSONArray  bool
	ExpectedArrayLen int // validated only when ExpectJSONArray is true and > 0

	// Operation labels this call for metrics, e.g. "translate_title" or
	// "classify". Empty disables per-call instrumentation.
	Operation string
}

// ChatResponse is the result of a successful chat-completion call.
type ChatResponse struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}
