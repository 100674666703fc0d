package llm

import "github.com/hn-digest/hn-digest-go/internal/config"

// providerEndpoint maps each configured provider to its OpenAI-compatible
// base URL.
var providerEndpoint = map[Provider]string{
	config.ProviderDeepSeek:   "https://api.deepseek.com/v1",
	config.ProviderOpenRouter: "https://openrouter.ai/api/v1",
	config.ProviderZhipu:      "https://open.bigmodel.cn/api/paas/v4",
}

// attributionHeaders returns provider-specific headers required on every
// request (OpenRouter asks for site attribution headers on its free tier).
func attributionHeaders(cfg *config.Config, provider Provider) map[string]string {
	if provider != config.ProviderOpenRouter {
		return nil
	}
	headers := make(map[string]string, 2)
	if cfg.LLMOpenRouterSiteURL != "" {
		headers["HTTP-Referer"] = cfg.LLMOpenRouterSiteURL
	}
	if cfg.LLMOpenRouterSiteName != "" {
		headers["X-Title"] = cfg.LLMOpenRouterSiteName
	}
	return headers
}
