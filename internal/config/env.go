// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "DIGEST_PORT"
	EnvLogLevel        = "DIGEST_LOG_LEVEL"
	EnvShutdownTimeout = "DIGEST_SHUTDOWN_TIMEOUT"
	EnvServerName      = "DIGEST_SERVER_NAME"
	EnvInstanceID      = "DIGEST_INSTANCE_ID"

	// Data
	EnvDataDir = "DIGEST_DATA_DIR"

	// LLM Client
	EnvLLMProvider           = "LLM_PROVIDER"
	EnvLLMDeepSeekAPIKey     = "LLM_DEEPSEEK_API_KEY"
	EnvLLMOpenRouterAPIKey   = "LLM_OPENROUTER_API_KEY"
	EnvLLMZhipuAPIKey        = "LLM_ZHIPU_API_KEY"
	EnvLLMDeepSeekModel      = "LLM_DEEPSEEK_MODEL"
	EnvLLMOpenRouterModel    = "LLM_OPENROUTER_MODEL"
	EnvLLMZhipuModel         = "LLM_ZHIPU_MODEL"
	EnvLLMOpenRouterSiteURL  = "LLM_OPENROUTER_SITE_URL"
	EnvLLMOpenRouterSiteName = "LLM_OPENROUTER_SITE_NAME"

	// Source Adapter
	EnvHNStoryLimit      = "HN_STORY_LIMIT"
	EnvHNTimeWindowHours = "HN_TIME_WINDOW_HOURS"

	// Translator/Summarizer
	EnvSummaryMaxLength = "SUMMARY_MAX_LENGTH"

	// Batch Executor
	EnvTaskBatchSize    = "TASK_BATCH_SIZE"
	EnvMaxRetryCount    = "MAX_RETRY_COUNT"
	EnvBatchConcurrency = "BATCH_CONCURRENCY"
	EnvBatchDeadline    = "BATCH_DEADLINE"

	// Content Classifier
	EnvEnableContentFilter      = "ENABLE_CONTENT_FILTER"
	EnvContentFilterSensitivity = "CONTENT_FILTER_SENSITIVITY"

	// Git sink
	EnvGitHubEnabled = "GITHUB_ENABLED"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvTargetRepo    = "TARGET_REPO"
	EnvTargetBranch  = "TARGET_BRANCH"

	// Chat sink
	EnvTelegramEnabled   = "TELEGRAM_ENABLED"
	EnvTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChannelID = "TELEGRAM_CHANNEL_ID"
	EnvTelegramBatchSize = "TELEGRAM_BATCH_SIZE"

	// Terminal sink / test mode
	EnvLocalTestMode = "LOCAL_TEST_MODE"

	// Content Extractor crawler fallback
	EnvCrawlerAPIURL   = "CRAWLER_API_URL"
	EnvCrawlerAPIToken = "CRAWLER_API_TOKEN"

	// Better Stack Feature (optional secondary log sink)
	EnvBetterStackEnabled  = "DIGEST_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "DIGEST_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "DIGEST_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "DIGEST_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "DIGEST_METRICS_USERNAME"
	EnvMetricsPassword    = "DIGEST_METRICS_PASSWORD"
)
