// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// server mode, the daily-export engine, and the configured LLM provider
// and publisher sinks.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLMProvider identifies one of the supported OpenAI-compatible backends.
type LLMProvider string

const (
	ProviderDeepSeek   LLMProvider = "deepseek"
	ProviderOpenRouter LLMProvider = "openrouter"
	ProviderZhipu      LLMProvider = "zhipu"
)

// Sensitivity is the Content Classifier's rubric selector.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Config holds all application configuration.
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServerName      string
	InstanceID      string

	// Data Configuration
	DataDir string // Data directory for the SQLite task store

	// LLM Client
	LLMProvider           LLMProvider
	LLMDeepSeekAPIKey     string
	LLMOpenRouterAPIKey   string
	LLMZhipuAPIKey        string
	LLMDeepSeekModel      string
	LLMOpenRouterModel    string
	LLMZhipuModel         string
	LLMOpenRouterSiteURL  string
	LLMOpenRouterSiteName string

	// Source Adapter
	HNStoryLimit      int
	HNTimeWindowHours int

	// Translator/Summarizer
	SummaryMaxLength int

	// Batch Executor
	TaskBatchSize     int
	MaxRetryCount     int
	BatchConcurrency  int
	BatchDeadline     time.Duration

	// Content Classifier
	EnableContentFilter      bool
	ContentFilterSensitivity Sensitivity

	// Git sink
	GitHubEnabled bool
	GitHubToken   string
	TargetRepo    string
	TargetBranch  string

	// Chat sink
	TelegramEnabled   bool
	TelegramBotToken  string
	TelegramChannelID int64
	TelegramBatchSize int

	// Terminal sink / test mode
	LocalTestMode bool

	// Content Extractor crawler fallback
	CrawlerAPIURL   string
	CrawlerAPIToken string

	// Optional secondary log sink
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	channelID, _ := strconv.ParseInt(getEnv(EnvTelegramChannelID, "0"), 10, 64)

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		ServerName:      getEnv(EnvServerName, ""),
		InstanceID:      getEnv(EnvInstanceID, ""),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		LLMProvider:           LLMProvider(strings.ToLower(getEnv(EnvLLMProvider, ""))),
		LLMDeepSeekAPIKey:     getEnv(EnvLLMDeepSeekAPIKey, ""),
		LLMOpenRouterAPIKey:   getEnv(EnvLLMOpenRouterAPIKey, ""),
		LLMZhipuAPIKey:        getEnv(EnvLLMZhipuAPIKey, ""),
		LLMDeepSeekModel:      getEnv(EnvLLMDeepSeekModel, "deepseek-chat"),
		LLMOpenRouterModel:    getEnv(EnvLLMOpenRouterModel, "openai/gpt-4o-mini"),
		LLMZhipuModel:         getEnv(EnvLLMZhipuModel, "glm-4-flash"),
		LLMOpenRouterSiteURL:  getEnv(EnvLLMOpenRouterSiteURL, ""),
		LLMOpenRouterSiteName: getEnv(EnvLLMOpenRouterSiteName, ""),

		HNStoryLimit:      getIntEnv(EnvHNStoryLimit, 30),
		HNTimeWindowHours: getIntEnv(EnvHNTimeWindowHours, 24),

		SummaryMaxLength: getIntEnv(EnvSummaryMaxLength, 300),

		TaskBatchSize:    getIntEnv(EnvTaskBatchSize, 6),
		MaxRetryCount:    getIntEnv(EnvMaxRetryCount, 3),
		BatchConcurrency: getIntEnv(EnvBatchConcurrency, 5),
		BatchDeadline:    getDurationEnv(EnvBatchDeadline, 4*time.Minute),

		EnableContentFilter:      getBoolEnv(EnvEnableContentFilter, false),
		ContentFilterSensitivity: Sensitivity(strings.ToLower(getEnv(EnvContentFilterSensitivity, string(SensitivityMedium)))),

		GitHubEnabled: getBoolEnv(EnvGitHubEnabled, false),
		GitHubToken:   getEnv(EnvGitHubToken, ""),
		TargetRepo:    getEnv(EnvTargetRepo, ""),
		TargetBranch:  getEnv(EnvTargetBranch, "main"),

		TelegramEnabled:   getBoolEnv(EnvTelegramEnabled, false),
		TelegramBotToken:  getEnv(EnvTelegramBotToken, ""),
		TelegramChannelID: channelID,
		TelegramBatchSize: getIntEnv(EnvTelegramBatchSize, 2),

		LocalTestMode: getBoolEnv(EnvLocalTestMode, false),

		CrawlerAPIURL:   getEnv(EnvCrawlerAPIURL, ""),
		CrawlerAPIToken: getEnv(EnvCrawlerAPIToken, ""),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks every configuration value and returns a single joined
// error listing every problem, never just the first one found.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("DIGEST_PORT is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DIGEST_DATA_DIR is required"))
	}

	switch c.LLMProvider {
	case ProviderDeepSeek:
		if c.LLMDeepSeekAPIKey == "" {
			errs = append(errs, errors.New("LLM_DEEPSEEK_API_KEY is required when LLM_PROVIDER=deepseek"))
		}
	case ProviderOpenRouter:
		if c.LLMOpenRouterAPIKey == "" {
			errs = append(errs, errors.New("LLM_OPENROUTER_API_KEY is required when LLM_PROVIDER=openrouter"))
		}
	case ProviderZhipu:
		if c.LLMZhipuAPIKey == "" {
			errs = append(errs, errors.New("LLM_ZHIPU_API_KEY is required when LLM_PROVIDER=zhipu"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of deepseek, openrouter, zhipu, got %q", c.LLMProvider))
	}

	if c.HNStoryLimit < 1 || c.HNStoryLimit > 100 {
		errs = append(errs, fmt.Errorf("HN_STORY_LIMIT must be between 1 and 100, got %d", c.HNStoryLimit))
	}
	if c.HNTimeWindowHours < 1 || c.HNTimeWindowHours > 168 {
		errs = append(errs, fmt.Errorf("HN_TIME_WINDOW_HOURS must be between 1 and 168, got %d", c.HNTimeWindowHours))
	}
	if c.SummaryMaxLength < 50 || c.SummaryMaxLength > 1000 {
		errs = append(errs, fmt.Errorf("SUMMARY_MAX_LENGTH must be between 50 and 1000, got %d", c.SummaryMaxLength))
	}
	if c.TaskBatchSize < 1 || c.TaskBatchSize > 10 {
		errs = append(errs, fmt.Errorf("TASK_BATCH_SIZE must be between 1 and 10, got %d", c.TaskBatchSize))
	}
	if c.MaxRetryCount < 0 || c.MaxRetryCount > 10 {
		errs = append(errs, fmt.Errorf("MAX_RETRY_COUNT must be between 0 and 10, got %d", c.MaxRetryCount))
	}
	if c.BatchConcurrency < 1 || c.BatchConcurrency > 20 {
		errs = append(errs, fmt.Errorf("BATCH_CONCURRENCY must be between 1 and 20, got %d", c.BatchConcurrency))
	}
	if c.BatchDeadline < time.Minute {
		errs = append(errs, fmt.Errorf("BATCH_DEADLINE must be at least 1m, got %s", c.BatchDeadline))
	}

	if c.EnableContentFilter {
		switch c.ContentFilterSensitivity {
		case SensitivityLow, SensitivityMedium, SensitivityHigh:
		default:
			errs = append(errs, fmt.Errorf("CONTENT_FILTER_SENSITIVITY must be one of low, medium, high, got %q", c.ContentFilterSensitivity))
		}
	}

	if c.GitHubEnabled {
		if c.GitHubToken == "" {
			errs = append(errs, errors.New("GITHUB_TOKEN is required when GITHUB_ENABLED=true"))
		}
		if c.TargetRepo == "" {
			errs = append(errs, errors.New("TARGET_REPO is required when GITHUB_ENABLED=true"))
		} else if !strings.Contains(c.TargetRepo, "/") {
			errs = append(errs, fmt.Errorf("TARGET_REPO must be in \"owner/repo\" form, got %q", c.TargetRepo))
		}
	}

	if c.TelegramEnabled {
		if c.TelegramBotToken == "" {
			errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED=true"))
		}
		if c.TelegramChannelID == 0 {
			errs = append(errs, errors.New("TELEGRAM_CHANNEL_ID is required when TELEGRAM_ENABLED=true"))
		}
		if c.TelegramBatchSize < 1 || c.TelegramBatchSize > 10 {
			errs = append(errs, fmt.Errorf("TELEGRAM_BATCH_SIZE must be between 1 and 10, got %d", c.TelegramBatchSize))
		}
	}

	if !c.GitHubEnabled && !c.TelegramEnabled && !c.LocalTestMode {
		errs = append(errs, errors.New("at least one publisher must be enabled (GITHUB_ENABLED, TELEGRAM_ENABLED, or LOCAL_TEST_MODE)"))
	}

	if c.BetterStackEnabled && c.BetterStackToken == "" {
		errs = append(errs, errors.New("DIGEST_BETTERSTACK_TOKEN is required when DIGEST_BETTERSTACK_ENABLED=true"))
	}

	if c.MetricsAuthEnabled {
		if c.MetricsPassword == "" {
			errs = append(errs, errors.New("DIGEST_METRICS_PASSWORD is required when DIGEST_METRICS_AUTH_ENABLED=true"))
		}
		if strings.TrimSpace(c.MetricsUsername) == "" {
			errs = append(errs, errors.New("DIGEST_METRICS_USERNAME is required when DIGEST_METRICS_AUTH_ENABLED=true"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsBetterStackEnabled returns true if the optional Better Stack log sink is enabled.
func (c *Config) IsBetterStackEnabled() bool {
	return c.BetterStackEnabled
}

// IsMetricsAuthEnabled returns true if Basic Auth is enabled for the /metrics endpoint.
func (c *Config) IsMetricsAuthEnabled() bool {
	return c.MetricsAuthEnabled
}

// LLMAPIKey returns the API key for the currently selected provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case ProviderDeepSeek:
		return c.LLMDeepSeekAPIKey
	case ProviderOpenRouter:
		return c.LLMOpenRouterAPIKey
	case ProviderZhipu:
		return c.LLMZhipuAPIKey
	default:
		return ""
	}
}

// LLMModel returns the model name for the currently selected provider.
func (c *Config) LLMModel() string {
	switch c.LLMProvider {
	case ProviderDeepSeek:
		return c.LLMDeepSeekModel
	case ProviderOpenRouter:
		return c.LLMOpenRouterModel
	case ProviderZhipu:
		return c.LLMZhipuModel
	default:
		return ""
	}
}

// ----------------------------------------------------------------------------
// Helper Methods
// ----------------------------------------------------------------------------

// getEnv retrieves an environment variable with fallback to a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable with fallback to a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable with fallback to a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable with fallback to a default value.
// Accepts "true"/"1"/"yes" and "false"/"0"/"no" (case-insensitive).
func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// getDefaultDataDir returns a platform-specific default data directory.
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite task store file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "digest.db")
}
