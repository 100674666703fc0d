// Package app provides application initialization and lifecycle management
// for the daily-export engine.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
	"github.com/hn-digest/hn-digest-go/internal/batch"
	"github.com/hn-digest/hn-digest-go/internal/buildinfo"
	"github.com/hn-digest/hn-digest-go/internal/classify"
	"github.com/hn-digest/hn-digest-go/internal/config"
	"github.com/hn-digest/hn-digest-go/internal/digest"
	"github.com/hn-digest/hn-digest-go/internal/extract"
	"github.com/hn-digest/hn-digest-go/internal/fetch"
	"github.com/hn-digest/hn-digest-go/internal/hn"
	"github.com/hn-digest/hn-digest-go/internal/llm"
	"github.com/hn-digest/hn-digest-go/internal/logger"
	"github.com/hn-digest/hn-digest-go/internal/metrics"
	"github.com/hn-digest/hn-digest-go/internal/publish"
	"github.com/hn-digest/hn-digest-go/internal/storage"
	"github.com/hn-digest/hn-digest-go/internal/translate"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg          *config.Config
	logger       *logger.Logger
	db           *storage.DB
	metrics      *metrics.Metrics
	registry     *prometheus.Registry
	stateMachine *digest.StateMachine
	server       *http.Server
	wg           sync.WaitGroup
}

// Initialize creates and wires every component of the daily-export
// engine: the Source Adapter, Content Extractor, LLM Client and its
// Translator/Summarizer and Content Classifier consumers, the Batch
// Executor, the Aggregator, the Publisher fan-out, and the State
// Machine that drives them all, then builds the HTTP surface on top.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	betterStackToken := ""
	if cfg.IsBetterStackEnabled() {
		betterStackToken = cfg.BetterStackToken
	}
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    betterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
		Version:             buildinfo.Version,
	})
	log = log.WithField("service", "hn-digest-go")
	if cfg.ServerName != "" {
		log = log.WithField("server_name", cfg.ServerName)
	}
	if cfg.InstanceID != "" {
		log = log.WithField("instance_id", cfg.InstanceID)
	}

	log.Info("Initializing application")
	log.WithField("git_sink", cfg.GitHubEnabled).
		WithField("chat_sink", cfg.TelegramEnabled).
		WithField("terminal_sink", cfg.LocalTestMode).
		WithField("content_filter", cfg.EnableContentFilter).
		WithField("betterstack", cfg.IsBetterStackEnabled()).
		WithField("metrics_auth", cfg.IsMetricsAuthEnabled()).
		Info("Feature status")

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("app: opening task store: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	fetcher := fetch.New(config.FetchRequest).SetMetrics(m)
	source := hn.New(fetcher, config.FetchMaxRetries, config.FetchRetryInitial)
	extractor := extract.New(fetcher, config.FetchRequest, cfg.CrawlerAPIURL, cfg.CrawlerAPIToken)
	llmClient := llm.New(cfg).SetMetrics(m)
	translator := translate.New(llmClient, llm.Provider(cfg.LLMProvider), cfg.LLMModel())

	var classifier *classify.Classifier
	if cfg.EnableContentFilter {
		classifier = classify.New(llmClient, llm.Provider(cfg.LLMProvider), cfg.LLMModel(), cfg.ContentFilterSensitivity, config.ClassifierDeadline)
	}

	executor := batch.New(db, extractor, translator, source, cfg.SummaryMaxLength, cfg.BatchConcurrency, cfg.BatchDeadline).SetMetrics(m)
	aggregator := aggregate.New(db)

	pubGroup := publish.NewGroup().SetMetrics(m)
	if cfg.GitHubEnabled {
		gitClient := publish.NewGitHubClient(cfg.GitHubToken)
		gitSink, err := publish.NewGitSink(gitClient, cfg.TargetRepo, cfg.TargetBranch)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: building git sink: %w", err)
		}
		pubGroup.AddHard(gitSink)
	}
	if cfg.TelegramEnabled {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: building telegram bot: %w", err)
		}
		pubGroup.AddSoft(publish.NewChatSink(bot, cfg.TelegramChannelID, config.ChatInterMessageDelay, cfg.TelegramBatchSize))
	}
	if cfg.LocalTestMode {
		pubGroup.AddSoft(publish.NewTerminalSink(os.Stdout))
	}

	var contentClassifier digest.ContentClassifier
	if classifier != nil {
		contentClassifier = classifier
	}

	stateMachine := digest.New(db, db, source, executor, aggregator, pubGroup, contentClassifier,
		cfg.HNTimeWindowHours, cfg.HNStoryLimit, cfg.TaskBatchSize)
	stateMachine.SetMetrics(m)

	a := &Application{
		cfg:          cfg,
		logger:       log,
		db:           db,
		metrics:      m,
		registry:     registry,
		stateMachine: stateMachine,
	}

	router := a.setupRouter()
	a.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.HTTPRead,
		WriteTimeout: config.HTTPWrite,
		IdleTimeout:  config.HTTPIdle,
	}

	return a, nil
}

// Run starts the background scheduler and the HTTP server, then blocks
// until a shutdown signal arrives and drains both.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts the self-contained scheduler loop, so the
// service makes progress on its own even without an external cron
// wrapper hitting /trigger-export.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.schedulerLoop(ctx)
	})
}

// schedulerLoop invokes the State Machine once on startup, then every
// config.TriggerInterval thereafter, mirroring the "external scheduler,
// every ~10 minutes" cadence for deployments that run this service as a
// long-lived process rather than behind a separate cron trigger.
func (a *Application) schedulerLoop(ctx context.Context) {
	a.runScheduledTrigger(ctx)
	a.refreshTaskGauge(ctx)

	ticker := time.NewTicker(config.TriggerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runScheduledTrigger(ctx)
			a.refreshTaskGauge(ctx)
		}
	}
}

func (a *Application) runScheduledTrigger(ctx context.Context) {
	if err := a.stateMachine.Run(ctx, digest.TriggerCron, ""); err != nil {
		a.logger.WithError(err).Warn("Scheduled trigger invocation failed")
	}
}

// refreshTaskGauge recomputes the task-state gauge from the store,
// covering every TaskStatus even when its current count is zero so a
// status that just emptied out doesn't linger at its last nonzero value.
func (a *Application) refreshTaskGauge(ctx context.Context) {
	counts, err := a.db.CountTasksByStatus(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Refreshing task gauge failed")
		return
	}

	for _, status := range []storage.TaskStatus{
		storage.TaskInit, storage.TaskListFetched, storage.TaskProcessing,
		storage.TaskAggregating, storage.TaskPublished, storage.TaskFailed,
	} {
		a.metrics.SetTasksByStatus(string(status), counts[status])
	}
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown performs graceful shutdown of the HTTP server and resources.
// Must be called after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// setupRouter builds the gin engine and registers every route.
func (a *Application) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	setupRoutes(router, a)

	return router
}
