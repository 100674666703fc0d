package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hn-digest/hn-digest-go/internal/ctxutil"
	"github.com/hn-digest/hn-digest-go/internal/digest"
	domerrors "github.com/hn-digest/hn-digest-go/internal/errors"
)

// triggerOverrides is the optional JSON body accepted by both trigger
// endpoints; a present Date overrides the "previous UTC day" default.
type triggerOverrides struct {
	Date string `json:"date"`
}

// setupRoutes registers every HTTP route named in the external
// interface: a health banner, the async and sync trigger endpoints, a
// task-status poll, the failed-article retry operation, and metrics.
func setupRoutes(router *gin.Engine, a *Application) {
	router.GET("/", a.healthBanner)
	router.HEAD("/", a.healthBanner)

	router.POST("/trigger-export", a.triggerExportAsync)
	router.POST("/trigger-export-sync", a.triggerExportSync)
	router.GET("/task-status", a.taskStatus)
	router.POST("/retry-failed-tasks", a.retryFailedTasks)

	metricsHandler := gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.IsMetricsAuthEnabled(), a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		metricsHandler)
}

func (a *Application) healthBanner(c *gin.Context) {
	c.String(http.StatusOK, "HackerNews Daily Digest is running\n")
}

// readOverride parses the optional JSON body shared by both trigger
// endpoints. A missing or empty body is not an error: it simply means
// no date override was requested.
func readOverride(c *gin.Context) (string, error) {
	if c.Request.ContentLength == 0 {
		return "", nil
	}
	var body triggerOverrides
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Date, nil
}

// triggerType reports which Trigger a request represents: a manual
// trigger when a date override was supplied, a cron-style trigger
// otherwise.
func triggerType(override string) digest.Trigger {
	if override != "" {
		return digest.TriggerManual
	}
	return digest.TriggerCron
}

// triggerExportAsync runs the invocation in the background and returns
// immediately, for callers (an external scheduler, an operator's
// fire-and-forget request) that don't need the outcome synchronously.
func (a *Application) triggerExportAsync(c *gin.Context) {
	override, err := readOverride(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}

	trigger := triggerType(override)
	bgCtx := ctxutil.PreserveTracing(c.Request.Context())

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})

	go func() {
		if err := a.stateMachine.Run(bgCtx, trigger, override); err != nil {
			a.logger.WithError(err).Warn("Background trigger invocation failed")
		}
	}()
}

// triggerExportSync runs the invocation synchronously and reports its
// outcome in the response body.
func (a *Application) triggerExportSync(c *gin.Context) {
	override, err := readOverride(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}

	trigger := triggerType(override)
	if err := a.stateMachine.Run(c.Request.Context(), trigger, override); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": domerrors.GetUserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "invocation completed"})
}

// taskStatus reports the Task Store snapshot for a date, defaulting to
// the same "previous UTC day" date the scheduler itself would resolve
// when no date query parameter is given.
func (a *Application) taskStatus(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		resolved, err := digest.ResolveDate(digest.TriggerCron, "", time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		date = resolved
	} else if _, err := digest.ResolveDate(digest.TriggerManual, date, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := a.db.Snapshot(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, domerrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no task for date " + date})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// retryFailedTasks resets every failed Article for a date back to
// pending with a bumped retry count, the one explicit retry operation
// named for operator-triggered recovery.
func (a *Application) retryFailedTasks(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		body, err := readOverride(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
			return
		}
		date = body
	}
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "date is required"})
		return
	}
	if _, err := digest.ResolveDate(digest.TriggerManual, date, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	retried, err := a.db.RetryFailed(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "retried": retried})
}
