// Worker and cron HTTP handlers.
//
// This file exposes the externally-triggered job surface:
//   - GET  /worker/status    (queue depth + liveness)
//   - POST /worker/process   (drain the backlog)
//   - POST /cron/analytics   (hourly rollup + retention pruning)
//   - GET  /cron/analytics   (manual invocation, identical behavior)
//
// The cron endpoints optionally require `Authorization: Bearer <CRON_SECRET>`
// when a secret is configured; an empty secret leaves them open for local use.
package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/positonic/go-message-gateway/internal/services"
	"github.com/positonic/go-message-gateway/internal/utils"
)

// WorkerStatusResponse is the liveness payload of GET /worker/status.
type WorkerStatusResponse struct {
	Status    string `json:"status"`
	QueueSize int64  `json:"queueSize"`
	Timestamp string `json:"timestamp"`
}

// WorkerProcessStats merges drain counters with the diagnostics snapshot.
type WorkerProcessStats struct {
	Processed           int         `json:"processed"`
	Failed              int         `json:"failed"`
	Requeued            int         `json:"requeued"`
	DeadLettered        int         `json:"deadLettered"`
	QueueStats          interface{} `json:"queueStats"`
	CacheStats          interface{} `json:"cacheStats"`
	CircuitBreakerStats interface{} `json:"circuitBreakerStats"`
}

// WorkerProcessResponse is the payload of POST /worker/process.
type WorkerProcessResponse struct {
	Success bool               `json:"success"`
	Stats   WorkerProcessStats `json:"stats"`
}

// AnalyticsCleanup reports the retention pruning counts.
type AnalyticsCleanup struct {
	Analytics int64 `json:"analytics"`
	Metrics   int64 `json:"metrics"`
}

// AnalyticsResponse is the payload of the /cron/analytics endpoints.
type AnalyticsResponse struct {
	Success   bool                       `json:"success"`
	Message   string                     `json:"message"`
	Results   []services.ConfigRunResult `json:"results"`
	Cleanup   AnalyticsCleanup           `json:"cleanup"`
	Timestamp string                     `json:"timestamp"`
}

// WorkerStatus godoc
// @ID          workerStatus
// @Summary     Worker liveness and queue depth
// @Tags        Worker
// @Produce     json
//
// @Success     200  {object}  handlers.WorkerStatusResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /worker/status [get]
func (h *Handlers) WorkerStatus(c *gin.Context) {
	report, err := h.dispatchSvc.Status(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, WorkerStatusResponse{
		Status:    "active",
		QueueSize: report.Queue.Size,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WorkerProcess godoc
// @ID          workerProcess
// @Summary     Drain the message backlog
// @Description Claims up to `batch` due messages and dispatches them. Failed messages are requeued with backoff or dead-lettered.
// @Tags        Worker
// @Produce     json
//
// @Param       batch  query  int  false  "Batch size override"  minimum(1) maximum(500)
//
// @Success     200  {object}  handlers.WorkerProcessResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Drain failed"
// @Router      /worker/process [post]
func (h *Handlers) WorkerProcess(c *gin.Context) {
	batch := utils.AtoiDefault(c.Query("batch"), h.drainBatch)
	if batch < 1 {
		batch = h.drainBatch
	}
	if batch > 500 {
		batch = 500
	}

	res, err := h.dispatchSvc.Drain(c.Request.Context(), batch)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDrainFailed, err.Error())
		return
	}
	report, err := h.dispatchSvc.Status(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDrainFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, WorkerProcessResponse{
		Success: true,
		Stats: WorkerProcessStats{
			Processed:           res.Processed,
			Failed:              res.Failed,
			Requeued:            res.Requeued,
			DeadLettered:        res.DeadLettered,
			QueueStats:          report.Queue,
			CacheStats:          report.Caches,
			CircuitBreakerStats: report.Breakers,
		},
	})
}

// RunAnalytics godoc
// @ID          runAnalytics
// @Summary     Run the hourly analytics rollup and retention pruning
// @Description Aggregates the previous hour per active config (idempotent) and prunes aggregates past the retention window. Reachable via POST (cron) and GET (manual).
// @Tags        Worker
// @Produce     json
//
// @Param       Authorization  header  string  false  "Bearer CRON_SECRET (required when configured)"
//
// @Success     200  {object}  handlers.AnalyticsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Bad cron secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Analytics run failed"
// @Router      /cron/analytics [post]
// @Router      /cron/analytics [get]
func (h *Handlers) RunAnalytics(c *gin.Context) {
	if !h.cronAuthorized(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid cron secret")
		return
	}

	report, err := h.analyticsSvc.Run(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeAnalyticsFailed, err.Error())
		return
	}

	msg := "analytics aggregation completed"
	if report.Failed > 0 {
		msg = "analytics aggregation completed with errors"
	}
	ok(c, http.StatusOK, AnalyticsResponse{
		Success: report.Failed == 0,
		Message: msg,
		Results: report.Configs,
		Cleanup: AnalyticsCleanup{
			Analytics: report.PrunedBuckets,
			Metrics:   report.PrunedMetrics,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// cronAuthorized validates the optional bearer secret in constant time.
func (h *Handlers) cronAuthorized(c *gin.Context) bool {
	if h.cronSecret == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	provided := strings.TrimPrefix(auth, "Bearer ")
	if provided == auth {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.cronSecret)) == 1
}
