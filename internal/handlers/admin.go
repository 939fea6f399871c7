package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"praxis-website/internal/cache"
	"praxis-website/internal/contact"
	"praxis-website/internal/content"
	"praxis-website/internal/database"
	"praxis-website/internal/models"
	"praxis-website/internal/ratelimit"
	"praxis-website/internal/scheduler"
	"praxis-website/internal/search"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QueueStats reports the notification queue
type QueueStats interface {
	GetQueueStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db        *database.GormDB
	contact   *contact.Service
	search    *search.SubmissionIndex
	cache     *cache.Manager
	content   *content.Provider
	scheduler *scheduler.Scheduler
	queue     QueueStats
	limiter   *ratelimit.RateLimiter
	logger    *zap.Logger
}

// AdminDeps collects the services the admin API operates on. Nil services
// make their endpoints answer 503.
type AdminDeps struct {
	DB        *database.GormDB
	Contact   *contact.Service
	Search    *search.SubmissionIndex
	Cache     *cache.Manager
	Content   *content.Provider
	Scheduler *scheduler.Scheduler
	Queue     QueueStats
	Limiter   *ratelimit.RateLimiter
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps AdminDeps, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		db:        deps.DB,
		contact:   deps.Contact,
		search:    deps.Search,
		cache:     deps.Cache,
		content:   deps.Content,
		scheduler: deps.Scheduler,
		queue:     deps.Queue,
		limiter:   deps.Limiter,
		logger:    logger,
	}
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not available"})
}

// GetSubmissions returns the newest submissions
func (h *AdminHandler) GetSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.contact.RecentSubmissions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": records,
		"count":       len(records),
	})
}

// SearchSubmissions looks submissions up in the search index
func (h *AdminHandler) SearchSubmissions(c *gin.Context) {
	if !h.search.Enabled() {
		unavailable(c, "Search")
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	result, err := h.search.Search(c.Request.Context(), search.SearchRequest{
		Query:  c.Query("q"),
		Reason: c.Query("reason"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Warn("Admin: submission search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	records, err := h.db.FormRequestsByIDs(c.Request.Context(), result.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions":        records,
		"count":              len(records),
		"total_hits":         result.TotalHits,
		"processing_time_ms": result.ProcessingTime,
	})
}

// GetStats returns submission statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := h.contact.Statistics(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetNotificationStats returns the notification queue status
func (h *AdminHandler) GetNotificationStats(c *gin.Context) {
	if h.queue == nil {
		unavailable(c, "Notification worker")
		return
	}
	stats, err := h.queue.GetQueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerWarm starts a cache warm in the background
func (h *AdminHandler) TriggerWarm(c *gin.Context) {
	if h.scheduler == nil {
		unavailable(c, "Cache warmer")
		return
	}
	clear := c.Query("clear") == "1" || c.Query("clear") == "true"

	h.logger.Info("Admin: Manual cache warm requested", zap.Bool("clear", clear))

	// Run in goroutine to avoid blocking
	go func() {
		report, ran := h.scheduler.RunWarmNow(context.Background(), clear)
		if !ran {
			h.logger.Info("Admin: Cache warm skipped, another run is active")
			return
		}
		if report != nil {
			h.logger.Info("Admin: Manual cache warm completed",
				zap.Int("pages", report.PagesWarmed),
				zap.Int("failed", report.Failed()))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Cache warm started",
		"clear":   clear,
	})
}

// InvalidateCache removes the cached responses carrying any of the given tags
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	if h.cache == nil {
		unavailable(c, "Response cache")
		return
	}
	var req struct {
		Tags []string `json:"tags" binding:"required,min=1,dive,required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.cache.InvalidateTags(c.Request.Context(), req.Tags...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": n, "tags": req.Tags})
}

// ClearCache removes every cached response and content lookup
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if h.cache == nil {
		unavailable(c, "Response cache")
		return
	}
	ctx := c.Request.Context()
	n, err := h.cache.Clear(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.content != nil {
		if err := h.content.Clear(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// SetReasonActive activates or deactivates a contact reason
func (h *AdminHandler) SetReasonActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason, err := h.db.SetContactReasonActive(c.Request.Context(), uint(id), *req.IsActive)
	if err != nil {
		h.reasonError(c, err)
		return
	}
	h.invalidateReasons(c.Request.Context())
	c.JSON(http.StatusOK, reason)
}

// DeleteReason removes a contact reason that no submission references
func (h *AdminHandler) DeleteReason(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.db.DeleteContactReason(c.Request.Context(), uint(id)); err != nil {
		h.reasonError(c, err)
		return
	}
	h.invalidateReasons(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) reasonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrReasonNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrReasonInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// invalidateReasons drops every response listing contact reasons
func (h *AdminHandler) invalidateReasons(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if _, err := h.cache.InvalidateTags(ctx, "contact"); err != nil {
		h.logger.Warn("Admin: failed to invalidate contact responses", zap.Error(err))
	}
}

// RunCleanup deletes finished notification jobs past retention
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	if h.scheduler == nil {
		unavailable(c, "Cleanup")
		return
	}
	dryRun := c.Query("dry_run") == "1" || c.Query("dry_run") == "true"

	h.logger.Info("Admin: Running cleanup", zap.Bool("dry_run", dryRun))

	result, err := h.scheduler.RunCleanupNow(c.Request.Context(), dryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRateLimitStats returns the contact form rate limiter statistics
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	if h.limiter == nil {
		unavailable(c, "Rate limiter")
		return
	}
	c.JSON(http.StatusOK, h.limiter.GetStats())
}
