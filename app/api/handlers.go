package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
	"github.com/postwire/postwire/app/distribute"
	"github.com/postwire/postwire/app/ingest"
)

// maxWebhookBody caps inbound webhook payloads at 1 MB.
const maxWebhookBody = 1 << 20

type Handler struct {
	orchestrator  *distribute.Orchestrator
	webhooks      *ingest.WebhookProcessor
	jobs          database.QueueJobRepository
	content       database.InboundContentRepository
	subscriptions database.FeedSubscriptionRepository
	events        database.WebhookEventRepository
	registry      *connector.Registry
	httpClient    *http.Client
	userAgent     string
	version       string
	startedAt     time.Time
}

func NewHandler(orchestrator *distribute.Orchestrator, webhooks *ingest.WebhookProcessor,
	jobs database.QueueJobRepository, content database.InboundContentRepository,
	subscriptions database.FeedSubscriptionRepository, events database.WebhookEventRepository,
	registry *connector.Registry, httpClient *http.Client, userAgent, version string) *Handler {
	return &Handler{
		orchestrator:  orchestrator,
		webhooks:      webhooks,
		jobs:          jobs,
		content:       content,
		subscriptions: subscriptions,
		events:        events,
		registry:      registry,
		httpClient:    httpClient,
		userAgent:     userAgent,
		version:       version,
		startedAt:     time.Now().UTC(),
	}
}

func (h *Handler) ReceiveWebhook(c *gin.Context) {
	platform := c.Param("platform")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if signature == "" {
		signature = c.GetHeader("X-Webhook-Signature")
	}

	result, err := h.webhooks.Process(platform, body, signature)
	switch {
	case errors.Is(err, ingest.ErrUnknownPlatform):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown webhook platform"})
		return
	case errors.Is(err, ingest.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type distributeRequest struct {
	PostID       string   `json:"post_id" binding:"required"`
	Platforms    []string `json:"platforms" binding:"required"`
	ScheduledFor string   `json:"scheduled_for"`
}

func (h *Handler) CreateDistribution(c *gin.Context) {
	var req distributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_for must be RFC3339"})
			return
		}
		scheduledFor = &parsed
	}

	status, err := h.orchestrator.Distribute(c.Request.Context(), req.PostID, req.Platforms, scheduledFor)
	if err != nil {
		var notFound *distribute.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, status)
}

func (h *Handler) ListDistributions(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	distributions, err := h.orchestrator.ListDistributions(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_distributions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list distributions"})
		return
	}
	responses := toDistributionResponses(distributions)
	c.JSON(http.StatusOK, gin.H{"distributions": responses, "count": len(responses)})
}

func (h *Handler) GetDistribution(c *gin.Context) {
	status, err := h.orchestrator.GetStatus(c.Param("id"))
	if err != nil {
		h.respondDistributionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) RetryDistribution(c *gin.Context) {
	status, err := h.orchestrator.RetryFailedPlatforms(c.Param("id"))
	if err != nil {
		h.respondDistributionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) CancelDistribution(c *gin.Context) {
	status, err := h.orchestrator.Cancel(c.Param("id"))
	if err != nil {
		h.respondDistributionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) respondDistributionError(c *gin.Context, err error) {
	var notFound *distribute.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	slog.Error("Distribution operation failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "distribution operation failed"})
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	jobs, err := h.jobs.GetJobs(c.Query("status"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	responses := toJobResponses(jobs)
	c.JSON(http.StatusOK, gin.H{"jobs": responses, "count": len(responses)})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, toJobResponse(*job))
}

// CancelJob cancels a single queue job. Only pending jobs can be cancelled;
// anything already picked up runs to its conclusion.
func (h *Handler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		slog.Error("Database error", "operation", "cancel_job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	cancelled, err := h.jobs.Cancel(jobID, time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "cancel_job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not pending", "status": job.Status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "status": database.JobStatusCancelled})
}

func (h *Handler) ListContent(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	content, err := h.content.GetRecentContent(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_content", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list content"})
		return
	}
	responses := toContentResponses(content)
	c.JSON(http.StatusOK, gin.H{"content": responses, "count": len(responses)})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	subscriptions, err := h.subscriptions.GetActiveSubscriptions()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list feeds"})
		return
	}
	responses := toFeedResponses(subscriptions)
	c.JSON(http.StatusOK, gin.H{"feeds": responses, "count": len(responses)})
}

type addFeedRequest struct {
	Platform string `json:"platform" binding:"required"`
	FeedURL  string `json:"feed_url"`
	SiteURL  string `json:"site_url"`
}

// AddFeed subscribes to a feed. When only a site URL is given the feed is
// discovered from the page.
func (h *Handler) AddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feedURL := req.FeedURL
	if feedURL == "" {
		if req.SiteURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "feed_url or site_url is required"})
			return
		}
		feeds, err := ingest.DiscoverFeeds(c.Request.Context(), h.httpClient, h.userAgent, req.SiteURL)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if len(feeds) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no feeds found at site"})
			return
		}
		feedURL = feeds[0]
	}

	now := time.Now().UTC()
	subscription := &database.FeedSubscription{
		ID:        uuid.NewString(),
		Platform:  req.Platform,
		FeedURL:   feedURL,
		SiteURL:   req.SiteURL,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.subscriptions.UpsertSubscription(subscription); err != nil {
		slog.Error("Database error", "operation", "add_feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": subscription.ID, "feed_url": feedURL, "platform": req.Platform})
}

func (h *Handler) RemoveFeed(c *gin.Context) {
	removed, err := h.subscriptions.DeactivateSubscription(c.Param("id"), time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "remove_feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove subscription"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type discoverRequest struct {
	SiteURL string `json:"site_url" binding:"required"`
}

func (h *Handler) DiscoverFeeds(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feeds, err := ingest.DiscoverFeeds(c.Request.Context(), h.httpClient, h.userAgent, req.SiteURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feeds": feeds, "count": len(feeds)})
}

func (h *Handler) ListPlatforms(c *gin.Context) {
	type platformInfo struct {
		Platform     string                 `json:"platform"`
		DisplayName  string                 `json:"display_name"`
		Category     connector.Category     `json:"category"`
		Capabilities connector.Capabilities `json:"capabilities"`
	}

	var platforms []platformInfo
	for _, target := range h.registry.All() {
		platforms = append(platforms, platformInfo{
			Platform:     target.Platform(),
			DisplayName:  target.DisplayName(),
			Category:     target.Category(),
			Capabilities: target.Capabilities(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"platforms": platforms, "count": len(platforms)})
}

func (h *Handler) GetPlatformHealth(c *gin.Context) {
	type platformHealth struct {
		Platform  string           `json:"platform"`
		Status    connector.Status `json:"status"`
		RateLimit any              `json:"rate_limit,omitempty"`
	}

	var results []platformHealth
	for _, target := range h.registry.All() {
		status := target.Health(c.Request.Context())
		results = append(results, platformHealth{
			Platform:  target.Platform(),
			Status:    status,
			RateLimit: target.RateLimit(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"platforms": results})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)}

	if jobStats, err := h.jobs.GetStats(); err == nil {
		stats["jobs"] = jobStats
	}
	if eventStats, err := h.events.GetEventStats(); err == nil {
		stats["webhook_events"] = eventStats
	}
	if count, err := h.content.GetContentCount(); err == nil {
		stats["ingested_content"] = count
	}
	stats["platforms"] = h.registry.Platforms()

	c.JSON(http.StatusOK, stats)
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
