package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-inbox/internal/cache"
	"github.com/lysyi3m/rss-inbox/internal/database"
	"github.com/lysyi3m/rss-inbox/internal/feed"
	"github.com/lysyi3m/rss-inbox/internal/ingest"
	"github.com/lysyi3m/rss-inbox/internal/reader"
	"github.com/lysyi3m/rss-inbox/internal/tasks"
)

func NewHandler(feeds FeedQueries, ingester Ingester, readerService ReaderService,
	scheduler tasks.TaskSchedulerInterface, rssCache cache.CacheInterface, cacheTTL time.Duration,
	version string) *Handler {
	return &Handler{
		feeds:     feeds,
		ingester:  ingester,
		reader:    readerService,
		scheduler: scheduler,
		generator: NewRSSGenerator(),
		rssCache:  rssCache,
		cacheTTL:  cacheTTL,
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feeds, err := h.feeds.ListFeeds(c.Request.Context()); err == nil {
		health["feeds"] = len(feeds)
	} else {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	ctx := c.Request.Context()

	feeds, err := h.feeds.ListFeeds(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		resp := toFeedResponse(f)
		if count, err := h.feeds.CountEntriesForFeed(ctx, f.ID); err == nil {
			resp.EntryCount = &count
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": out,
		"total": len(out),
	})
}

// CreateFeed registers a feed by URL and queues its first sync when it is new.
func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := feed.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, created, err := h.ingester.RegisterFeed(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, ingest.ErrFeedUnavailable) {
			slog.Warn("Feed registration failed", "url", req.URL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Feed unavailable", "details": err.Error()})
			return
		}
		slog.Error("Database error", "operation", "register_feed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !created {
		c.JSON(http.StatusOK, toFeedResponse(f))
		return
	}

	if err := h.scheduler.EnqueueTask(tasks.NewSyncFeedTask(f, h.ingester)); err != nil {
		slog.Warn("Failed to enqueue SyncFeedTask", "feed_id", f.ID, "error", err)
	}

	c.JSON(http.StatusCreated, toFeedResponse(f))
}

func (h *Handler) SyncFeed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	f, err := h.feeds.GetFeed(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	task := tasks.NewSyncFeedTask(*f, h.ingester)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing sync task", "feed_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sub, added, err := h.reader.Subscribe(c.Request.Context(), userID, req.FeedID)
	switch {
	case errors.Is(err, reader.ErrFeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	case errors.Is(err, reader.ErrAlreadySubscribed):
		c.JSON(http.StatusConflict, gin.H{"error": "Already subscribed", "subscription": toSubscriptionResponse(sub)})
		return
	case err != nil:
		slog.Error("Subscribe failed", "user_id", userID, "feed_id", req.FeedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subscribe failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription": toSubscriptionResponse(sub),
		"entries":      added,
	})
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	feedID, ok := paramID(c, "feed_id")
	if !ok {
		return
	}

	err := h.reader.Unsubscribe(c.Request.Context(), userID, feedID)
	if errors.Is(err, reader.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	if err != nil {
		slog.Error("Unsubscribe failed", "user_id", userID, "feed_id", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unsubscribe failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RefreshSubscription syncs the subscription's feed in the request and
// reports what changed. With ?async=true the sync is queued instead.
func (h *Handler) RefreshSubscription(c *gin.Context) {
	sub, ok := h.subscription(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		task := tasks.NewSyncSubscriptionTask(sub, h.ingester)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing refresh task", "subscription_id", sub.ID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to enqueue refresh task",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"task": gin.H{
				"id":   task.ID,
				"type": task.Type,
			},
		})
		return
	}

	result, err := h.ingester.SyncSubscription(c.Request.Context(), sub)
	if errors.Is(err, ingest.ErrFeedUnavailable) {
		slog.Warn("Subscription refresh failed", "subscription_id", sub.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Feed unavailable", "details": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Subscription refresh failed", "subscription_id", sub.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
		return
	}

	h.invalidateRSS(c, sub.ID)
	c.JSON(http.StatusOK, toSyncResponse(result))
}

func (h *Handler) ListEntries(c *gin.Context) {
	sub, ok := h.subscription(c)
	if !ok {
		return
	}

	views, err := h.reader.ListEntries(c.Request.Context(), sub.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "subscription_id", sub.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]entryResponse, 0, len(views))
	for _, v := range views {
		entries = append(entries, toEntryResponse(v))
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *Handler) UpdateEntryState(c *gin.Context) {
	subID, ok := paramID(c, "id")
	if !ok {
		return
	}
	entryID, ok := paramID(c, "entry_id")
	if !ok {
		return
	}

	var req entryStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.reader.UpdateEntryState(c.Request.Context(), subID, entryID, database.EntryState{
		IsRead:     req.IsRead,
		IsFavorite: req.IsFavorite,
		IsArchived: req.IsArchived,
	})
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "update_entry_state", "subscription_id", subID, "entry_id", entryID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.invalidateRSS(c, subID)
	c.Status(http.StatusNoContent)
}

// GetSubscriptionRSS renders the subscription's unarchived entries as RSS 2.0.
func (h *Handler) GetSubscriptionRSS(c *gin.Context) {
	sub, ok := h.subscription(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := cache.SubscriptionRSSKey(sub.ID)

	if h.rssCache != nil {
		cached, hit, err := h.rssCache.Get(ctx, key)
		if err != nil {
			slog.Warn("Cache error", "key", key, "error", err)
		} else if hit {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(cached))
			return
		}
	}

	f, err := h.feeds.GetFeed(ctx, sub.FeedID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", sub.FeedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	views, err := h.reader.ListEntries(ctx, sub.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "subscription_id", sub.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	visible := make([]database.UserEntryView, 0, len(views))
	for _, v := range views {
		if !v.IsArchived {
			visible = append(visible, v)
		}
	}

	rss, err := h.generator.Run(*f, visible)
	if err != nil {
		slog.Error("RSS generation error", "subscription_id", sub.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if h.rssCache != nil {
		if err := h.rssCache.Set(ctx, key, rss, h.cacheTTL); err != nil {
			slog.Warn("Cache error", "key", key, "error", err)
		}
		c.Header("X-Cache", "MISS")
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(visible)))
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) invalidateRSS(c *gin.Context, subscriptionID int64) {
	if h.rssCache == nil {
		return
	}
	if err := h.rssCache.Delete(c.Request.Context(), cache.SubscriptionRSSKey(subscriptionID)); err != nil {
		slog.Warn("Cache invalidation failed", "subscription_id", subscriptionID, "error", err)
	}
}

func (h *Handler) subscription(c *gin.Context) (database.Subscription, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return database.Subscription{}, false
	}

	sub, err := h.reader.GetSubscription(c.Request.Context(), id)
	if errors.Is(err, reader.ErrSubscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return database.Subscription{}, false
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_subscription", "subscription_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return database.Subscription{}, false
	}

	return sub, true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " parameter"})
		return 0, false
	}
	return id, true
}
