package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/tasks"
)

func NewHandler(channelRepo database.ChannelRepository, broadcastRepo database.BroadcastRepository,
	jobRepo database.JobRepository, jobController JobControllerInterface,
	brk BreakerInterface, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		channelRepo:   channelRepo,
		broadcastRepo: broadcastRepo,
		jobRepo:       jobRepo,
		jobController: jobController,
		breaker:       brk,
		scheduler:     scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if channelCount, err := h.channelRepo.GetChannelCount(); err == nil {
		health["channels"] = channelCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if broadcastCounts, err := h.broadcastRepo.CountByStatus(); err == nil {
		stats["broadcasts"] = broadcastCounts
	}
	if jobCounts, err := h.jobRepo.CountByStatus(); err == nil {
		stats["jobs"] = jobCounts
	}
	stats["breaker"] = h.breaker.GetStatus()

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListChannels(c *gin.Context) {
	channels, err := h.channelRepo.GetActiveChannels()
	if err != nil {
		slog.Error("Database error", "operation", "list_channels", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(channels))
	for _, channel := range channels {
		list = append(list, map[string]interface{}{
			"id":                     channel.ID,
			"channel_id":             channel.ChannelID,
			"name":                   channel.Name,
			"url":                    channel.URL,
			"is_active":              channel.IsActive,
			"check_interval_minutes": channel.CheckIntervalMinutes,
			"last_checked_at":        channel.LastCheckedAt,
			"last_live_at":           channel.LastLiveAt,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"channels": list,
		"total":    len(list),
	})
}

type registerChannelRequest struct {
	ChannelID     string `json:"channel_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	URL           string `json:"url"`
	CheckInterval int    `json:"check_interval"`
}

func (h *Handler) APIRegisterChannel(c *gin.Context) {
	var req registerChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if !strings.HasPrefix(req.ChannelID, "UC") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id must be a canonical channel ID starting with UC"})
		return
	}
	if req.URL == "" {
		req.URL = "https://www.youtube.com/channel/" + req.ChannelID
	}
	if req.CheckInterval <= 0 {
		req.CheckInterval = 15
	}

	id, created, err := h.channelRepo.UpsertChannel(req.ChannelID, req.Name, req.URL, req.CheckInterval)
	if err != nil {
		slog.Error("Database error", "operation", "register_channel", "channel_id", req.ChannelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"id":         id,
		"channel_id": req.ChannelID,
		"created":    created,
	})
}

func (h *Handler) APITriggerChannelPoll(c *gin.Context) {
	channel := h.lookupChannel(c)
	if channel == nil {
		return
	}

	if err := h.scheduler.TriggerChannelCheck(channel); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to trigger check", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Channel check enqueued",
		"channel_id": channel.ChannelID,
	})
}

func (h *Handler) APIActivateChannel(c *gin.Context) {
	h.setChannelActive(c, true)
}

func (h *Handler) APIDeactivateChannel(c *gin.Context) {
	h.setChannelActive(c, false)
}

func (h *Handler) setChannelActive(c *gin.Context, active bool) {
	channelID := c.Param("id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing channel id parameter"})
		return
	}

	if err := h.channelRepo.SetChannelActive(channelID, active); err != nil {
		slog.Error("Database error", "operation", "set_channel_active", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"channel_id": channelID,
		"is_active":  active,
	})
}

func (h *Handler) APIListBroadcasts(c *gin.Context) {
	channelID := c.Query("channel_id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing channel_id query parameter"})
		return
	}

	channel, err := h.channelRepo.GetChannel(channelID)
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if channel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	statuses := []string{
		database.BroadcastLive,
		database.BroadcastEnded,
		database.BroadcastDownloading,
		database.BroadcastCompleted,
		database.BroadcastFailed,
	}
	if statusParam := c.Query("status"); statusParam != "" {
		statuses = strings.Split(statusParam, ",")
	}

	broadcasts, err := h.broadcastRepo.GetBroadcastsByStatus(channel.ID, statuses)
	if err != nil {
		slog.Error("Database error", "operation", "list_broadcasts", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"channel_id": channelID,
		"broadcasts": broadcasts,
		"total":      len(broadcasts),
	})
}

func (h *Handler) APIGetBroadcast(c *gin.Context) {
	broadcast := h.lookupBroadcast(c)
	if broadcast == nil {
		return
	}

	details := map[string]interface{}{
		"broadcast": broadcast,
	}

	if jobs, err := h.jobRepo.GetJobsByBroadcast(broadcast.ID); err == nil {
		details["jobs"] = jobs
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APITriggerBroadcastJobs(c *gin.Context) {
	broadcast := h.lookupBroadcast(c)
	if broadcast == nil {
		return
	}

	if broadcast.Status == database.BroadcastLive {
		c.JSON(http.StatusConflict, gin.H{"error": "Broadcast is still live"})
		return
	}

	if err := h.jobController.EnsureJobs(broadcast); err != nil {
		slog.Error("Failed to create jobs", "broadcast_id", broadcast.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create jobs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"broadcast_id": broadcast.ID,
		"message":      "Download jobs ensured",
	})
}

func (h *Handler) APIGetJob(c *gin.Context) {
	job := h.lookupJob(c)
	if job == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (h *Handler) APIRestartJob(c *gin.Context) {
	job := h.lookupJob(c)
	if job == nil {
		return
	}

	if err := h.jobController.ForceRestartJob(job.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to restart job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job_id":  job.ID,
		"message": "Job reset and dispatched",
	})
}

func (h *Handler) APICancelJob(c *gin.Context) {
	job := h.lookupJob(c)
	if job == nil {
		return
	}

	if err := h.jobController.CancelJob(job.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to cancel job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job_id":  job.ID,
		"message": "Job cancelled",
	})
}

func (h *Handler) APIGetBreakerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breaker": h.breaker.GetStatus()})
}

func (h *Handler) APIResetBreaker(c *gin.Context) {
	h.breaker.Reset()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Breaker state cleared",
		"breaker": h.breaker.GetStatus(),
	})
}

func (h *Handler) lookupChannel(c *gin.Context) *database.Channel {
	channelID := c.Param("id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing channel id parameter"})
		return nil
	}

	channel, err := h.channelRepo.GetChannel(channelID)
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "channel_id", channelID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	if channel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return nil
	}
	return channel
}

func (h *Handler) lookupBroadcast(c *gin.Context) *database.Broadcast {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing broadcast id parameter"})
		return nil
	}

	broadcast, err := h.broadcastRepo.GetBroadcastByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_broadcast", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	if broadcast == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Broadcast not found"})
		return nil
	}
	return broadcast
}

func (h *Handler) lookupJob(c *gin.Context) *database.DownloadJob {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing job id parameter"})
		return nil
	}

	job, err := h.jobRepo.GetJob(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_job", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return nil
	}
	return job
}
