package server

import (
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/research-writer/pkg/database"
	"github.com/mikeboe/research-writer/pkg/research"
	"github.com/mikeboe/research-writer/pkg/stream"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(h.Service.Metrics.Handler()))
	api := r.Group("/api")
	{
		api.POST("/jobs", h.createJob)
		api.GET("/jobs/:id", h.getJob)
		api.GET("/jobs/:id/logs", h.getJobLogs)
		api.GET("/jobs/:id/stream", h.streamJob)
		api.GET("/stream-search", h.streamSearch)

		api.POST("/chats", h.createChat)
		api.GET("/chats/:id/messages", h.getMessages)
	}
}

func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.Service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	logs, err := h.Service.GetJobLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	// Return empty list instead of null
	if logs == nil {
		logs = []database.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) streamJob(c *gin.Context) {
	events, err := h.Service.StreamJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeEvents(c, events)
}

func (h *Handler) streamSearch(c *gin.Context) {
	region := c.Query("region")
	if region == "" {
		region = c.GetHeader("X-Region")
	}
	events, err := h.Service.StreamSearch(c.Request.Context(), c.Query("query"), c.Query("chat_id"), region)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeEvents(c, events)
}

func (h *Handler) createChat(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.Service.CreateSession(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) getMessages(c *gin.Context) {
	turns, err := h.Service.ChatHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if turns == nil {
		turns = []research.HistoryTurn{}
	}
	c.JSON(http.StatusOK, turns)
}

func (h *Handler) writeEvents(c *gin.Context, events iter.Seq[research.Event]) {
	done := h.Service.Metrics.StreamOpened()
	defer done()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	n, err := stream.NewEncoder(c.Writer).Copy(events)
	if err != nil {
		h.Service.Logger.Warn("Event stream closed early", "path", c.FullPath(), "events", n, "error", err)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Service.Logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
