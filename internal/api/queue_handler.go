package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueueHandler serves queue statistics.
type QueueHandler struct {
	queue QueueReader
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(queue QueueReader) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// GetStats handles GET /api/v1/queue/stats
func (h *QueueHandler) GetStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve queue stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
