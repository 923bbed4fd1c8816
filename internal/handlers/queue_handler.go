package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "derroche/internal/errors"
	"derroche/internal/queue"
)

// QueueHandler exposes job queue counters and job status.
type QueueHandler struct {
	inspector queue.Inspector
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(inspector queue.Inspector) *QueueHandler {
	return &QueueHandler{inspector: inspector}
}

// Stats returns pending, in-flight, retrying, succeeded and failed job counts.
func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.inspector.Stats(c.Request.Context())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrQueueUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetJob returns the state of one job by the id it was enqueued with.
func (h *QueueHandler) GetJob(c *gin.Context) {
	info, err := h.inspector.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
		}
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
