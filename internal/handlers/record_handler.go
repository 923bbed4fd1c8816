package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "derroche/internal/errors"
	"derroche/internal/models"
	"derroche/internal/pagination"
	"derroche/internal/services"
)

// RecordHandler gives operators read access to expense records.
type RecordHandler struct {
	recordService services.RecordServicer
	auditService  services.AuditServicer
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(recordService services.RecordServicer, auditService services.AuditServicer) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		auditService:  auditService,
	}
}

// ListRecordsQuery holds the optional filters of ListRecords.
type ListRecordsQuery struct {
	Status string `form:"status" binding:"omitempty,record_status"`
	UserID int64  `form:"telegram_user_id" binding:"omitempty,min=1"`
}

// ListRecords handles the retrieval of records, newest first
func (h *RecordHandler) ListRecords(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var query ListRecordsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.RecordFilter
	if query.Status != "" {
		status := models.RecordStatus(query.Status)
		filter.Status = &status
	}
	if query.UserID != 0 {
		filter.UserID = &query.UserID
	}

	result, err := h.recordService.ListRecords(c.Request.Context(), filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecord handles the retrieval of one record with its event history
func (h *RecordHandler) GetRecord(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	record, err := h.recordService.GetRecord(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	events, err := h.auditService.ListEvents(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record": record,
		"events": events,
	})
}
