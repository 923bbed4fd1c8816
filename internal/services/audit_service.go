package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "derroche/internal/errors"
	"derroche/internal/logger"
	"derroche/internal/models"
)

// Event actors.
const (
	ActorUser   = "user"
	ActorWorker = "worker"
)

// auditService records record lifecycle events.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log stores an event. Errors are logged but never propagate
// so a failed audit write cannot undo the state change it describes.
func (s *auditService) Log(ctx context.Context, event models.RecordEvent, detail map[string]any) {
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			logger.Get().Errorw("failed to marshal record event detail", "error", err, "action", event.Action)
		} else {
			event.Detail = datatypes.JSON(data)
		}
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		logger.Get().Errorw("failed to create record event",
			"error", err,
			"record_id", event.RecordID,
			"action", event.Action,
			"actor", event.Actor,
		)
	}
}

// ListEvents returns the events of a record, oldest first.
func (s *auditService) ListEvents(ctx context.Context, recordID uint) ([]models.RecordEvent, error) {
	var events []models.RecordEvent
	if err := s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return events, nil
}
