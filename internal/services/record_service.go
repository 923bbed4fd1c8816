package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "derroche/internal/errors"
	"derroche/internal/models"
	"derroche/internal/pagination"
)

// Event actions.
const (
	ActionCreatedManual    = "created_manual"
	ActionCreatedPending   = "created_pending"
	ActionExtracted        = "extracted"
	ActionExtractionFailed = "extraction_failed"
	ActionConfirmed        = "confirmed"
	ActionDeleted          = "deleted"
	ActionRetried          = "retried"
	ActionCompletedManual  = "completed_manually"
	ActionEdited           = "edited"
)

// maxErrorDetail bounds the failure text kept on a record.
const maxErrorDetail = 500

// cancellable lists the states a user may discard from the review prompts.
var cancellable = []models.RecordStatus{
	models.RecordStatusPending,
	models.RecordStatusProcessed,
	models.RecordStatusError,
}

// recordService handles record persistence and lifecycle transitions.
type recordService struct {
	db    *gorm.DB
	audit AuditServicer
}

// NewRecordService creates a new RecordServicer.
func NewRecordService(db *gorm.DB, audit AuditServicer) RecordServicer {
	return &recordService{db: db, audit: audit}
}

// GetRecord loads a record by id.
func (s *recordService) GetRecord(ctx context.Context, id uint) (*models.Record, error) {
	var record models.Record
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &record, nil
}

// ListRecords returns records newest first.
func (s *recordService) ListRecords(ctx context.Context, filter RecordFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Record], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Record{})
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		base = base.Where("telegram_user_id = ?", *filter.UserID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var records []models.Record
	if err := base.Order("id DESC").Scopes(pagination.Paginate(page)).Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(records, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CreateManual stores a record typed in by the user.
func (s *recordService) CreateManual(ctx context.Context, entry ManualEntry) (*models.Record, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	record := &models.Record{
		Date:          entry.Date,
		Amount:        entry.Amount,
		ExpenseType:   entry.ExpenseType,
		Category:      entry.Category,
		Bank:          entry.Bank,
		Description:   entry.Description,
		PaymentMethod: entry.PaymentMethod,
		Status:        models.RecordStatusManual,
		UserID:        entry.UserID,
		ChatID:        entry.ChatID,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID: record.ID,
		Action:   ActionCreatedManual,
		ToStatus: models.RecordStatusManual,
		Actor:    ActorUser,
	}, nil)
	return record, nil
}

// CreatePending stores a placeholder for a receipt photo awaiting extraction.
func (s *recordService) CreatePending(ctx context.Context, chatID, userID int64, imageRef string) (*models.Record, error) {
	if imageRef == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "image reference is required")
	}

	ref := imageRef
	record := &models.Record{
		Date:          time.Now().UTC().Truncate(24 * time.Hour),
		Amount:        decimal.Zero,
		ExpenseType:   models.PendingLabel,
		Category:      models.PendingLabel,
		Bank:          models.PendingLabel,
		Description:   models.PendingDescription,
		PaymentMethod: models.PendingPaymentMethod,
		Status:        models.RecordStatusPending,
		ImagePath:     &ref,
		UserID:        userID,
		ChatID:        chatID,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID: record.ID,
		Action:   ActionCreatedPending,
		ToStatus: models.RecordStatusPending,
		Actor:    ActorUser,
	}, map[string]any{"image_ref": imageRef})
	return record, nil
}

// ApplyExtraction merges extracted fields into a pending record and marks it
// processed. Fields left nil keep their stored value. A record that is no
// longer pending is left untouched and ErrStaleRecord is returned.
func (s *recordService) ApplyExtraction(ctx context.Context, id uint, fields ExtractedFields, raw []byte) (*models.Record, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       models.RecordStatusProcessed,
		"processed_at": now,
		"error_detail": "",
	}
	if len(raw) > 0 {
		updates["ocr_data"] = datatypes.JSON(raw)
	}
	if fields.Date != nil {
		updates["fecha"] = *fields.Date
	}
	if fields.Amount != nil {
		updates["monto"] = *fields.Amount
	}
	if fields.Category != nil {
		updates["categoria"] = *fields.Category
	}
	if fields.Description != nil {
		updates["descripcion"] = *fields.Description
	}
	if fields.ExpenseType != nil {
		updates["tipo_gasto"] = *fields.ExpenseType
	}
	if fields.Bank != nil {
		updates["banco"] = *fields.Bank
	}

	if err := s.transition(ctx, id, []models.RecordStatus{models.RecordStatusPending}, updates, apperrors.ErrStaleRecord); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionExtracted,
		FromStatus: models.RecordStatusPending,
		ToStatus:   models.RecordStatusProcessed,
		Actor:      ActorWorker,
	}, nil)
	return s.GetRecord(ctx, id)
}

// MarkError moves a pending record to error with a failure description.
func (s *recordService) MarkError(ctx context.Context, id uint, detail string) error {
	detail = truncateText(detail, maxErrorDetail)

	updates := map[string]any{
		"status":       models.RecordStatusError,
		"error_detail": detail,
		"processed_at": time.Now().UTC(),
	}
	if err := s.transition(ctx, id, []models.RecordStatus{models.RecordStatusPending}, updates, apperrors.ErrStaleRecord); err != nil {
		return err
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionExtractionFailed,
		FromStatus: models.RecordStatusPending,
		ToStatus:   models.RecordStatusError,
		Actor:      ActorWorker,
	}, map[string]any{"error": detail})
	return nil
}

// Confirm marks a processed record as accepted by the user. Confirming an
// already confirmed record is a no-op and reports changed=false.
func (s *recordService) Confirm(ctx context.Context, id uint) (*models.Record, bool, error) {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if record.Status == models.RecordStatusConfirmed {
		return record, false, nil
	}

	err = s.transition(ctx, id, []models.RecordStatus{models.RecordStatusProcessed},
		map[string]any{"status": models.RecordStatusConfirmed}, apperrors.ErrInvalidTransition)
	if err != nil {
		// A concurrent confirm may have won the race.
		if current, getErr := s.GetRecord(ctx, id); getErr == nil && current.Status == models.RecordStatusConfirmed {
			return current, false, nil
		}
		return nil, false, err
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionConfirmed,
		FromStatus: models.RecordStatusProcessed,
		ToStatus:   models.RecordStatusConfirmed,
		Actor:      ActorUser,
	}, nil)

	record.Status = models.RecordStatusConfirmed
	return record, true, nil
}

// Delete removes a record that is still under review.
func (s *recordService) Delete(ctx context.Context, id uint) error {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, cancellable).
		Delete(&models.Record{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return s.transitionError(ctx, id, apperrors.ErrInvalidTransition)
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionDeleted,
		FromStatus: record.Status,
		Actor:      ActorUser,
	}, nil)
	return nil
}

// ResetForRetry puts a failed record back to pending so its receipt can be
// read again. Only one of several concurrent resets succeeds.
func (s *recordService) ResetForRetry(ctx context.Context, id uint) (*models.Record, error) {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.ImagePath == nil || *record.ImagePath == "" {
		return nil, apperrors.ErrImageMissing
	}

	updates := map[string]any{
		"status":       models.RecordStatusPending,
		"error_detail": "",
		"processed_at": nil,
	}
	if err := s.transition(ctx, id, []models.RecordStatus{models.RecordStatusError}, updates, apperrors.ErrInvalidTransition); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionRetried,
		FromStatus: models.RecordStatusError,
		ToStatus:   models.RecordStatusPending,
		Actor:      ActorUser,
	}, nil)
	return s.GetRecord(ctx, id)
}

// CompleteManually fills a failed photo record with typed-in values.
func (s *recordService) CompleteManually(ctx context.Context, id uint, entry ManualEntry) (*models.Record, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"fecha":        entry.Date,
		"monto":        entry.Amount,
		"tipo_gasto":   entry.ExpenseType,
		"categoria":    entry.Category,
		"banco":        entry.Bank,
		"descripcion":  entry.Description,
		"metodo_pago":  entry.PaymentMethod,
		"status":       models.RecordStatusManual,
		"error_detail": "",
	}
	if err := s.transition(ctx, id, []models.RecordStatus{models.RecordStatusError}, updates, apperrors.ErrInvalidTransition); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionCompletedManual,
		FromStatus: models.RecordStatusError,
		ToStatus:   models.RecordStatusManual,
		Actor:      ActorUser,
	}, nil)
	return s.GetRecord(ctx, id)
}

// UpdateField changes a single editable field. Records still awaiting
// extraction cannot be edited since the worker would overwrite the change.
func (s *recordService) UpdateField(ctx context.Context, id uint, field models.EditField, value any) (*models.Record, error) {
	column, stored, err := editValue(field, value)
	if err != nil {
		return nil, err
	}

	editable := []models.RecordStatus{
		models.RecordStatusManual,
		models.RecordStatusProcessed,
		models.RecordStatusError,
		models.RecordStatusConfirmed,
	}
	if err := s.transition(ctx, id, editable, map[string]any{column: stored}, apperrors.ErrInvalidTransition); err != nil {
		return nil, err
	}

	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, models.RecordEvent{
		RecordID:   id,
		Action:     ActionEdited,
		FromStatus: record.Status,
		ToStatus:   record.Status,
		Actor:      ActorUser,
	}, map[string]any{"field": string(field)})
	return record, nil
}

// transition applies updates only while the record is in one of the given
// states. When nothing matches it tells a missing record apart from one in
// the wrong state.
func (s *recordService) transition(ctx context.Context, id uint, from []models.RecordStatus, updates map[string]any, wrongState *apperrors.AppError) error {
	result := s.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return s.transitionError(ctx, id, wrongState)
	}
	return nil
}

func (s *recordService) transitionError(ctx context.Context, id uint, wrongState *apperrors.AppError) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Record{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrRecordNotFound
	}
	return wrongState
}

// truncateText cuts s to at most n bytes without splitting a character.
// Invalid UTF-8 is replaced first since Postgres rejects it.
func truncateText(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func validateEntry(entry ManualEntry) error {
	if entry.Date.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "date is required")
	}
	if strings.TrimSpace(entry.ExpenseType) == "" || strings.TrimSpace(entry.Category) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "expense type and category are required")
	}
	return nil
}

func editValue(field models.EditField, value any) (string, any, error) {
	switch field {
	case models.EditFieldAmount:
		if v, ok := value.(decimal.Decimal); ok {
			return "monto", v, nil
		}
	case models.EditFieldDate:
		if v, ok := value.(time.Time); ok && !v.IsZero() {
			return "fecha", v, nil
		}
	case models.EditFieldDescription, models.EditFieldCategory:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			column := "descripcion"
			if field == models.EditFieldCategory {
				column = "categoria"
			}
			return column, strings.TrimSpace(v), nil
		}
	default:
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown field")
	}
	return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid value for "+string(field))
}
