package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"derroche/internal/models"
	"derroche/internal/pagination"
)

// ManualEntry holds the values collected by the manual entry conversation.
type ManualEntry struct {
	Date          time.Time
	Amount        decimal.Decimal
	ExpenseType   string
	Category      string
	Bank          string
	Description   string
	PaymentMethod string
	UserID        int64
	ChatID        int64
}

// ExtractedFields is a partial update read from a receipt. Nil fields keep
// the value already stored on the record.
type ExtractedFields struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	ExpenseType *string
	Bank        *string
}

// RecordFilter holds optional filter parameters for listing records.
type RecordFilter struct {
	Status *models.RecordStatus
	UserID *int64
}

// RecordServicer defines the contract for record persistence and lifecycle.
type RecordServicer interface {
	GetRecord(ctx context.Context, id uint) (*models.Record, error)
	ListRecords(ctx context.Context, filter RecordFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Record], error)
	CreateManual(ctx context.Context, entry ManualEntry) (*models.Record, error)
	CreatePending(ctx context.Context, chatID, userID int64, imageRef string) (*models.Record, error)
	ApplyExtraction(ctx context.Context, id uint, fields ExtractedFields, raw []byte) (*models.Record, error)
	MarkError(ctx context.Context, id uint, detail string) error
	Confirm(ctx context.Context, id uint) (*models.Record, bool, error)
	Delete(ctx context.Context, id uint) error
	ResetForRetry(ctx context.Context, id uint) (*models.Record, error)
	CompleteManually(ctx context.Context, id uint, entry ManualEntry) (*models.Record, error)
	UpdateField(ctx context.Context, id uint, field models.EditField, value any) (*models.Record, error)
}

// AuditServicer defines the contract for record event logging.
type AuditServicer interface {
	Log(ctx context.Context, event models.RecordEvent, detail map[string]any)
	ListEvents(ctx context.Context, recordID uint) ([]models.RecordEvent, error)
}
