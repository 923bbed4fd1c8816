package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RecordStatus is the lifecycle state of a finance record.
type RecordStatus string

const (
	RecordStatusManual    RecordStatus = "manual"
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusProcessed RecordStatus = "processed"
	RecordStatusError     RecordStatus = "error"
	RecordStatusConfirmed RecordStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusManual, RecordStatusPending, RecordStatusProcessed, RecordStatusError, RecordStatusConfirmed:
		return true
	}
	return false
}

// Placeholder values written into a record while its receipt is being read.
const (
	PendingPaymentMethod = "Por definir"
	PendingLabel         = "Pendiente"
	PendingDescription   = "Procesando boleta..."
	EmptyDescription     = "Sin descripción"
)

// Record is one income or expense row. Photo records start as pending
// placeholders and are filled in by the receipt worker.
type Record struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Date          time.Time       `gorm:"column:fecha;type:date;not null" json:"fecha"`
	Amount        decimal.Decimal `gorm:"column:monto;type:numeric(14,2);not null" json:"monto"`
	ExpenseType   string          `gorm:"column:tipo_gasto" json:"tipo_gasto"`
	Category      string          `gorm:"column:categoria" json:"categoria"`
	Bank          string          `gorm:"column:banco" json:"banco"`
	Description   string          `gorm:"column:descripcion" json:"descripcion"`
	PaymentMethod string          `gorm:"column:metodo_pago" json:"metodo_pago"`
	Status        RecordStatus    `gorm:"column:status;size:20;not null;default:manual;index" json:"status"`
	ImagePath     *string         `gorm:"column:image_path" json:"image_path,omitempty"`
	OCRData       datatypes.JSON  `gorm:"column:ocr_data" json:"ocr_data,omitempty"`
	ErrorDetail   string          `gorm:"column:error_detail" json:"error_detail,omitempty"`
	UserID        int64           `gorm:"column:telegram_user_id;index" json:"telegram_user_id"`
	ChatID        int64           `gorm:"column:telegram_chat_id" json:"telegram_chat_id"`
	ProcessedAt   *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"column:creado" json:"creado"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName keeps the table name used by existing deployments.
func (Record) TableName() string { return "finanzas" }

// EditField names a record field that can be changed after extraction.
type EditField string

const (
	EditFieldAmount      EditField = "monto"
	EditFieldDescription EditField = "descripcion"
	EditFieldDate        EditField = "fecha"
	EditFieldCategory    EditField = "categoria"
)
