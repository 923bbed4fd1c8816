package models

import (
	"time"

	"gorm.io/datatypes"
)

// RecordEvent is an append-only audit entry for a record state change.
type RecordEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RecordID   uint           `gorm:"not null;index" json:"record_id"`
	Action     string         `gorm:"size:40;not null" json:"action"`
	FromStatus RecordStatus   `gorm:"size:20" json:"from_status,omitempty"`
	ToStatus   RecordStatus   `gorm:"size:20" json:"to_status,omitempty"`
	Actor      string         `gorm:"size:40;not null" json:"actor"`
	Detail     datatypes.JSON `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TableName keeps record events next to the records table.
func (RecordEvent) TableName() string { return "finanzas_eventos" }
