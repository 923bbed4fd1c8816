package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"derroche/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestRecord creates a record in the given status owned by a fresh chat user.
// Photo states get an image reference.
func CreateTestRecord(t *testing.T, db *gorm.DB, status models.RecordStatus) *models.Record {
	t.Helper()

	n := nextID()
	record := &models.Record{
		Date:          time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(15000),
		ExpenseType:   "Comida",
		Category:      "Gasto",
		Bank:          "BancoEstado",
		Description:   fmt.Sprintf("Test record %d", n),
		PaymentMethod: "Tarjeta Débito",
		Status:        status,
		UserID:        1000 + n,
		ChatID:        1000 + n,
	}
	if status != models.RecordStatusManual {
		ref := fmt.Sprintf("%d_test_%d.jpg", record.UserID, n)
		record.ImagePath = &ref
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test record: %v", err)
	}
	return record
}

// CreateTestPendingRecord creates a pending photo record with the placeholder values.
func CreateTestPendingRecord(t *testing.T, db *gorm.DB, userID int64, imageRef string) *models.Record {
	t.Helper()

	record := &models.Record{
		Date:          time.Now().UTC().Truncate(24 * time.Hour),
		Amount:        decimal.Zero,
		ExpenseType:   models.PendingLabel,
		Category:      models.PendingLabel,
		Bank:          models.PendingLabel,
		Description:   models.PendingDescription,
		PaymentMethod: models.PendingPaymentMethod,
		Status:        models.RecordStatusPending,
		ImagePath:     &imageRef,
		UserID:        userID,
		ChatID:        userID,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create pending record: %v", err)
	}
	return record
}

// ReloadRecord reads a record straight from the database, or nil if it is gone.
func ReloadRecord(t *testing.T, db *gorm.DB, id uint) *models.Record {
	t.Helper()

	var record models.Record
	result := db.Limit(1).Find(&record, id)
	if result.Error != nil {
		t.Fatalf("failed to reload record %d: %v", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}
	return &record
}
