package testutil_test

import (
	"testing"

	"derroche/internal/errors"
	"derroche/internal/models"
	"derroche/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"finanzas", "finanzas_eventos"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	manual := testutil.CreateTestRecord(t, db, models.RecordStatusManual)
	if manual.ID == 0 {
		t.Fatal("record should have a non-zero ID")
	}
	if manual.ImagePath != nil {
		t.Error("manual record should not carry an image")
	}

	pending := testutil.CreateTestPendingRecord(t, db, 42, "42_boleta.jpg")
	if pending.Status != models.RecordStatusPending {
		t.Errorf("expected pending, got %s", pending.Status)
	}

	reloaded := testutil.ReloadRecord(t, db, pending.ID)
	if reloaded == nil || reloaded.Description != models.PendingDescription {
		t.Errorf("expected placeholder description, got %+v", reloaded)
	}

	if testutil.ReloadRecord(t, db, 99999) != nil {
		t.Error("expected nil for a missing record")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrRecordNotFound, "custom message")
	testutil.AssertAppError(t, err, "RECORD_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
