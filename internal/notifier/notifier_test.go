package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"derroche/internal/chat"
	"derroche/internal/models"
	"derroche/internal/testutil"
)

func processedRecord() *models.Record {
	return &models.Record{
		ID:          12,
		Date:        time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(15000),
		Category:    "Comida",
		Description: "Lider_Express",
		Status:      models.RecordStatusProcessed,
		ChatID:      70,
	}
}

func TestSendConfirmation(t *testing.T) {
	messenger := &testutil.FakeMessenger{}
	n := New(messenger)

	testutil.AssertNoError(t, n.SendConfirmation(context.Background(), processedRecord()))

	msg := messenger.LastSent()
	if msg.ChatID != 70 {
		t.Errorf("expected chat 70, got %d", msg.ChatID)
	}
	for _, want := range []string{"$15.000", "06-10-2025", "Comida", `Lider\_Express`} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("expected %q in summary:\n%s", want, msg.Text)
		}
	}

	var payloads []string
	for _, row := range msg.Inline {
		for _, b := range row {
			payloads = append(payloads, b.Data)
		}
	}
	if strings.Join(payloads, ",") != "confirm_12,edit_12,cancel_12" {
		t.Errorf("unexpected buttons %v", payloads)
	}
}

func TestExtractedSummaryPlaceholders(t *testing.T) {
	rec := processedRecord()
	rec.Amount = decimal.Zero
	rec.Category = models.PendingLabel
	rec.Description = models.PendingDescription

	text := ExtractedSummary(rec)
	if !strings.Contains(text, "Monto: No detectado") || !strings.Contains(text, "Categoría: No detectada") {
		t.Errorf("expected placeholders reported as not detected:\n%s", text)
	}
}

func TestSendExtractionError(t *testing.T) {
	messenger := &testutil.FakeMessenger{}
	n := New(messenger)

	testutil.AssertNoError(t, n.SendExtractionError(context.Background(), 70, 12))

	msg := messenger.LastSent()
	if msg.Text != TextExtractError {
		t.Errorf("unexpected text %q", msg.Text)
	}
	if msg.Inline[0][0].Data != "manual_12" || msg.Inline[0][1].Data != "retry_12" || msg.Inline[1][0].Data != "cancel_12" {
		t.Errorf("unexpected buttons %+v", msg.Inline)
	}
}

func TestSendFailure(t *testing.T) {
	messenger := &testutil.FakeMessenger{SendErr: errors.New("chat platform down")}
	n := New(messenger)

	if err := n.SendExtractionError(context.Background(), 70, 12); err == nil {
		t.Fatal("expected send error to be returned")
	}
}

func TestCategoryKeyboard(t *testing.T) {
	kb := CategoryKeyboard(5)
	count := 0
	for _, row := range kb {
		for _, b := range row {
			a, err := chat.ParseAction(b.Data)
			if err != nil {
				t.Fatalf("button %q does not parse: %v", b.Data, err)
			}
			if a.Kind != chat.ActionSetCat || a.RecordID != 5 || a.Value != b.Text {
				t.Errorf("unexpected action %+v for %q", a, b.Text)
			}
			count++
		}
	}
	if count != len(CategoryChoices) {
		t.Errorf("expected %d buttons, got %d", len(CategoryChoices), count)
	}
}
