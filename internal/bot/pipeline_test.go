package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"derroche/internal/extraction"
	"derroche/internal/models"
	"derroche/internal/notifier"
	"derroche/internal/queue"
	"derroche/internal/testutil"
	"derroche/internal/worker"
)

// pipeline wires the controller to a real in-process queue, the photo
// processor and an extraction endpoint served by httptest.
type pipeline struct {
	*fixture
	queue *queue.MemoryQueue
	calls *atomic.Int32
}

func setupPipeline(t *testing.T, endpoint http.HandlerFunc) *pipeline {
	t.Helper()
	f := setup(t)

	// Worker goroutines and the test share one in-memory database.
	sqlDB, err := f.db.DB()
	testutil.AssertNoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		endpoint(w, r)
	}))
	t.Cleanup(server.Close)

	log := zap.NewNop().Sugar()
	client := extraction.NewClient(server.URL, server.Client())
	processor := worker.NewPhotoProcessor(f.records, f.images, client, notifier.New(f.messenger), log)

	q := queue.NewMemoryQueue(processor, log,
		queue.WithWorkers(1),
		queue.WithPolicy(queue.Policy{
			MaxRetry: 2,
			Backoff:  []time.Duration{5 * time.Millisecond},
			Timeout:  2 * time.Second,
		}),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	})

	f.controller = NewController(f.records, q, f.images, f.fetcher, f.messenger, log)
	return &pipeline{fixture: f, queue: q, calls: calls}
}

// waitForStatus polls until the user's only record reaches want.
func (p *pipeline) waitForStatus(t *testing.T, want models.RecordStatus) *models.Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		recs := p.allRecords(t)
		if len(recs) == 1 && recs[0].Status == want {
			return &recs[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	recs := p.allRecords(t)
	t.Fatalf("record never reached %s: %+v", want, recs)
	return nil
}

// waitForSent polls until the last outbound message has the given text.
// The worker notifies after it stores the outcome.
func (p *pipeline) waitForSent(t *testing.T, text string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if p.messenger.LastSent().Text == text {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %q to be sent, last was %q", text, p.messenger.LastSent().Text)
}

func TestPhotoPipeline(t *testing.T) {
	t.Run("photo_to_confirmed", func(t *testing.T) {
		p := setupPipeline(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"fecha":"2025-10-06","monto":"12990","categoria":"Gasto","descripcion":"Lider","tipo_gasto":"Supermercado","banco":"BCI"}`))
		})

		p.text("/nuevo")
		p.text(notifier.MenuPhoto)
		p.photo()
		if got := p.lastSentText(t); got != notifier.TextPhotoQueued {
			t.Fatalf("expected queued acknowledgement, got %q", got)
		}

		rec := p.waitForStatus(t, models.RecordStatusProcessed)
		if !rec.Amount.Equal(decimal.NewFromInt(12990)) {
			t.Errorf("expected amount 12990, got %s", rec.Amount)
		}
		if rec.Description != "Lider" || rec.Bank != "BCI" || rec.ExpenseType != "Supermercado" {
			t.Errorf("unexpected extracted values: %+v", rec)
		}
		if rec.PaymentMethod != models.PendingPaymentMethod {
			t.Errorf("expected payment method left as %q, got %q", models.PendingPaymentMethod, rec.PaymentMethod)
		}

		p.waitForSent(t, notifier.ExtractedSummary(rec))
		if review := p.messenger.LastSent(); len(review.Inline) == 0 {
			t.Fatalf("expected review prompt with buttons, got %+v", review)
		}

		p.press(rec, fmt.Sprintf("confirm_%d", rec.ID))
		if got := testutil.ReloadRecord(t, p.db, rec.ID); got.Status != models.RecordStatusConfirmed {
			t.Errorf("expected confirmed, got %s", got.Status)
		}
		if n := p.calls.Load(); n != 1 {
			t.Errorf("expected one extraction call, got %d", n)
		}
	})

	t.Run("exhausted_retries_then_manual", func(t *testing.T) {
		p := setupPipeline(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		p.text("/nuevo")
		p.text(notifier.MenuPhoto)
		p.photo()

		rec := p.waitForStatus(t, models.RecordStatusError)
		if n := p.calls.Load(); n != 3 {
			t.Errorf("expected 3 attempts, got %d", n)
		}
		p.waitForSent(t, notifier.TextExtractError)

		p.press(rec, fmt.Sprintf("manual_%d", rec.ID))
		for _, input := range []string{"06-10-2025", "8990", "Comida", "Gasto", "Santander", "Almuerzo", "Tarjeta Crédito"} {
			p.text(input)
		}

		recs := p.allRecords(t)
		if len(recs) != 1 {
			t.Fatalf("expected the failed record to be reused, got %d records", len(recs))
		}
		if recs[0].ID != rec.ID || recs[0].Status != models.RecordStatusManual {
			t.Errorf("expected record %d completed manually, got %+v", rec.ID, recs[0])
		}
		if !recs[0].Amount.Equal(decimal.NewFromInt(8990)) {
			t.Errorf("expected amount 8990, got %s", recs[0].Amount)
		}
	})

	t.Run("retry_after_error_succeeds", func(t *testing.T) {
		var fail atomic.Bool
		fail.Store(true)
		p := setupPipeline(t, func(w http.ResponseWriter, _ *http.Request) {
			if fail.Load() {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"monto":4500,"descripcion":"Cafe"}`))
		})

		p.text("/nuevo")
		p.text(notifier.MenuPhoto)
		p.photo()
		rec := p.waitForStatus(t, models.RecordStatusError)
		p.waitForSent(t, notifier.TextExtractError)

		fail.Store(false)
		p.press(rec, fmt.Sprintf("retry_%d", rec.ID))

		done := p.waitForStatus(t, models.RecordStatusProcessed)
		if done.ID != rec.ID {
			t.Errorf("expected the same record to be reprocessed, got %d", done.ID)
		}
		if *done.ImagePath != *rec.ImagePath {
			t.Errorf("expected the stored image to be reused")
		}
		if !done.Amount.Equal(decimal.NewFromInt(4500)) || done.Description != "Cafe" {
			t.Errorf("unexpected values after retry: %+v", done)
		}
	})
}
