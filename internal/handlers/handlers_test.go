package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"derroche/internal/chat"
	apperrors "derroche/internal/errors"
	"derroche/internal/models"
	"derroche/internal/queue"
	"derroche/internal/services"
	"derroche/internal/testutil"
	"derroche/internal/validator"
)

const testAPIKey = "ops-key"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// --- mocks ---

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockInspector struct {
	statsFn func(ctx context.Context) (*queue.Stats, error)
	jobFn   func(ctx context.Context, id string) (*queue.JobInfo, error)
}

func (m *mockInspector) Job(ctx context.Context, id string) (*queue.JobInfo, error) {
	if m.jobFn != nil {
		return m.jobFn(ctx, id)
	}
	return nil, apperrors.ErrJobNotFound
}

func (m *mockInspector) Stats(ctx context.Context) (*queue.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &queue.Stats{Backend: "memory", Queue: queue.DefaultQueue}, nil
}

type mockParser struct {
	parseFn func(r *http.Request) (chat.Update, bool, error)
}

func (m *mockParser) ParseWebhook(r *http.Request) (chat.Update, bool, error) {
	return m.parseFn(r)
}

type recordingHandler struct {
	updates []chat.Update
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u chat.Update) {
	h.updates = append(h.updates, u)
}

var (
	_ Pinger          = (*mockPinger)(nil)
	_ queue.Inspector = (*mockInspector)(nil)
	_ UpdateParser    = (*mockParser)(nil)
	_ UpdateHandler   = (*recordingHandler)(nil)
)

// --- test helpers ---

type fixture struct {
	db      *gorm.DB
	records services.RecordServicer
	cfg     RouterConfig
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	audit := services.NewAuditService(db)
	records := services.NewRecordService(db, audit)
	return &fixture{
		db:      db,
		records: records,
		cfg: RouterConfig{
			DB:            &mockPinger{},
			RecordService: records,
			AuditService:  audit,
			Queue:         &mockInspector{},
			OpsAPIKey:     testAPIKey,
		},
	}
}

func doRequest(r *gin.Engine, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// --- tests ---

func TestHealthHandler(t *testing.T) {
	t.Run("returns 200 when database answers", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["status"] != "ok" {
			t.Errorf("expected status ok, got %s", rec.Body.String())
		}
	})

	t.Run("returns 503 when database is down", func(t *testing.T) {
		f := setup(t)
		f.cfg.DB = &mockPinger{pingFn: func(context.Context) error { return errors.New("connection refused") }}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/health", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestQueueHandler_Stats(t *testing.T) {
	t.Run("returns counters", func(t *testing.T) {
		f := setup(t)
		f.cfg.Queue = &mockInspector{statsFn: func(context.Context) (*queue.Stats, error) {
			return &queue.Stats{Backend: "redis", Queue: "fotos", Pending: 3, Failed: 1}, nil
		}}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/stats", testAPIKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["pending"] != float64(3) || result["failed"] != float64(1) || result["backend"] != "redis" {
			t.Errorf("unexpected stats %v", result)
		}
	})

	t.Run("returns 503 when broker is unreachable", func(t *testing.T) {
		f := setup(t)
		f.cfg.Queue = &mockInspector{statsFn: func(context.Context) (*queue.Stats, error) {
			return nil, errors.New("dial tcp: connection refused")
		}}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/stats", testAPIKey)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "QUEUE_UNAVAILABLE")
	})

	t.Run("requires api key", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/stats", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_API_KEY")
	})
}

func TestQueueHandler_GetJob(t *testing.T) {
	t.Run("returns job state", func(t *testing.T) {
		f := setup(t)
		f.cfg.Queue = &mockInspector{jobFn: func(_ context.Context, id string) (*queue.JobInfo, error) {
			if id != "job-1" {
				t.Errorf("expected job-1, got %s", id)
			}
			return &queue.JobInfo{ID: id, Queue: "fotos", Kind: queue.KindProcessPhoto, RecordID: 12, State: queue.JobStateRetry, Retried: 1, MaxRetry: 3, LastError: "unexpected status 502"}, nil
		}}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/jobs/job-1", testAPIKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["state"] != "retry" || result["record_id"] != float64(12) || result["retried"] != float64(1) {
			t.Errorf("unexpected job %v", result)
		}
	})

	t.Run("returns 404 for unknown job", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/jobs/missing", testAPIKey)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "JOB_NOT_FOUND")
	})

	t.Run("returns 503 when broker is unreachable", func(t *testing.T) {
		f := setup(t)
		f.cfg.Queue = &mockInspector{jobFn: func(context.Context, string) (*queue.JobInfo, error) {
			return nil, errors.New("dial tcp: connection refused")
		}}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/queue/jobs/job-1", testAPIKey)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "QUEUE_UNAVAILABLE")
	})
}

func TestRecordHandler_ListRecords(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		f := setup(t)
		testutil.CreateTestRecord(t, f.db, models.RecordStatusProcessed)
		testutil.CreateTestRecord(t, f.db, models.RecordStatusProcessed)
		testutil.CreateTestRecord(t, f.db, models.RecordStatusManual)

		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records?status=processed", testAPIKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_items"] != float64(2) {
			t.Errorf("expected 2 processed records, got %v", result["total_items"])
		}
		data := result["data"].([]interface{})
		if len(data) != 2 {
			t.Fatalf("expected 2 items, got %d", len(data))
		}
		if data[0].(map[string]interface{})["status"] != "processed" {
			t.Errorf("expected processed items, got %v", data[0])
		}
	})

	t.Run("paginates", func(t *testing.T) {
		f := setup(t)
		for i := 0; i < 3; i++ {
			testutil.CreateTestRecord(t, f.db, models.RecordStatusManual)
		}
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records?page=2&page_size=2", testAPIKey)
		result := parseJSON(t, rec)
		if len(result["data"].([]interface{})) != 1 || result["total_pages"] != float64(2) {
			t.Errorf("unexpected page %v", result)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records?status=archived", testAPIKey)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("rejects oversized page", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records?page_size=500", testAPIKey)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestRecordHandler_GetRecord(t *testing.T) {
	t.Run("returns record with events", func(t *testing.T) {
		f := setup(t)
		created := testutil.CreateTestRecord(t, f.db, models.RecordStatusProcessed)
		_, _, err := f.records.Confirm(context.Background(), created.ID)
		testutil.AssertNoError(t, err)

		rec := doRequest(NewRouter(f.cfg), http.MethodGet, fmt.Sprintf("/api/v1/records/%d", created.ID), testAPIKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		record := result["record"].(map[string]interface{})
		if record["status"] != "confirmed" {
			t.Errorf("expected confirmed, got %v", record["status"])
		}
		if events := result["events"].([]interface{}); len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("returns 404 for missing record", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records/999", testAPIKey)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "RECORD_NOT_FOUND")
	})

	t.Run("returns 400 for bad id", func(t *testing.T) {
		f := setup(t)
		rec := doRequest(NewRouter(f.cfg), http.MethodGet, "/api/v1/records/abc", testAPIKey)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestWebhookHandler(t *testing.T) {
	newRouter := func(t *testing.T, parser *mockParser, handler *recordingHandler) *gin.Engine {
		f := setup(t)
		f.cfg.Webhook = NewWebhookHandler(parser, handler, "hook-secret")
		return NewRouter(f.cfg)
	}
	post := func(r *gin.Engine, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("dispatches update", func(t *testing.T) {
		handler := &recordingHandler{}
		parser := &mockParser{parseFn: func(*http.Request) (chat.Update, bool, error) {
			return chat.Update{ChatID: 70, UserID: 7, Text: "/nuevo"}, true, nil
		}}
		rec := post(newRouter(t, parser, handler), "hook-secret")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(handler.updates) != 1 || handler.updates[0].Text != "/nuevo" {
			t.Errorf("expected update to be handled, got %+v", handler.updates)
		}
	})

	t.Run("ignores unsupported update", func(t *testing.T) {
		handler := &recordingHandler{}
		parser := &mockParser{parseFn: func(*http.Request) (chat.Update, bool, error) {
			return chat.Update{}, false, nil
		}}
		rec := post(newRouter(t, parser, handler), "hook-secret")
		if rec.Code != http.StatusOK || len(handler.updates) != 0 {
			t.Errorf("expected 200 and no dispatch, got %d / %d", rec.Code, len(handler.updates))
		}
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		handler := &recordingHandler{}
		parser := &mockParser{parseFn: func(*http.Request) (chat.Update, bool, error) {
			t.Fatal("parser must not run without a valid secret")
			return chat.Update{}, false, nil
		}}
		rec := post(newRouter(t, parser, handler), "nope")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler := &recordingHandler{}
		parser := &mockParser{parseFn: func(*http.Request) (chat.Update, bool, error) {
			return chat.Update{}, false, errors.New("bad json")
		}}
		rec := post(newRouter(t, parser, handler), "hook-secret")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
