package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "derroche/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAPIKeyRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(APIKeyAuth(apiKey))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doRequest(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
		wantErrorCode string
	}{
		{
			name:          "valid_api_key",
			configuredKey: "ops-secret",
			requestKey:    "ops-secret",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "invalid_api_key",
			configuredKey: "ops-secret",
			requestKey:    "wrong-key",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "missing_api_key",
			configuredKey: "ops-secret",
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "ops_api_not_configured",
			requestKey:    "any-key",
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: "OPS_API_NOT_CONFIGURED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(setupAPIKeyRouter(tt.configuredKey), tt.requestKey)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantErrorCode == "" {
				return
			}
			errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("expected error object, got %s", rec.Body.String())
			}
			if errObj["code"] != tt.wantErrorCode {
				t.Errorf("expected error code %q, got %q", tt.wantErrorCode, errObj["code"])
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrRecordNotFound)
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	t.Run("app_error_keeps_status_and_code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", http.NoBody))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if code := parseBody(t, rec)["error"].(map[string]interface{})["code"]; code != "RECORD_NOT_FOUND" {
			t.Errorf("expected RECORD_NOT_FOUND, got %v", code)
		}
	})

	t.Run("unexpected_error_is_generic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", http.NoBody))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if code := parseBody(t, rec)["error"].(map[string]interface{})["code"]; code != "INTERNAL_ERROR" {
			t.Errorf("expected INTERNAL_ERROR, got %v", code)
		}
	})
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	t.Run("generates_request_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
		id := rec.Header().Get("X-Request-ID")
		if id == "" || rec.Body.String() != id {
			t.Errorf("expected request id in header and context, got %q / %q", id, rec.Body.String())
		}
	})

	t.Run("reuses_incoming_request_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("expected incoming id, got %q", got)
		}
	})
}

func TestMetrics(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/records/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	labels := map[string]string{"method": http.MethodGet, "path": "/records/:id", "status": "204"}
	before := counterValue(t, "derroche_http_requests_total", labels)
	for _, path := range []string{"/records/1", "/records/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}
	after := counterValue(t, "derroche_http_requests_total", labels)

	if after-before != 2 {
		t.Errorf("expected 2 requests counted under the route label, got %v", after-before)
	}
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
