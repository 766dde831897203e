package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-bridge-go/pkg/log"
	"chat-bridge-go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWebhookSecret(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"match", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			if tt.header != "" {
				req.Header.Set(TelegramSecretHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWebhookSecret_DisabledWhenEmpty(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookSecret(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestRequestLogger_PreservesBodyAndSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	var seen string
	r.POST("/echo", func(c *gin.Context) {
		b, _ := c.GetRawData()
		seen = string(b)
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`)))
	if seen != `{"a":1}` {
		t.Fatalf("handler saw body %q", seen)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodPost, "/echo", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("request id = %q, want abc", got)
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", maxLoggedBody+10)
	got := truncateBody([]byte(long))
	if !strings.HasSuffix(got, "...(truncated)") || len(got) != maxLoggedBody+len("...(truncated)") {
		t.Fatalf("unexpected truncation %q", got[len(got)-20:])
	}
	if truncateBody([]byte("short")) != "short" {
		t.Fatal("short bodies are kept")
	}
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "200")); got != 2 {
		t.Errorf("templated route count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
}

func TestRequestLogger_RedactsConfiguredPaths(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := log.ReplaceLogger(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(RequestLogger("/secret"))
	handler := func(c *gin.Context) {
		_, _ = c.GetRawData()
		c.String(http.StatusOK, "user history")
	}
	r.POST("/secret", handler)
	r.POST("/public", handler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/secret", strings.NewReader(`{"initData":"user=abc&hash=123"}`)))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/public", strings.NewReader(`{"a":1}`)))

	entries := logs.FilterMessage("HTTP Request Log").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 request log entries, got %d", len(entries))
	}
	secret := entries[0].ContextMap()
	if secret["requestBody"] != redactedBody || secret["responseBody"] != redactedBody {
		t.Fatalf("bodies not redacted: %v", secret)
	}
	for _, v := range secret {
		if s, ok := v.(string); ok && strings.Contains(s, "initData") {
			t.Fatalf("initData leaked into log field: %q", s)
		}
	}
	public := entries[1].ContextMap()
	if public["requestBody"] != `{"a":1}` || public["responseBody"] != "user history" {
		t.Fatalf("unexpected public log fields: %v", public)
	}
}
