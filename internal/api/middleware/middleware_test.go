package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/upload", "/api/upload"},
		{"/api/bundle/0b8f6c1e-3d44-4c1a-9f55-1f0e2d3c4b5a", "/api/bundle/{id}"},
		{"/api/download/0b8f6c1e-3d44-4c1a-9f55-1f0e2d3c4b5a", "/api/download/{fileId}"},
		{"/view/abc", "/view/{id}"},
		{"/view/", "other"},
		{"/api/download/a/b", "other"},
		{"/wp-login.php", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидался %q", tt.path, got, tt.want)
		}
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	if out := buf.String(); !strings.Contains(out, "level=INFO") || !strings.Contains(out, "bytes_out=5") {
		t.Errorf("ожидалась INFO запись с bytes_out=5: %s", out)
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=404") {
		t.Errorf("ожидалась WARN запись со статусом 404: %s", out)
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if out := buf.String(); !strings.Contains(out, "level=DEBUG") {
		t.Errorf("probe должен логироваться на DEBUG: %s", out)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/x", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("статус = %d, ожидался 302", rec.Code)
	}
}

func TestRequestLogger_RoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := chi.NewRouter()
	router.Use(RequestLogger(logger))
	router.Get("/api/bundle/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bundle/b1", nil))
	out := buf.String()
	if !strings.Contains(out, "route=/api/bundle/{id}") || !strings.Contains(out, "component=http") {
		t.Errorf("в записи нет шаблона маршрута: %s", out)
	}
}

func TestAccessLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/upload", http.StatusOK, slog.LevelInfo},
		{"/api/download/x", http.StatusFound, slog.LevelInfo},
		{"/health/ready", http.StatusOK, slog.LevelDebug},
		{"/health/ready", http.StatusServiceUnavailable, slog.LevelError},
		{"/api/bundle/x", http.StatusNotFound, slog.LevelWarn},
		{"/api/upload", http.StatusRequestEntityTooLarge, slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := accessLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("accessLevel(%q, %d) = %v, ожидался %v", tt.path, tt.status, got, tt.want)
		}
	}
}
