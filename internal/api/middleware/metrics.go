// metrics.go — Prometheus HTTP метрики Share Module.
// Регистрирует метрики: sm_http_requests_total, sm_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Share Module
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Share Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	// Загрузки и скачивания длятся минутами, поэтому бакеты шире стандартных.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Share Module в секундах",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 1800},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// dynamicPrefixes — маршруты с идентификатором в последнем сегменте.
var dynamicPrefixes = []struct {
	prefix string
	label  string
}{
	{"/api/bundle/", "/api/bundle/{id}"},
	{"/api/download/", "/api/download/{fileId}"},
	{"/view/", "/view/{id}"},
}

// normalizePath заменяет идентификаторы в пути на шаблон.
// /api/download/a1b2c3d4-... → /api/download/{fileId}
// Неизвестные пути сворачиваются в "other".
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/upload", "/expired", "/":
		return path
	}

	for _, p := range dynamicPrefixes {
		if rest, ok := strings.CutPrefix(path, p.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return p.label
		}
	}

	return "other"
}
