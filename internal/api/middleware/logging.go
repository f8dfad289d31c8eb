// logging.go — журнал доступа Share Module.
// Одна запись на запрос: маршрут chi, объём запроса и ответа, длительность.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestLogger возвращает middleware журнала доступа.
// 5xx пишется как ERROR, 4xx как WARN. Успешные probes (/health/*, /metrics)
// уходят в DEBUG, остальное в INFO.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes_out", rec.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if r.ContentLength > 0 {
				attrs = append(attrs, slog.Int64("bytes_in", r.ContentLength))
			}
			// Шаблон известен только после маршрутизации
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}

			logger.LogAttrs(r.Context(), accessLevel(r.URL.Path, rec.status), "HTTP запрос", attrs...)
		})
	}
}

// accessLevel выбирает уровень записи журнала доступа.
func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/health/live", path == "/health/ready", path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
