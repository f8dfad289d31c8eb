// handler.go — основной обработчик API Share Module.
// Объединяет health, загрузку, выдачу бандлов и скачивание файлов.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/share-module/internal/service"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
	"github.com/bigkaa/goartstore/share-module/internal/ui/static"
)

// APIHandler — основной обработчик API Share Module.
// Делегирует бизнес-логику в сервисный слой.
type APIHandler struct {
	health   *HealthHandler
	spool    *spool.Spool
	store    *bundlestore.Store
	upload   *service.UploadService
	download *service.DownloadService
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	sp *spool.Spool,
	store *bundlestore.Store,
	upload *service.UploadService,
	download *service.DownloadService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		spool:    sp,
		store:    store,
		upload:   upload,
		download: download,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Встроенные страницы ---

// ViewBundle — страница бандла. Данные подгружаются браузером из /api/bundle/{id}.
func (h *APIHandler) ViewBundle(w http.ResponseWriter, r *http.Request) {
	static.ServePage(w, r, static.PageDownload)
}

// ExpiredPage — страница истёкшей ссылки.
func (h *APIHandler) ExpiredPage(w http.ResponseWriter, r *http.Request) {
	static.ServePage(w, r, static.PageExpired)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
