// download.go — диспетчер скачивания файлов.
// Pipeline: расположение файла (кэш/хранилище) → бэкенд → поток, redirect
// или локальная отдача через http.ServeContent (с поддержкой Range).
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
)

// Prometheus-метрики download.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sm_downloads_total",
		Help: "Общее количество запросов на скачивание (по результату).",
	}, []string{"result"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sm_download_duration_seconds",
		Help:    "Длительность скачивания (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_download_bytes_total",
		Help: "Общее количество переданных байт при скачивании.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sm_active_downloads",
		Help: "Количество активных скачиваний.",
	})
)

// DownloadService — диспетчер скачивания файлов.
type DownloadService struct {
	store    *bundlestore.Store
	registry *backend.Registry
	cache    *CacheService
	now      func() time.Time
	logger   *slog.Logger
}

// NewDownloadService создаёт диспетчер скачивания.
func NewDownloadService(
	store *bundlestore.Store,
	registry *backend.Registry,
	cache *CacheService,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		store:    store,
		registry: registry,
		cache:    cache,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "download_service")),
	}
}

// Download отдаёт файл клиенту.
//
// До отправки заголовков возвращает ErrNotFound, ErrNotAvailable
// или *DownloadFailedError: ответ с ошибкой формирует handler.
// Ошибка в процессе streaming только логируется, так как статус уже отправлен.
func (ds *DownloadService) Download(w http.ResponseWriter, r *http.Request, fileID string) error {
	start := time.Now()
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	ctx := r.Context()

	loc, err := ds.locate(ctx, fileID)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return err
	}
	rec := loc.File

	if !rec.HasBackendRef() {
		downloadsTotal.WithLabelValues("not_available").Inc()
		return ErrNotAvailable
	}

	b, err := ds.registry.For(rec)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return &DownloadFailedError{FileID: fileID, Err: err}
	}

	res, err := b.Resolve(ctx, rec)
	if err != nil {
		if errors.Is(err, backend.ErrObjectNotFound) {
			ds.cache.Delete(fileID)
			downloadsTotal.WithLabelValues("not_found").Inc()
			ds.logger.Warn("Объект файла отсутствует в бэкенде",
				slog.String("file_id", fileID),
				slog.String("backend", string(rec.BackendKind())),
			)
			return ErrNotFound
		}
		downloadsTotal.WithLabelValues("error").Inc()
		ds.logger.Error("Ошибка открытия файла в бэкенде",
			slog.String("file_id", fileID),
			slog.String("backend", string(rec.BackendKind())),
			slog.String("error", err.Error()),
		)
		return &DownloadFailedError{FileID: fileID, Err: err}
	}

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		downloadsTotal.WithLabelValues("redirect").Inc()
		ds.logger.Debug("Redirect на объект",
			slog.String("file_id", fileID),
			slog.String("filename", rec.OriginalName),
		)
		return nil
	}
	defer res.Body.Close()

	contentType := rec.Mimetype
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", backend.AttachmentDisposition(rec.OriginalName))

	var written int64
	if rs, ok := res.Body.(io.ReadSeeker); ok {
		// Локальный файл: Range, If-Modified-Since, Content-Length
		cw := &countingWriter{ResponseWriter: w}
		http.ServeContent(cw, r, rec.OriginalName, res.ModTime, rs)
		written = cw.n
	} else {
		if res.ContentLength >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
		}
		w.WriteHeader(http.StatusOK)

		written, err = io.Copy(w, res.Body)
		if err != nil {
			ds.logger.Error("Ошибка streaming download",
				slog.String("file_id", fileID),
				slog.Int64("bytes_written", written),
				slog.String("error", err.Error()),
			)
			downloadsTotal.WithLabelValues("stream_error").Inc()
			downloadBytesTotal.Add(float64(written))
			return nil
		}
	}

	duration := time.Since(start)
	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(duration.Seconds())
	downloadBytesTotal.Add(float64(written))

	ds.logger.Debug("Download завершён",
		slog.String("file_id", fileID),
		slog.String("bundle_id", loc.BundleID),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)
	return nil
}

// locate находит файл в кэше или хранилище.
func (ds *DownloadService) locate(ctx context.Context, fileID string) (*bundlestore.FileLocation, error) {
	if loc, ok := ds.cache.Get(fileID, ds.now()); ok {
		return loc, nil
	}

	loc, err := ds.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ds.cache.Set(*loc)
	return loc, nil
}

// countingWriter считает байты тела ответа.
type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(p)
	cw.n += int64(n)
	return n, err
}
