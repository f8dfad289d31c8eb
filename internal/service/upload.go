// upload.go — оркестратор загрузки бандла.
//
// Все файлы запроса параллельно загружаются в основной бэкенд.
// Бандл становится видимым только если загружены все файлы и запись
// сохранена; иначе уже загруженные объекты удаляются компенсирующими
// вызовами Delete и клиент получает UploadFailedError.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sm_uploads_total",
		Help: "Общее количество загрузок бандлов (committed, aborted).",
	}, []string{"result"})

	uploadFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_upload_files_total",
		Help: "Общее количество файлов в зафиксированных бандлах.",
	})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_upload_bytes_total",
		Help: "Общее количество байт в зафиксированных бандлах.",
	})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sm_upload_duration_seconds",
		Help:    "Длительность загрузки бандла в бэкенд (от начала до фиксации).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
	})
)

// UploadConfig — параметры оркестратора.
type UploadConfig struct {
	// TTL бандла в минутах
	DefaultExpiryMinutes int
	MinExpiryMinutes     int
	MaxExpiryMinutes     int
	// Concurrency — параллельных загрузок в бэкенд на один запрос
	Concurrency int
}

// UploadService — оркестратор загрузки бандлов.
type UploadService struct {
	store    *bundlestore.Store
	registry *backend.Registry
	cfg      UploadConfig
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewUploadService создаёт оркестратор загрузки.
func NewUploadService(
	store *bundlestore.Store,
	registry *backend.Registry,
	cfg UploadConfig,
	logger *slog.Logger,
) *UploadService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &UploadService{
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// ParseExpiry преобразует значение поля expiry (минуты) в TTL.
// Пустое, нечисловое или неположительное значение — TTL по умолчанию;
// остальные ограничиваются диапазоном [min, max].
func (us *UploadService) ParseExpiry(raw string) time.Duration {
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil || minutes <= 0:
		minutes = us.cfg.DefaultExpiryMinutes
	case minutes < us.cfg.MinExpiryMinutes:
		minutes = us.cfg.MinExpiryMinutes
	case minutes > us.cfg.MaxExpiryMinutes:
		minutes = us.cfg.MaxExpiryMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Upload загружает файлы в основной бэкенд и фиксирует бандл.
// Временные файлы удаляются в любом случае.
//
// Начатая загрузка не отменяется вместе с ctx: файлы уже приняты,
// и бандл доводится до commit или отката. Время отдельных вызовов
// ограничивают сами бэкенды и носитель снимка.
func (us *UploadService) Upload(ctx context.Context, files []spool.TempFile, rawExpiry string) (*model.Bundle, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	ctx = context.WithoutCancel(ctx)
	defer us.removeTempFiles(files)

	start := time.Now()
	ttl := us.ParseExpiry(rawExpiry)
	primary := us.registry.Primary()

	records := make([]model.FileRecord, len(files))
	errs := make([]error, len(files))
	uploaded := make([]bool, len(files))

	var g errgroup.Group
	g.SetLimit(us.cfg.Concurrency)

	for i, tf := range files {
		g.Go(func() error {
			rec := model.FileRecord{
				ID:           us.newID(),
				OriginalName: tf.OriginalName,
				StorageKey:   tf.StorageKey,
				Mimetype:     tf.Mimetype,
				Size:         tf.Size,
				ResourceKind: Classify(tf.OriginalName, tf.Mimetype),
			}

			us.logger.Info("Загрузка файла",
				slog.String("filename", tf.OriginalName),
				slog.String("category", FileCategory(tf.OriginalName, tf.Mimetype)),
				slog.String("size", FormatBytes(tf.Size)),
				slog.String("resource_kind", string(rec.ResourceKind)),
				slog.String("backend", string(primary.Kind())),
			)

			out, err := primary.Upload(ctx, tf, rec)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", tf.OriginalName, err)
				return nil
			}
			records[i] = out
			uploaded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	// Первый сбой в порядке запроса
	for i, err := range errs {
		if err == nil {
			continue
		}
		us.compensate(ctx, records, uploaded)
		uploadsTotal.WithLabelValues("aborted").Inc()
		us.logger.Error("Загрузка бандла отменена",
			slog.String("filename", files[i].OriginalName),
			slog.Int("files", len(files)),
			slog.String("error", err.Error()),
		)
		return nil, &UploadFailedError{FileName: files[i].OriginalName, Err: errors.Join(errs...)}
	}

	now := us.now().UTC()
	bundle := model.Bundle{
		ID:         us.newID(),
		UploadDate: now,
		ExpiresAt:  now.Add(ttl),
		Files:      records,
	}

	if err := us.store.Save(ctx, bundle); err != nil {
		us.compensate(ctx, records, uploaded)
		uploadsTotal.WithLabelValues("aborted").Inc()
		us.logger.Error("Ошибка сохранения записи бандла",
			slog.String("bundle_id", bundle.ID),
			slog.String("error", err.Error()),
		)
		return nil, &UploadFailedError{Err: fmt.Errorf("сохранение записи бандла: %w", err)}
	}

	var total int64
	for _, r := range records {
		total += r.Size
	}
	duration := time.Since(start)
	uploadsTotal.WithLabelValues("committed").Inc()
	uploadFilesTotal.Add(float64(len(records)))
	uploadBytesTotal.Add(float64(total))
	uploadDuration.Observe(duration.Seconds())

	us.logger.Info("Бандл зафиксирован",
		slog.String("bundle_id", bundle.ID),
		slog.Int("files", len(records)),
		slog.String("size", FormatBytes(total)),
		slog.Time("expires_at", bundle.ExpiresAt),
		slog.Duration("duration", duration),
	)

	return &bundle, nil
}

// compensate удаляет из бэкенда уже загруженные файлы отменённого бандла.
// Ошибки удаления только логируются.
func (us *UploadService) compensate(ctx context.Context, records []model.FileRecord, uploaded []bool) {
	ctx = context.WithoutCancel(ctx)
	for i, rec := range records {
		if !uploaded[i] {
			continue
		}
		b, err := us.registry.For(rec)
		if err == nil {
			err = b.Delete(ctx, rec)
		}
		if err != nil {
			us.logger.Warn("Компенсирующее удаление не удалось",
				slog.String("file_id", rec.ID),
				slog.String("filename", rec.OriginalName),
				slog.String("error", err.Error()),
			)
		}
	}
}

// removeTempFiles удаляет временные файлы запроса.
func (us *UploadService) removeTempFiles(files []spool.TempFile) {
	for _, tf := range files {
		if err := spool.Remove(tf); err != nil {
			us.logger.Warn("Ошибка удаления временного файла",
				slog.String("path", tf.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}
