// sweeper.go — фоновая очистка истёкших бандлов.
//
// Каждый цикл:
//  1. Удаляет истёкшие бандлы из хранилища записей (PruneExpired)
//  2. Удаляет байты их файлов из бэкендов (best-effort, без повторов)
//  3. Инвалидирует кэш расположения файлов
//
// Запускается как горутина с периодическим тикером (SM_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
)

// Prometheus метрики sweeper
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_sweep_runs_total",
		Help: "Общее количество запусков sweeper",
	})

	sweepBundlesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_sweep_bundles_expired_total",
		Help: "Общее количество истёкших бандлов, удалённых sweeper",
	})

	sweepFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_sweep_files_deleted_total",
		Help: "Общее количество файлов, удалённых из бэкендов",
	})

	sweepDeleteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_sweep_delete_errors_total",
		Help: "Общее количество ошибок удаления файлов из бэкендов",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sm_sweep_duration_seconds",
		Help:    "Длительность выполнения sweeper в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска sweeper.
type SweepResult struct {
	// ExpiredBundles — количество удалённых истёкших бандлов
	ExpiredBundles int
	// DeletedFiles — количество файлов, удалённых из бэкендов
	DeletedFiles int
	// Errors — количество ошибок удаления
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweeperService — сервис фоновой очистки истёкших бандлов.
type SweeperService struct {
	store    *bundlestore.Store
	registry *backend.Registry
	cache    *CacheService
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperService создаёт sweeper. cache может быть nil.
func NewSweeperService(
	store *bundlestore.Store,
	registry *backend.Registry,
	cache *CacheService,
	interval time.Duration,
	logger *slog.Logger,
) *SweeperService {
	return &SweeperService{
		store:    store,
		registry: registry,
		cache:    cache,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Первый цикл выполняется сразу после старта.
func (ss *SweeperService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	ss.cancel = cancel
	ss.done = make(chan struct{})

	go ss.run(sweepCtx)

	ss.logger.Info("Sweeper запущен",
		slog.String("interval", ss.interval.String()),
	)
}

// Stop останавливает фоновый процесс и ждёт завершения текущего цикла.
func (ss *SweeperService) Stop() {
	if ss.cancel != nil {
		ss.cancel()
		<-ss.done
	}
	ss.logger.Info("Sweeper остановлен")
}

// run — основной цикл фоновой горутины.
func (ss *SweeperService) run(ctx context.Context) {
	defer close(ss.done)

	ss.RunOnce(ctx)

	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ss.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (ss *SweeperService) RunOnce(ctx context.Context) *SweepResult {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	// Удаление объектов не должно прерываться остановкой сервиса на середине
	ctx = context.WithoutCancel(ctx)

	expired := ss.store.PruneExpired(ctx)
	result.ExpiredBundles = len(expired)

	for _, b := range expired {
		for _, f := range b.Files {
			if ss.cache != nil {
				ss.cache.Delete(f.ID)
			}
			if !f.HasBackendRef() {
				continue
			}

			be, err := ss.registry.For(f)
			if err == nil {
				err = be.Delete(ctx, f)
			}
			if err != nil {
				ss.logger.Error("Sweeper: ошибка удаления файла",
					slog.String("bundle_id", b.ID),
					slog.String("file_id", f.ID),
					slog.String("backend", string(f.BackendKind())),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}

			ss.logger.Debug("Sweeper: файл удалён",
				slog.String("bundle_id", b.ID),
				slog.String("file_id", f.ID),
				slog.String("filename", f.OriginalName),
			)
			result.DeletedFiles++
		}
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepBundlesExpiredTotal.Add(float64(result.ExpiredBundles))
	sweepFilesDeletedTotal.Add(float64(result.DeletedFiles))
	sweepDeleteErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.ExpiredBundles > 0 {
		ss.logger.Info("Sweeper завершён",
			slog.Int("expired_bundles", result.ExpiredBundles),
			slog.Int("deleted_files", result.DeletedFiles),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	} else {
		ss.logger.Debug("Sweeper завершён, истёкших бандлов нет",
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
