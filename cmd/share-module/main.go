// main.go — точка входа Share Module.
// Инициализация: config → logger → хранилище записей (file или PostgreSQL) →
// бэкенды → сервисы (upload, download, sweeper, dephealth) → HTTP-сервер.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/share-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/share-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/share-module/internal/config"
	"github.com/bigkaa/goartstore/share-module/internal/database"
	"github.com/bigkaa/goartstore/share-module/internal/server"
	"github.com/bigkaa/goartstore/share-module/internal/service"
	"github.com/bigkaa/goartstore/share-module/internal/storage/backend"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Share Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_driver", cfg.StoreDriver),
		slog.Bool("remote_backend", cfg.RemoteEnabled()),
	)

	ctx := context.Background()

	// 3. Носитель снимка записей бандлов
	var (
		medium    bundlestore.Medium
		pgChecker handlers.ReadinessChecker
		pgDB      *sql.DB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// *sql.DB поверх pgxpool для pgcheck topologymetrics
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		medium = bundlestore.NewPgMedium(pool)
		pgChecker = database.NewReadinessChecker(pool)
	default:
		medium = bundlestore.NewFileMedium(cfg.StorePath)
	}

	store := bundlestore.Open(ctx, medium, logger)

	// 4. Spool и бэкенды
	sp, err := spool.New(filepath.Join(cfg.UploadDir, "tmp"), cfg.MaxFileSize)
	if err != nil {
		logger.Error("Ошибка инициализации spool", slog.String("error", err.Error()))
		os.Exit(1)
	}

	local, err := backend.NewLocal(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации локального бэкенда", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Новые файлы идут в основной бэкенд; записи другого вида
	// обслуживаются по своему дискриминатору.
	registry := backend.NewRegistry(local)
	if cfg.RemoteEnabled() {
		client, err := backend.NewS3Client(ctx, backend.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			logger.Error("Ошибка создания S3 клиента", slog.String("error", err.Error()))
			os.Exit(1)
		}
		remote := backend.NewRemote(client, backend.RemoteOptions{
			Bucket:     cfg.S3Bucket,
			Prefix:     cfg.S3Prefix,
			PresignTTL: cfg.PresignTTL,
			Timeout:    cfg.RemoteTimeout,
		}, logger)
		registry = backend.NewRegistry(remote, local)
	}

	// 5. Сервисы
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)

	uploadSvc := service.NewUploadService(store, registry, service.UploadConfig{
		DefaultExpiryMinutes: cfg.DefaultExpiryMinutes,
		MinExpiryMinutes:     cfg.MinExpiryMinutes,
		MaxExpiryMinutes:     cfg.MaxExpiryMinutes,
		Concurrency:          cfg.UploadConcurrency,
	}, logger)
	downloadSvc := service.NewDownloadService(store, registry, cache, logger)

	sweeperSvc := service.NewSweeperService(store, registry, cache, cfg.SweepInterval, logger)
	sweeperSvc.Start(ctx)

	// 6. topologymetrics: PostgreSQL и S3-совместимый endpoint, если заданы
	var depHealth handlers.DependencyHealth
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:             "share-module",
		Group:                 cfg.DephealthGroup,
		DB:                    pgDB,
		PgConnURL:             cfg.DatabaseURL("postgres"),
		ObjectStoreURL:        objectStoreURL(cfg),
		ObjectStoreHealthPath: cfg.S3HealthPath,
		CheckInterval:         cfg.DephealthCheckInterval,
	}, logger)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Info("Мониторинг зависимостей не требуется")
		dephealthSvc = nil
	case err != nil:
		logger.Warn("Мониторинг зависимостей недоступен", slog.String("error", err.Error()))
		dephealthSvc = nil
	default:
		if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска мониторинга зависимостей", slog.String("error", err.Error()))
			dephealthSvc = nil
		} else {
			depHealth = dephealthSvc
		}
	}

	// 7. HTTP handlers
	healthHandler := handlers.NewHealthHandler(handlers.NewStoreChecker(store), pgChecker, depHealth)
	apiHandler := handlers.NewAPIHandler(healthHandler, sp, store, uploadSvc, downloadSvc, logger)

	// 8. HTTP-сервер: metrics → logging
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 9. Запуск сервера (блокирующий вызов с graceful shutdown)
	runErr := srv.Run()

	// 10. Остановка фоновых сервисов
	sweeperSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("Share Module остановлен")
}

// objectStoreURL — endpoint для HTTP-проверки. Для AWS без явного endpoint
// проверка не выполняется.
func objectStoreURL(cfg *config.Config) string {
	if !cfg.RemoteEnabled() {
		return ""
	}
	return cfg.S3Endpoint
}
