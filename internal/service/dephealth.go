// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Share Module мониторит только то, что реально использует:
//   - PostgreSQL — SQL checker через существующий pgxpool (драйвер postgres, critical)
//   - S3-совместимое хранилище — HTTP checker к health endpoint (задан SM_S3_ENDPOINT)
//
// Локальный бэкенд и JSON-снимок не мониторятся: их сбои обрабатываются
// деградацией хранилища записей.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDependencies — нечего мониторить (нет PostgreSQL и внешнего S3 endpoint).
var ErrNoDependencies = errors.New("нет зависимостей для мониторинга")

// DephealthParams — параметры мониторинга.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (SM_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB из pgxpool через stdlib.OpenDBFromPool(); nil — PostgreSQL не мониторится
	DB *sql.DB
	// PgConnURL — URL PostgreSQL (для лейблов, не для подключения)
	PgConnURL string
	// ObjectStoreURL — endpoint S3-совместимого хранилища; пусто — не мониторится
	ObjectStoreURL string
	// ObjectStoreHealthPath — путь health endpoint хранилища
	ObjectStoreHealthPath string
	// CheckInterval — интервал проверки (SM_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
// Возвращает ErrNoDependencies, если мониторить нечего.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	deps := 0

	if p.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)),
			dephealth.FromURL(p.PgConnURL),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		))
		deps++
	}

	if p.ObjectStoreURL != "" {
		osOpts := []dephealth.DependencyOption{
			dephealth.FromURL(p.ObjectStoreURL),
			dephealth.WithHTTPHealthPath(p.ObjectStoreHealthPath),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		}
		opts = append(opts, dephealth.HTTP("object-store", osOpts...))
		deps++
	}

	if deps == 0 {
		return nil, ErrNoDependencies
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
