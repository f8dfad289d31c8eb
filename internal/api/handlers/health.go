// health.go — обработчики health endpoints Share Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище записей, PostgreSQL, зависимости)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/share-module/internal/config"
	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// DependencyHealth — состояние зависимостей topologymetrics.
type DependencyHealth interface {
	Health() map[string]bool
}

// StoreChecker — readiness хранилища записей бандлов.
// Режим volatile не блокирует трафик, но отмечается как degraded.
type StoreChecker struct {
	store *bundlestore.Store
}

// NewStoreChecker создаёт проверку режима хранилища записей.
func NewStoreChecker(store *bundlestore.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

// CheckReady возвращает degraded, если снимок не сохраняется.
func (c *StoreChecker) CheckReady() (status, message string) {
	if c.store.Mode() == bundlestore.ModeVolatile {
		return statusDegraded, "снимок недоступен, записи хранятся только в памяти"
	}
	return statusOK, ""
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storeChecker ReadinessChecker
	pgChecker    ReadinessChecker
	deps         DependencyHealth
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker и deps могут быть nil: драйвер file и отсутствие зависимостей
// для мониторинга.
func NewHealthHandler(storeChecker, pgChecker ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		storeChecker: storeChecker,
		pgChecker:    pgChecker,
		deps:         deps,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult),
	}

	if h.storeChecker != nil {
		status, msg := h.storeChecker.CheckReady()
		resp.Checks["store"] = healthCheckResult{Status: status, Message: msg}
	}

	if h.pgChecker != nil {
		status, msg := h.pgChecker.CheckReady()
		resp.Checks["postgresql"] = healthCheckResult{Status: status, Message: msg}
	}

	// Недоступная внешняя зависимость — degraded: запросы к ней
	// завершатся ошибкой, остальной функционал работает.
	if h.deps != nil {
		health := h.deps.Health()
		names := make([]string, 0, len(health))
		for name := range health {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, exists := resp.Checks[name]; exists {
				continue
			}
			if health[name] {
				resp.Checks[name] = healthCheckResult{Status: statusOK}
			} else {
				resp.Checks[name] = healthCheckResult{Status: statusDegraded, Message: "проверка зависимости не проходит"}
			}
		}
	}

	statuses := make([]string, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		statuses = append(statuses, c.Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

const serviceName = "share-module"

// Константы статусов health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
