package bundlestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики хранилища записей.
var (
	// storeDurable — 1 в режиме durable, 0 в режиме памяти.
	storeDurable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sm_store_durable",
		Help: "Режим хранилища записей: 1 — снимок сохраняется, 0 — только память.",
	})

	storeBundles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sm_store_bundles",
		Help: "Количество бандлов в хранилище (включая ещё не удалённые истёкшие).",
	})

	storeWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_store_write_errors_total",
		Help: "Ошибки записи снимка в носитель.",
	})
)

// observeMode обновляет gauge режима.
func observeMode(m Mode) {
	if m == ModeDurable {
		storeDurable.Set(1)
		return
	}
	storeDurable.Set(0)
}
