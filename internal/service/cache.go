// Пакет service — бизнес-логика Share Module.
// CacheService — LRU-кэш расположения файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/share-module/internal/storage/bundlestore"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_cache_hits_total",
		Help: "Общее количество попаданий в кэш расположения файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sm_cache_misses_total",
		Help: "Общее количество промахов кэша расположения файлов.",
	})
)

// CacheService — кэш fileID → (запись файла, expiresAt бандла).
// Производный индекс: источником истины остаётся хранилище записей.
// Запись истёкшего бандла никогда не возвращается, независимо от TTL кэша.
type CacheService struct {
	cache *expirable.LRU[string, bundlestore.FileLocation]
}

// NewCacheService создаёт кэш с указанным максимальным размером и TTL записи.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	return &CacheService{
		cache: expirable.NewLRU[string, bundlestore.FileLocation](maxSize, nil, ttl),
	}
}

// Get возвращает расположение файла, если оно есть в кэше
// и бандл не истёк на момент now.
func (c *CacheService) Get(fileID string, now time.Time) (*bundlestore.FileLocation, bool) {
	loc, ok := c.cache.Get(fileID)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	if !loc.ExpiresAt.After(now) {
		c.cache.Remove(fileID)
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return &loc, true
}

// Set добавляет или обновляет запись.
func (c *CacheService) Set(loc bundlestore.FileLocation) {
	c.cache.Add(loc.File.ID, loc)
}

// Delete удаляет запись (инвалидация после sweep или пропажи объекта).
func (c *CacheService) Delete(fileID string) {
	c.cache.Remove(fileID)
}

// Len возвращает количество записей.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
