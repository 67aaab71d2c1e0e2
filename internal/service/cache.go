// Пакет service — сервисный слой OAI-провайдера: кэширование ответов бэкенда,
// метрики обращений к бэкенду и мониторинг зависимостей.
// CacheService — LRU-кэш записей и списка наборов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// Имена кэшей в метке cache.
const (
	cacheRecords = "records"
	cacheSets    = "sets"
)

// setsKey — единственный ключ кэша наборов.
const setsKey = "sets"

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oai_cache_hits_total",
		Help: "Общее количество попаданий в кэш.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oai_cache_misses_total",
		Help: "Общее количество промахов кэша.",
	}, []string{"cache"})
)

// CacheService — in-memory кэш записей (GetRecord) и списка наборов (ListSets).
// Каждый экземпляр провайдера имеет собственный кэш.
// Нулевой TTL или размер отключает соответствующий кэш.
type CacheService struct {
	records *expirable.LRU[string, *model.Record]
	sets    *expirable.LRU[string, []model.Set]
}

// NewCacheService создаёт кэш.
// recordsSize — максимальное количество записей; recordsTTL — время жизни записи;
// setsTTL — время жизни списка наборов.
func NewCacheService(recordsSize int, recordsTTL, setsTTL time.Duration) *CacheService {
	c := &CacheService{}
	if recordsSize > 0 && recordsTTL > 0 {
		c.records = expirable.NewLRU[string, *model.Record](recordsSize, nil, recordsTTL)
	}
	if setsTTL > 0 {
		c.sets = expirable.NewLRU[string, []model.Set](1, nil, setsTTL)
	}
	return c
}

// recordKey — ключ записи: одна запись кэшируется отдельно для каждого формата.
func recordKey(nativeID string, format model.MetadataFormat) string {
	return format.Prefix() + "/" + nativeID
}

// GetRecord возвращает запись из кэша.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) GetRecord(nativeID string, format model.MetadataFormat) (*model.Record, bool) {
	if c.records == nil {
		return nil, false
	}
	rec, ok := c.records.Get(recordKey(nativeID, format))
	if ok {
		cacheHitsTotal.WithLabelValues(cacheRecords).Inc()
		return rec, true
	}
	cacheMissesTotal.WithLabelValues(cacheRecords).Inc()
	return nil, false
}

// SetRecord добавляет или обновляет запись в кэше.
func (c *CacheService) SetRecord(nativeID string, format model.MetadataFormat, rec *model.Record) {
	if c.records == nil {
		return
	}
	c.records.Add(recordKey(nativeID, format), rec)
}

// GetSets возвращает закэшированный список наборов.
func (c *CacheService) GetSets() ([]model.Set, bool) {
	if c.sets == nil {
		return nil, false
	}
	sets, ok := c.sets.Get(setsKey)
	if ok {
		cacheHitsTotal.WithLabelValues(cacheSets).Inc()
		return sets, true
	}
	cacheMissesTotal.WithLabelValues(cacheSets).Inc()
	return nil, false
}

// SetSets сохраняет список наборов.
func (c *CacheService) SetSets(sets []model.Set) {
	if c.sets == nil {
		return
	}
	c.sets.Add(setsKey, sets)
}

// Purge очищает оба кэша.
func (c *CacheService) Purge() {
	if c.records != nil {
		c.records.Purge()
	}
	if c.sets != nil {
		c.sets.Purge()
	}
}
