// source.go — DataSource с кэшированием и метриками поверх адаптера бэкенда.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

// Операции бэкенда в метке operation.
const (
	opListSets    = "list_sets"
	opGetRecord   = "get_record"
	opListRecords = "list_records"
)

// Prometheus-метрики обращений к бэкенду.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oai_backend_requests_total",
		Help: "Общее количество обращений к бэкенду.",
	}, []string{"operation", "status"})
	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oai_backend_duration_seconds",
		Help:    "Длительность обращений к бэкенду.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// CachedSource реализует oaipmh.DataSource: кэширует ListSets и GetRecord,
// ListRecords передаёт в бэкенд без кэширования.
type CachedSource struct {
	backend oaipmh.DataSource
	cache   *CacheService
	logger  *slog.Logger
}

// NewCachedSource создаёт DataSource поверх адаптера бэкенда.
func NewCachedSource(backend oaipmh.DataSource, cache *CacheService, logger *slog.Logger) *CachedSource {
	return &CachedSource{
		backend: backend,
		cache:   cache,
		logger:  logger.With(slog.String("component", "cached_source")),
	}
}

// Repository возвращает описание репозитория.
func (s *CachedSource) Repository() model.RepositoryInfo {
	return s.backend.Repository()
}

// IsValidIdentifier проверяет форму идентификатора бэкенда.
func (s *CachedSource) IsValidIdentifier(nativeID string) bool {
	return s.backend.IsValidIdentifier(nativeID)
}

// ListSets возвращает список наборов. Пустой список и ошибки не кэшируются.
func (s *CachedSource) ListSets(ctx context.Context) ([]model.Set, error) {
	if sets, ok := s.cache.GetSets(); ok {
		return sets, nil
	}

	start := time.Now()
	sets, err := s.backend.ListSets(ctx)
	s.observe(opListSets, start, err)
	if err != nil {
		return nil, err
	}

	if len(sets) > 0 {
		s.cache.SetSets(sets)
	}
	return sets, nil
}

// GetRecord возвращает запись в заданном формате.
// Сначала проверяет кэш, при промахе — запрос к бэкенду, результат кэшируется.
func (s *CachedSource) GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error) {
	if rec, ok := s.cache.GetRecord(nativeID, format); ok {
		s.logger.Debug("Кэш hit для записи", slog.String("id", nativeID))
		return rec, nil
	}

	start := time.Now()
	rec, err := s.backend.GetRecord(ctx, nativeID, format)
	s.observe(opGetRecord, start, err)
	if err != nil {
		return nil, err
	}

	s.cache.SetRecord(nativeID, format, rec)
	return rec, nil
}

// ListRecords возвращает страницу выборки.
func (s *CachedSource) ListRecords(ctx context.Context, query model.ListQuery) (*model.RecordsList, error) {
	start := time.Now()
	list, err := s.backend.ListRecords(ctx, query)
	s.observe(opListRecords, start, err)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = &model.RecordsList{}
	}

	s.logger.Debug("Страница получена",
		slog.Int("start", query.Start),
		slog.Int("returned", len(list.Records)),
		slog.Int("num_found", list.NumFound),
		slog.Duration("duration", time.Since(start)),
	)
	return list, nil
}

// observe обновляет метрики обращения к бэкенду.
func (s *CachedSource) observe(op string, start time.Time, err error) {
	backendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, oaipmh.ErrRecordNotFound):
		status = "not_found"
	default:
		status = "error"
		s.logger.Warn("Ошибка обращения к бэкенду",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
	}
	backendRequestsTotal.WithLabelValues(op, status).Inc()
}
