// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// OAI-провайдер мониторит выбранный бэкенд:
//   - DLR API — HTTP checker к health endpoint (critical), бэкенд dlr
//   - PostgreSQL — SQL checker через существующий pgxpool (critical), бэкенд postgres
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Имена зависимостей в метриках.
const (
	depDLR        = "dlr-api"
	depPostgreSQL = "postgresql"
)

// ErrNoDependencies — не задана ни одна зависимость для мониторинга.
var ErrNoDependencies = errors.New("не задано ни одной зависимости для мониторинга")

// DependencyTargets — зависимости, которые нужно мониторить.
// Пустое поле — зависимость не используется выбранным бэкендом.
type DependencyTargets struct {
	// DLRURL — базовый URL DLR API
	DLRURL string
	// DLRHealthPath — путь health endpoint DLR API
	DLRHealthPath string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PGConnURL — URL подключения к PostgreSQL (для метрик/лейблов, не для подключения)
	PGConnURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения (e.g. "oai-provider")
//   - group — имя группы в метриках (OAI_DEPHEALTH_GROUP)
//   - targets — зависимости выбранного бэкенда
//   - checkInterval — интервал проверки зависимостей (OAI_DEPHEALTH_CHECK_INTERVAL)
//   - isEntry — при true добавляет лейбл isentry=yes ко всем зависимостям (DEPHEALTH_ISENTRY)
func NewDephealthService(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, isEntry, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, isEntry,
		logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}

	if targets.DLRURL != "" {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(targets.DLRURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.DLRURL, targets.DLRHealthPath)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		}
		if isEntry {
			depOpts = append(depOpts, dephealth.WithLabel("isentry", "yes"))
		}
		if parsed, err := url.Parse(targets.DLRURL); err == nil && parsed.Scheme == "https" {
			depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP(depDLR, depOpts...))
	}

	if targets.DB != nil {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(targets.PGConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		}
		if isEntry {
			depOpts = append(depOpts, dephealth.WithLabel("isentry", "yes"))
		}
		// Connection pool mode: проверка через *sql.DB поверх pgxpool
		opts = append(opts, dephealth.AddDependency(depPostgreSQL, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)), depOpts...))
	}

	if len(opts) == 1 {
		return nil, ErrNoDependencies
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath объединяет путь базового URL с путём health endpoint:
// "https://dlr.example/api" + "/health" → "/api/health".
func healthPath(baseURL, path string) string {
	if path == "" {
		path = "/health"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return path
	}
	return parsed.JoinPath(path).Path
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
