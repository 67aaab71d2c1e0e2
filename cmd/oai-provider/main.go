// Точка входа OAI-провайдера — OAI-PMH 2.0 endpoint поверх каталога DLR.
// Загружает конфигурацию, подключает бэкенд данных (DLR API или PostgreSQL),
// оборачивает его кэшем, создаёт диспетчер OAI-PMH и HTTP-сервер
// с health endpoints, topologymetrics и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/oai-provider/internal/api/handlers"
	"github.com/bigkaa/goartstore/oai-provider/internal/api/middleware"
	"github.com/bigkaa/goartstore/oai-provider/internal/config"
	"github.com/bigkaa/goartstore/oai-provider/internal/database"
	"github.com/bigkaa/goartstore/oai-provider/internal/dlrclient"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
	"github.com/bigkaa/goartstore/oai-provider/internal/repository"
	"github.com/bigkaa/goartstore/oai-provider/internal/server"
	"github.com/bigkaa/goartstore/oai-provider/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("OAI-провайдер запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("backend", cfg.Backend),
	)

	if os.Getenv("OAI_DEPHEALTH_GROUP") == "" {
		logger.Warn("OAI_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()
	repoInfo := cfg.RepositoryInfo()

	// 3. Бэкенд данных и его readiness checker
	var (
		backend oaipmh.DataSource
		checker handlers.ReadinessChecker
		targets service.DependencyTargets
	)

	switch cfg.Backend {
	case config.BackendPostgres:
		// 3.1 Миграции и пул подключений
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт
		// через тот же пул, что позволяет обнаружить его исчерпание.
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		backend = repository.NewRecordRepository(pool, repoInfo)
		checker = database.NewReadinessChecker(pool)
		targets = service.DependencyTargets{DB: pgDB, PGConnURL: cfg.DatabaseDSN()}

	default:
		// 3.2 DLR API
		client, err := dlrclient.New(dlrclient.Options{
			BaseURL:    cfg.DLRAPIURL,
			CACertPath: cfg.DLRCACertPath,
			Timeout:    cfg.DLRTimeout,
			MaxRetries: cfg.DLRMaxRetries,
			HealthPath: cfg.DLRHealthPath,
		}, repoInfo, logger)
		if err != nil {
			logger.Error("Ошибка создания DLR-клиента", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("DLR-клиент создан",
			slog.String("url", cfg.DLRAPIURL),
			slog.Int("max_retries", cfg.DLRMaxRetries),
		)

		backend = client
		checker = client
		targets = service.DependencyTargets{DLRURL: cfg.DLRAPIURL, DLRHealthPath: cfg.DLRHealthPath}
	}

	// 4. Кэш наборов и записей
	cache := service.NewCacheService(cfg.RecordCacheSize, cfg.RecordCacheTTL, cfg.SetsCacheTTL)
	source := service.NewCachedSource(backend, cache, logger)

	// 5. Диспетчер OAI-PMH
	dispatcher := oaipmh.NewDispatcher(source, oaipmh.Options{
		PageSize: cfg.PageSize,
		TokenTTL: cfg.TokenTTL,
	}, logger)

	// 6. topologymetrics — мониторинг зависимостей бэкенда
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"oai-provider",
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 7. Handlers
	healthHandler := handlers.NewHealthHandler(cfg.Backend, checker)
	oaiHandler := handlers.NewOAIHandler(dispatcher, logger)
	apiHandler := handlers.NewAPIHandler(oaiHandler, healthHandler, logger)

	// 8. HTTP-сервер: metrics → logging
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 9. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1) //nolint:gocritic // exitAfterDefer
	}

	logger.Info("OAI-провайдер остановлен")
}
