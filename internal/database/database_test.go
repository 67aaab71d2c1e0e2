package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/oai-provider/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("oai_test"),
		postgres.WithUsername("oai"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("OAI_BASE_URL", "https://oai.dlr.unit.no/oai")
	t.Setenv("OAI_ADMIN_EMAIL", "oai@unit.no")
	t.Setenv("OAI_BACKEND", "postgres")
	t.Setenv("OAI_DB_HOST", host)
	t.Setenv("OAI_DB_PORT", port.Port())
	t.Setenv("OAI_DB_NAME", "oai_test")
	t.Setenv("OAI_DB_USER", "oai")
	t.Setenv("OAI_DB_PASSWORD", "test-password")
	t.Setenv("OAI_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// TestConnectMigrate проверяет подключение, миграции и readiness.
func TestConnectMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторный запуск — ErrNoChange не является ошибкой
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate() вернул ошибку: %v", err)
	}

	for _, table := range []string{"oai_records", "oai_sets"} {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("проверка таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("таблица %s не создана", table)
		}
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = (%q, %q), ожидался ok", status, msg)
	}
}
