package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/oai-provider/internal/config"
	"github.com/bigkaa/goartstore/oai-provider/internal/database"
	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

const testPrefix = "oai:dlr.unit.no:"

// setupRepository поднимает PostgreSQL, применяет миграции и заполняет тестовые данные.
func setupRepository(t *testing.T) (*RecordRepository, *pgxpool.Pool) {
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

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")

	t.Setenv("OAI_BASE_URL", "https://oai.dlr.unit.no/oai")
	t.Setenv("OAI_ADMIN_EMAIL", "oai@unit.no")
	t.Setenv("OAI_IDENTIFIER_PREFIX", testPrefix)
	t.Setenv("OAI_BACKEND", "postgres")
	t.Setenv("OAI_DB_HOST", host)
	t.Setenv("OAI_DB_PORT", port.Port())
	t.Setenv("OAI_DB_NAME", "oai_test")
	t.Setenv("OAI_DB_USER", "oai")
	t.Setenv("OAI_DB_PASSWORD", "test-password")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	return NewRecordRepository(pool, cfg.RepositoryInfo()), pool
}

// seedRecords вставляет n записей с датами 2024-01-01 + i дней.
// Чётные записи входят в набор ntnu, нечётные — в uio; каждая пятая удалена.
func seedRecords(t *testing.T, pool *pgxpool.Pool, n int) []string {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx,
		`INSERT INTO oai_sets (set_spec, set_name) VALUES ('uio', 'Universitetet i Oslo'), ('ntnu', 'NTNU')`)
	if err != nil {
		t.Fatalf("вставка наборов: %v", err)
	}

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var id string
		set := "uio"
		if i%2 == 0 {
			set = "ntnu"
		}
		err := pool.QueryRow(ctx,
			`INSERT INTO oai_records (record_id, datestamp, deleted, set_specs, metadata_oai_dc, metadata_qdc)
			 VALUES (gen_random_uuid(), $1, $2, ARRAY[$3], $4, $5) RETURNING record_id::text`,
			base.AddDate(0, 0, i), i%5 == 4, set, "<dc:title>dc</dc:title>", "<dc:title>qdc</dc:title>",
		).Scan(&id)
		if err != nil {
			t.Fatalf("вставка записи %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

// TestRecordRepository_ListSets проверяет порядок наборов.
func TestRecordRepository_ListSets(t *testing.T) {
	repo, pool := setupRepository(t)
	ctx := context.Background()

	sets, err := repo.ListSets(ctx)
	if err != nil {
		t.Fatalf("ListSets() на пустой таблице: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("len(sets) = %d, ожидался 0", len(sets))
	}

	seedRecords(t, pool, 1)
	sets, err = repo.ListSets(ctx)
	if err != nil {
		t.Fatalf("ListSets() вернул ошибку: %v", err)
	}
	if len(sets) != 2 || sets[0].Spec != "ntnu" || sets[1].Name != "Universitetet i Oslo" {
		t.Errorf("sets = %+v, ожидались ntnu, uio", sets)
	}
}

// TestRecordRepository_GetRecord проверяет выборку по идентификатору и формату.
func TestRecordRepository_GetRecord(t *testing.T) {
	repo, pool := setupRepository(t)
	ids := seedRecords(t, pool, 5)
	ctx := context.Background()

	rec, err := repo.GetRecord(ctx, ids[0], model.FormatQDC)
	if err != nil {
		t.Fatalf("GetRecord() вернул ошибку: %v", err)
	}
	if rec.Identifier != testPrefix+ids[0] {
		t.Errorf("Identifier = %q, ожидался %q", rec.Identifier, testPrefix+ids[0])
	}
	if rec.Metadata != "<dc:title>qdc</dc:title>" {
		t.Errorf("Metadata = %q, ожидались метаданные qdc", rec.Metadata)
	}
	if len(rec.Sets) != 1 || rec.Sets[0] != "ntnu" {
		t.Errorf("Sets = %v, ожидался [ntnu]", rec.Sets)
	}

	deleted, err := repo.GetRecord(ctx, ids[4], model.FormatOAIDC)
	if err != nil {
		t.Fatalf("GetRecord() удалённой записи: %v", err)
	}
	if !deleted.Deleted || deleted.Metadata != "" {
		t.Errorf("удалённая запись: Deleted=%v Metadata=%q", deleted.Deleted, deleted.Metadata)
	}

	_, err = repo.GetRecord(ctx, "00000000-0000-0000-0000-000000000000", model.FormatOAIDC)
	if !errors.Is(err, oaipmh.ErrRecordNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrRecordNotFound", err)
	}
}

// TestRecordRepository_ListRecords проверяет фильтры, страницы и общее количество.
func TestRecordRepository_ListRecords(t *testing.T) {
	repo, pool := setupRepository(t)
	seedRecords(t, pool, 30)
	ctx := context.Background()

	all, err := repo.ListRecords(ctx, model.ListQuery{Format: model.FormatOAIDC, Rows: 100})
	if err != nil {
		t.Fatalf("ListRecords() вернул ошибку: %v", err)
	}
	if all.NumFound != 30 || len(all.Records) != 30 {
		t.Errorf("NumFound = %d, len = %d, ожидалось 30", all.NumFound, len(all.Records))
	}
	for i := 1; i < len(all.Records); i++ {
		if all.Records[i].Datestamp.Before(all.Records[i-1].Datestamp) {
			t.Fatalf("нарушен порядок datestamp на позиции %d", i)
		}
	}

	page, err := repo.ListRecords(ctx, model.ListQuery{Format: model.FormatOAIDC, Start: 10, Rows: 5})
	if err != nil {
		t.Fatalf("ListRecords() страницы: %v", err)
	}
	if page.NumFound != 30 || len(page.Records) != 5 {
		t.Errorf("NumFound = %d, len = %d, ожидалось 30 и 5", page.NumFound, len(page.Records))
	}
	if page.Records[0].Identifier != all.Records[10].Identifier {
		t.Errorf("первая запись страницы = %q, ожидалась %q",
			page.Records[0].Identifier, all.Records[10].Identifier)
	}

	filtered, err := repo.ListRecords(ctx, model.ListQuery{
		Format: model.FormatOAIDC,
		From:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Until:  time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC),
		Set:    "ntnu",
		Rows:   100,
	})
	if err != nil {
		t.Fatalf("ListRecords() с фильтрами: %v", err)
	}
	// Дни 5..14 — индексы 4..13, из них чётные: 4, 6, 8, 10, 12
	if filtered.NumFound != 5 {
		t.Errorf("NumFound = %d, ожидалось 5", filtered.NumFound)
	}
}
