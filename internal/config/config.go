// Пакет config — загрузка и валидация конфигурации OAI-провайдера
// из переменных окружения и необязательного YAML-файла описания репозитория.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды данных.
const (
	BackendDLR      = "dlr"
	BackendPostgres = "postgres"
)

// datestampLayout — формат earliestDatestamp.
const datestampLayout = "2006-01-02T15:04:05Z"

// Config содержит все параметры конфигурации OAI-провайдера.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Описание репозитория (Identify) ---

	// BaseURL — базовый URL OAI-PMH endpoint
	BaseURL string
	// RepositoryName — имя репозитория
	RepositoryName string
	// AdminEmail — e-mail администратора
	AdminEmail string
	// EarliestDatestamp — самая ранняя дата изменения записей
	EarliestDatestamp string
	// RepositoryDescription — произвольное описание
	RepositoryDescription string
	// IdentifierPrefix — префикс внешних идентификаторов (oai:dlr.unit.no:)
	IdentifierPrefix string

	// --- Протокол ---

	// PageSize — количество записей на странице ListRecords/ListIdentifiers
	PageSize int
	// TokenTTL — время жизни resumption token (0 — бессрочный)
	TokenTTL time.Duration

	// --- Бэкенд ---

	// Backend — адаптер данных: dlr или postgres
	Backend string

	// DLRAPIURL — базовый URL DLR API
	DLRAPIURL string
	// DLRTimeout — таймаут HTTP-запросов к DLR API
	DLRTimeout time.Duration
	// DLRMaxRetries — количество попыток запроса к DLR API
	DLRMaxRetries int
	// DLRCACertPath — путь к CA-сертификату DLR API
	DLRCACertPath string
	// DLRHealthPath — health endpoint DLR API для мониторинга
	DLRHealthPath string

	// DBHost, DBPort, DBName, DBUser, DBPassword, DBSSLMode — PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	DBSSLMode  string

	// --- Кэш ---

	// SetsCacheTTL — время жизни списка наборов в кэше (0 — кэш отключён)
	SetsCacheTTL time.Duration
	// RecordCacheSize — размер кэша записей (0 — кэш отключён)
	RecordCacheSize int
	// RecordCacheTTL — время жизни записи в кэше
	RecordCacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// DephealthGroup — имя группы в метриках dephealth
	DephealthGroup string
	// DephealthCheckInterval — интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// DephealthIsEntry — добавлять лейбл isentry=yes
	DephealthIsEntry bool
}

// repositoryFile — YAML-файл описания репозитория (OAI_REPOSITORY_FILE).
// Заданные в файле поля переопределяют переменные окружения.
type repositoryFile struct {
	BaseURL           string `yaml:"baseURL"`
	RepositoryName    string `yaml:"repositoryName"`
	AdminEmail        string `yaml:"adminEmail"`
	EarliestDatestamp string `yaml:"earliestDatestamp"`
	Description       string `yaml:"description"`
	IdentifierPrefix  string `yaml:"identifierPrefix"`
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // последовательная загрузка всех переменных
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// OAI_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("OAI_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("OAI_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("OAI_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// OAI_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("OAI_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("OAI_LOG_LEVEL: %w", err)
	}

	// OAI_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("OAI_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("OAI_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("OAI_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OAI_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("OAI_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OAI_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("OAI_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OAI_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("OAI_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OAI_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Описание репозитория ---

	if err := loadRepository(cfg); err != nil {
		return nil, err
	}

	// --- Протокол ---

	// OAI_PAGE_SIZE — размер страницы (по умолчанию 100)
	cfg.PageSize, err = getEnvInt("OAI_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("OAI_PAGE_SIZE: %w", err)
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("OAI_PAGE_SIZE: значение должно быть > 0")
	}

	// OAI_TOKEN_TTL — время жизни resumption token (по умолчанию 24h, 0 — бессрочный)
	cfg.TokenTTL, err = getEnvDuration("OAI_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("OAI_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL < 0 {
		return nil, fmt.Errorf("OAI_TOKEN_TTL: значение должно быть >= 0")
	}

	// --- Бэкенд ---

	cfg.Backend = strings.ToLower(getEnvDefault("OAI_BACKEND", BackendDLR))
	switch cfg.Backend {
	case BackendDLR:
		if err := loadDLR(cfg); err != nil {
			return nil, err
		}
	case BackendPostgres:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("OAI_BACKEND: недопустимый бэкенд %q, допустимые: dlr, postgres", cfg.Backend)
	}

	// --- Кэш ---

	cfg.SetsCacheTTL, err = getEnvDuration("OAI_SETS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OAI_SETS_CACHE_TTL: %w", err)
	}
	cfg.RecordCacheSize, err = getEnvInt("OAI_RECORD_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("OAI_RECORD_CACHE_SIZE: %w", err)
	}
	if cfg.RecordCacheSize < 0 {
		return nil, fmt.Errorf("OAI_RECORD_CACHE_SIZE: значение должно быть >= 0")
	}
	cfg.RecordCacheTTL, err = getEnvDuration("OAI_RECORD_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OAI_RECORD_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("OAI_DEPHEALTH_GROUP", "oai")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("OAI_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OAI_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// loadRepository загружает описание репозитория: переменные окружения,
// затем поля YAML-файла OAI_REPOSITORY_FILE, затем проверка обязательных полей.
func loadRepository(cfg *Config) error {
	cfg.BaseURL = os.Getenv("OAI_BASE_URL")
	cfg.RepositoryName = getEnvDefault("OAI_REPOSITORY_NAME", "DLR OAI-PMH")
	cfg.AdminEmail = os.Getenv("OAI_ADMIN_EMAIL")
	cfg.EarliestDatestamp = getEnvDefault("OAI_EARLIEST_DATESTAMP", "1970-01-01T00:00:00Z")
	cfg.RepositoryDescription = os.Getenv("OAI_REPOSITORY_DESCRIPTION")
	cfg.IdentifierPrefix = getEnvDefault("OAI_IDENTIFIER_PREFIX", "oai:dlr.unit.no:")

	if path := os.Getenv("OAI_REPOSITORY_FILE"); path != "" {
		if err := applyRepositoryFile(cfg, path); err != nil {
			return fmt.Errorf("OAI_REPOSITORY_FILE: %w", err)
		}
	}

	if cfg.BaseURL == "" {
		return fmt.Errorf("OAI_BASE_URL: обязательная переменная окружения не задана")
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("OAI_BASE_URL: некорректный URL %q", cfg.BaseURL)
	}
	if cfg.AdminEmail == "" {
		return fmt.Errorf("OAI_ADMIN_EMAIL: обязательная переменная окружения не задана")
	}
	if _, err := time.Parse(datestampLayout, cfg.EarliestDatestamp); err != nil {
		return fmt.Errorf("OAI_EARLIEST_DATESTAMP: некорректная дата %q (формат YYYY-MM-DDThh:mm:ssZ)", cfg.EarliestDatestamp)
	}
	if cfg.IdentifierPrefix == "" {
		return fmt.Errorf("OAI_IDENTIFIER_PREFIX: префикс не может быть пустым")
	}
	return nil
}

// applyRepositoryFile переопределяет описание репозитория значениями из YAML-файла.
func applyRepositoryFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("чтение файла: %w", err)
	}

	var f repositoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("разбор YAML: %w", err)
	}

	override(&cfg.BaseURL, f.BaseURL)
	override(&cfg.RepositoryName, f.RepositoryName)
	override(&cfg.AdminEmail, f.AdminEmail)
	override(&cfg.EarliestDatestamp, f.EarliestDatestamp)
	override(&cfg.RepositoryDescription, f.Description)
	override(&cfg.IdentifierPrefix, f.IdentifierPrefix)
	return nil
}

func override(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// loadDLR загружает параметры DLR API.
func loadDLR(cfg *Config) error {
	var err error

	cfg.DLRAPIURL, err = getEnvRequired("OAI_DLR_API_URL")
	if err != nil {
		return err
	}
	if u, perr := url.Parse(cfg.DLRAPIURL); perr != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("OAI_DLR_API_URL: некорректный URL %q", cfg.DLRAPIURL)
	}

	cfg.DLRTimeout, err = getEnvDurationPositive("OAI_DLR_TIMEOUT", 30*time.Second)
	if err != nil {
		return fmt.Errorf("OAI_DLR_TIMEOUT: %w", err)
	}
	cfg.DLRMaxRetries, err = getEnvInt("OAI_DLR_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("OAI_DLR_MAX_RETRIES: %w", err)
	}
	if cfg.DLRMaxRetries < 1 {
		return fmt.Errorf("OAI_DLR_MAX_RETRIES: значение должно быть > 0")
	}
	cfg.DLRCACertPath = os.Getenv("OAI_DLR_CA_CERT_PATH")
	cfg.DLRHealthPath = getEnvDefault("OAI_DLR_HEALTH_PATH", "/health")
	return nil
}

// loadDatabase загружает параметры PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("OAI_DB_HOST"); err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("OAI_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("OAI_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("OAI_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("OAI_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("OAI_DB_PASSWORD"); err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("OAI_DB_SSL_MODE", "disable")
	return nil
}

// RepositoryInfo возвращает описание репозитория для Identify.
func (c *Config) RepositoryInfo() model.RepositoryInfo {
	return model.RepositoryInfo{
		Name:              c.RepositoryName,
		BaseURL:           c.BaseURL,
		AdminEmail:        c.AdminEmail,
		ProtocolVersion:   model.ProtocolVersion,
		EarliestDatestamp: c.EarliestDatestamp,
		Granularity:       model.GranularitySecond,
		DeletedRecord:     model.DeletedPersistent,
		Description:       c.RepositoryDescription,
		IdentifierPrefix:  c.IdentifierPrefix,
	}
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(c.DatabaseDSN(), "postgres")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
