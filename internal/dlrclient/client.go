// Пакет dlrclient — адаптер DataSource поверх JSON API каталога DLR.
// Запросы выполняются через pester с повторами и экспоненциальной задержкой.
package dlrclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethgrid/pester"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

// Формат дат в параметрах from/until запроса к DLR API.
const queryTimeLayout = time.RFC3339

// readinessTimeout — таймаут проверки готовности DLR API.
const readinessTimeout = 3 * time.Second

// maxErrorBody — сколько байт тела ответа с ошибкой попадает в сообщение.
const maxErrorBody = 512

// Options — параметры подключения к DLR API.
type Options struct {
	// BaseURL — базовый URL DLR API (например, https://api.dlr.unit.no)
	BaseURL string
	// CACertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул)
	CACertPath string
	// Timeout — таймаут одного HTTP-запроса (OAI_DLR_TIMEOUT)
	Timeout time.Duration
	// MaxRetries — максимальное количество попыток (OAI_DLR_MAX_RETRIES)
	MaxRetries int
	// HealthPath — путь health endpoint относительно BaseURL (по умолчанию /health)
	HealthPath string
}

// Client — HTTP-клиент DLR API, реализует oaipmh.DataSource.
type Client struct {
	http      *pester.Client
	probe     *http.Client
	baseURL   string
	healthURL string
	repo      model.RepositoryInfo
	logger    *slog.Logger
}

// setDTO — элемент ответа GET /oai/sets.
type setDTO struct {
	Spec string `json:"setSpec"`
	Name string `json:"setName"`
}

// searchResponse — ответ GET /oai/records в стиле Solr.
type searchResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Start    int        `json:"start"`
		Docs     []document `json:"docs"`
	} `json:"response"`
}

// New создаёт клиент DLR API.
// repo — описание репозитория для Identify (из конфигурации).
func New(opts Options, repo model.RepositoryInfo, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: opts.Timeout}

	if opts.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата DLR: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат DLR добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	pc := pester.NewExtendedClient(httpClient)
	pc.Concurrency = 1
	pc.MaxRetries = opts.MaxRetries
	if pc.MaxRetries <= 0 {
		pc.MaxRetries = 1
	}
	pc.Backoff = pester.ExponentialJitterBackoff

	healthPath := opts.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	// Readiness-проба идёт без повторов, чтобы не задерживать /health/ready
	probe := &http.Client{Timeout: readinessTimeout, Transport: httpClient.Transport}

	return &Client{
		http:      pc,
		probe:     probe,
		baseURL:   baseURL,
		healthURL: baseURL + "/" + strings.TrimLeft(healthPath, "/"),
		repo:      repo,
		logger:    logger.With(slog.String("component", "dlr_client")),
	}, nil
}

// Repository возвращает описание репозитория.
func (c *Client) Repository() model.RepositoryInfo {
	return c.repo
}

// IsValidIdentifier — идентификаторы DLR являются UUID в каноническом виде.
func (c *Client) IsValidIdentifier(nativeID string) bool {
	if len(nativeID) != 36 {
		return false
	}
	_, err := uuid.Parse(nativeID)
	return err == nil
}

// ListSets запрашивает список наборов.
// GET /oai/sets. 404 — бэкенд не поддерживает наборы.
func (c *Client) ListSets(ctx context.Context) ([]model.Set, error) {
	var dtos []setDTO
	status, err := c.getJSON(ctx, "/oai/sets", nil, &dtos)
	if status == http.StatusNotFound {
		return nil, oaipmh.ErrNoSetHierarchy
	}
	if err != nil {
		return nil, err
	}

	sets := make([]model.Set, 0, len(dtos))
	for _, d := range dtos {
		sets = append(sets, model.Set{Spec: d.Spec, Name: d.Name})
	}
	return sets, nil
}

// GetRecord запрашивает одну запись.
// GET /oai/records/{id}. 404 — oaipmh.ErrRecordNotFound.
func (c *Client) GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error) {
	var doc document
	status, err := c.getJSON(ctx, "/oai/records/"+url.PathEscape(nativeID), nil, &doc)
	if status == http.StatusNotFound {
		return nil, oaipmh.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.Identifier == "" {
		return nil, oaipmh.ErrRecordNotFound
	}
	return doc.toRecord(c.repo.IdentifierPrefix, format), nil
}

// ListRecords запрашивает страницу выборки.
// GET /oai/records?from=&until=&set=&start=&rows=
func (c *Client) ListRecords(ctx context.Context, query model.ListQuery) (*model.RecordsList, error) {
	params := url.Values{}
	if !query.From.IsZero() {
		params.Set("from", query.From.UTC().Format(queryTimeLayout))
	}
	if !query.Until.IsZero() {
		params.Set("until", query.Until.UTC().Format(queryTimeLayout))
	}
	if query.Set != "" {
		params.Set("set", query.Set)
	}
	params.Set("start", strconv.Itoa(query.Start))
	params.Set("rows", strconv.Itoa(query.Rows))

	var resp searchResponse
	if _, err := c.getJSON(ctx, "/oai/records", params, &resp); err != nil {
		return nil, err
	}

	list := &model.RecordsList{
		Records:  make([]*model.Record, 0, len(resp.Response.Docs)),
		NumFound: resp.Response.NumFound,
	}
	for i := range resp.Response.Docs {
		list.Records = append(list.Records, resp.Response.Docs[i].toRecord(c.repo.IdentifierPrefix, query.Format))
	}

	c.logger.Debug("Выборка DLR получена",
		slog.Int("num_found", list.NumFound),
		slog.Int("returned", len(list.Records)),
	)
	return list, nil
}

// CheckReady проверяет доступность DLR API через health endpoint.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *Client) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, http.NoBody)
	if err != nil {
		return "fail", fmt.Sprintf("создание запроса: %v", err)
	}

	resp, err := c.probe.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "fail", fmt.Sprintf("DLR API недоступен: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("DLR API вернул статус %d", resp.StatusCode)
	}
	return "ok", "DLR API доступен"
}

// getJSON выполняет GET-запрос и декодирует JSON-ответ в out.
// Возвращает HTTP-статус (0 при транспортной ошибке).
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) (int, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("создание запроса %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return 0, fmt.Errorf("запрос %s к %s: %w", path, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("DLR API вернул статус %d для %s: %s", resp.StatusCode, path, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("декодирование ответа %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
