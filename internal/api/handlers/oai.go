// oai.go — обработчик endpoint /oai (GET и POST).
// Передаёт аргументы запроса в диспетчер OAI-PMH и отдаёт XML-документ.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/goartstore/oai-provider/internal/api/errors"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

// Значения лейбла outcome метрики oai_requests_total.
const (
	outcomeOK             = "ok"
	outcomeInfrastructure = "infrastructure"
	outcomeInternal       = "internal"
	verbUnknown           = "unknown"
)

// oaiRequestsTotal — запросы OAI-PMH по глаголу и результату
// (ok, код протокольной ошибки, infrastructure или internal).
var oaiRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oai_requests_total",
		Help: "Количество запросов OAI-PMH по глаголу и результату",
	},
	[]string{"verb", "outcome"},
)

// retryAfter — значение заголовка Retry-After (секунды) для ответа 503.
const retryAfter = "60"

// ProtocolHandler — обработка одного запроса OAI-PMH.
// Реализуется oaipmh.Dispatcher.
type ProtocolHandler interface {
	Handle(ctx context.Context, values url.Values) (*oaipmh.Response, error)
	// RenderUnavailable — XML-тело ответа 503 для инфраструктурной ошибки.
	RenderUnavailable(err error) string
}

// OAIHandler — HTTP-обработчик протокола OAI-PMH.
type OAIHandler struct {
	protocol ProtocolHandler
	logger   *slog.Logger
}

// NewOAIHandler создаёт обработчик /oai.
func NewOAIHandler(protocol ProtocolHandler, logger *slog.Logger) *OAIHandler {
	return &OAIHandler{
		protocol: protocol,
		logger:   logger.With(slog.String("component", "oai_handler")),
	}
}

// ServeOAI обрабатывает GET (query string) и POST (application/x-www-form-urlencoded).
// Протокольные ошибки — 200 с XML-телом, сбой бэкенда — 503 с XML-телом и Retry-After.
func (h *OAIHandler) ServeOAI(w http.ResponseWriter, r *http.Request) {
	// При ошибке разбора r.Form содержит то, что удалось разобрать;
	// недопустимые аргументы дальше отклонит валидатор.
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Ошибка разбора аргументов запроса", slog.String("error", err.Error()))
	}

	resp, err := h.protocol.Handle(r.Context(), r.Form)
	if err != nil {
		verb := requestVerb(r.Form)

		if errors.Is(err, oaipmh.ErrInfrastructure) {
			oaiRequestsTotal.WithLabelValues(verb, outcomeInfrastructure).Inc()
			h.logger.Error("Бэкенд недоступен",
				slog.String("verb", verb),
				slog.String("error", err.Error()),
			)
			w.Header().Set("Retry-After", retryAfter)
			writeXML(w, http.StatusServiceUnavailable, h.protocol.RenderUnavailable(err))
			return
		}
		oaiRequestsTotal.WithLabelValues(verb, outcomeInternal).Inc()
		h.logger.Error("Ошибка обработки запроса OAI-PMH",
			slog.String("verb", verb),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	verb := string(resp.Verb)
	if verb == "" {
		verb = verbUnknown
	}
	outcome := outcomeOK
	if resp.ErrorCode != "" {
		outcome = string(resp.ErrorCode)
	}
	oaiRequestsTotal.WithLabelValues(verb, outcome).Inc()

	writeXML(w, http.StatusOK, resp.Body)
}

// writeXML записывает XML-документ с указанным статусом.
func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requestVerb — глагол запроса для лейбла метрики (unknown, если не распознан).
func requestVerb(values url.Values) string {
	if verb, ok := oaipmh.ParseVerb(values.Get("verb")); ok {
		return string(verb)
	}
	return verbUnknown
}
