package oaipmh

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// tailAllowance — если после страницы остаётся не больше tailAllowance записей,
// они отдаются в той же странице и токен не выдаётся.
const tailAllowance = 50

// DefaultPageSize — размер страницы ListRecords/ListIdentifiers по умолчанию.
const DefaultPageSize = 100

// Options — параметры диспетчера.
type Options struct {
	// PageSize — количество записей на странице
	PageSize int
	// TokenTTL — время жизни resumption token (0 — бессрочный)
	TokenTTL time.Duration
}

// Response — результат обработки запроса.
type Response struct {
	// Body — XML-документ OAI-PMH
	Body string
	// Verb — распознанный глагол (пусто, если глагол некорректен)
	Verb Verb
	// ErrorCode — код протокольной ошибки (пусто при успехе)
	ErrorCode ErrorCode
}

// Dispatcher — диспетчер глаголов OAI-PMH.
// Состояние между запросами не хранится: продолжение передаётся только в токене.
type Dispatcher struct {
	source    DataSource
	validator *Validator
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher создаёт диспетчер поверх адаптера данных.
func NewDispatcher(source DataSource, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Dispatcher{
		source:    source,
		validator: NewValidator(source, opts.TokenTTL),
		opts:      opts,
		logger:    logger.With(slog.String("component", "oai_dispatcher")),
		now:       time.Now,
	}
}

// Handle обрабатывает один запрос OAI-PMH.
// Протокольные ошибки рендерятся в Body (HTTP 200).
// Ошибка возвращается только для инфраструктурных сбоев (ErrInfrastructure).
func (d *Dispatcher) Handle(ctx context.Context, values url.Values) (*Response, error) {
	start := d.now()

	vr, err := d.validator.Validate(ctx, values)
	var payload any
	if err == nil {
		payload, err = d.dispatch(ctx, vr)
	}

	var perr *ProtocolError
	if err != nil {
		var ok bool
		perr, ok = AsProtocolError(err)
		if !ok {
			return nil, err
		}
		d.logger.Debug("Протокольная ошибка OAI-PMH",
			slog.String("code", string(perr.Code)),
			slog.String("message", perr.Message),
		)
		// Для badVerb/badArgument ValidRequest может отсутствовать
		if vr == nil {
			vr = partialRequest(values)
		}
	}

	echo := renderEcho(d.source.Repository().BaseURL, vr, perr)
	body, err := renderDocument(start, echo, payload, perr, d.now().Sub(start))
	if err != nil {
		return nil, err
	}

	resp := &Response{Body: body}
	if vr != nil {
		resp.Verb = vr.Verb
	}
	if perr != nil {
		resp.ErrorCode = perr.Code
	}
	return resp, nil
}

// msgUnavailable — текст тела ответа при сбое бэкенда.
const msgUnavailable = "The repository backend is temporarily unavailable."

// RenderUnavailable строит XML-документ для ответа 503 на инфраструктурную ошибку.
// Причина сбоя (адрес, текст ошибки драйвера) в тело не попадает, только операция.
func (d *Dispatcher) RenderUnavailable(err error) string {
	el := unavailableElement{Message: msgUnavailable}
	var ierr *InfrastructureError
	if errors.As(err, &ierr) {
		el.Operation = ierr.Op
	}

	echo := requestEcho{BaseURL: d.source.Repository().BaseURL}
	body, rerr := renderDocument(d.now(), echo, el, nil, 0)
	if rerr != nil {
		d.logger.Error("Ошибка рендеринга ответа 503", slog.String("error", rerr.Error()))
		return xml.Header + "<unavailable>" + msgUnavailable + "</unavailable>\n"
	}
	return body
}

// dispatch выбирает сценарий по глаголу.
func (d *Dispatcher) dispatch(ctx context.Context, vr *ValidRequest) (any, error) {
	switch vr.Verb {
	case VerbIdentify:
		return renderIdentify(d.source.Repository()), nil
	case VerbListMetadataFormats:
		return renderFormats(), nil
	case VerbListSets:
		return d.listSets(ctx)
	case VerbGetRecord:
		return d.getRecord(ctx, vr)
	case VerbListIdentifiers, VerbListRecords:
		return d.listRecords(ctx, vr)
	}
	return nil, BadVerb("Illegal argument")
}

// listSets — полный список наборов без постраничной выдачи.
// Любой сбой бэкенда здесь — noSetHierarchy.
func (d *Dispatcher) listSets(ctx context.Context) (any, error) {
	sets, err := d.source.ListSets(ctx)
	if err != nil {
		d.logger.Warn("Бэкенд не вернул список наборов",
			slog.String("error", err.Error()),
		)
		return nil, NoSetHierarchy()
	}
	if len(sets) == 0 {
		return nil, NoSetHierarchy()
	}
	return renderSets(sets), nil
}

// getRecord — одна запись по идентификатору.
func (d *Dispatcher) getRecord(ctx context.Context, vr *ValidRequest) (any, error) {
	rec, err := d.source.GetRecord(ctx, vr.Identifier.Native(), vr.Format)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, IDDoesNotExist()
		}
		return nil, infrastructureError("получение записи "+vr.Identifier.String(), err)
	}
	if rec == nil {
		return nil, IDDoesNotExist()
	}
	return getRecordPayload{Record: renderRecord(rec, vr.Format)}, nil
}

// listRecords — страница ListRecords/ListIdentifiers и новый токен.
func (d *Dispatcher) listRecords(ctx context.Context, vr *ValidRequest) (any, error) {
	set := vr.Set
	if strings.EqualFold(set, setAll) {
		set = ""
	}

	list, err := d.source.ListRecords(ctx, model.ListQuery{
		From:   vr.FromTime,
		Until:  vr.UntilTime,
		Set:    set,
		Format: vr.Format,
		Start:  vr.Start,
		Rows:   d.opts.PageSize + tailAllowance,
	})
	if err != nil {
		return nil, infrastructureError("получение страницы записей", err)
	}
	if list == nil || list.NumFound == 0 || len(list.Records) == 0 {
		return nil, NoRecordsMatch()
	}

	page := list.Records
	if len(page) > d.opts.PageSize && list.NumFound-(vr.Start+d.opts.PageSize) > tailAllowance {
		page = page[:d.opts.PageSize]
	}

	token := d.nextToken(vr, list.NumFound, len(page))

	if vr.Verb == VerbListIdentifiers {
		p := listIdentifiersPayload{Headers: make([]headerElement, 0, len(page)), Token: token}
		for _, rec := range page {
			p.Headers = append(p.Headers, renderHeader(rec))
		}
		return p, nil
	}

	p := listRecordsPayload{Records: make([]recordElement, 0, len(page)), Token: token}
	for _, rec := range page {
		p.Records = append(p.Records, renderRecord(rec, vr.Format))
	}
	return p, nil
}

// nextToken выдаёт токен, только если после страницы остаётся больше tailAllowance записей.
// Для последней страницы продолжения возвращается пустой элемент.
func (d *Dispatcher) nextToken(vr *ValidRequest, numFound, pageLength int) *tokenElement {
	next := vr.Start + pageLength
	remaining := numFound - next

	if remaining <= tailAllowance {
		if vr.Token != nil {
			return renderToken("", numFound, vr.Start, time.Time{})
		}
		return nil
	}

	issued := d.now().UTC()
	token := ResumptionToken{
		Command:        string(vr.Verb),
		Set:            vr.Set,
		From:           vr.From,
		Until:          vr.Until,
		MetadataPrefix: vr.MetadataPrefix,
		StartPosition:  strconv.Itoa(next),
		Issued:         issued,
	}

	var expires time.Time
	if d.opts.TokenTTL > 0 {
		expires = issued.Add(d.opts.TokenTTL)
	}
	return renderToken(token.Encode(), numFound, vr.Start, expires)
}

// setClock подменяет источник времени диспетчера и валидатора.
func (d *Dispatcher) setClock(now func() time.Time) {
	d.now = now
	d.validator.now = now
}

// partialRequest восстанавливает глагол для эха запроса при ошибке валидации.
func partialRequest(values url.Values) *ValidRequest {
	verb, ok := ParseVerb(values.Get(paramVerb))
	if !ok {
		return nil
	}
	req := Request{
		Verb:            values.Get(paramVerb),
		Identifier:      values.Get(paramIdentifier),
		MetadataPrefix:  values.Get(paramMetadataPrefix),
		From:            values.Get(paramFrom),
		Until:           values.Get(paramUntil),
		Set:             values.Get(paramSet),
		ResumptionToken: values.Get(paramResumptionToken),
	}
	return &ValidRequest{Verb: verb, Params: req}
}

// String — краткое описание ответа для логов.
func (r *Response) String() string {
	if r.ErrorCode != "" {
		return fmt.Sprintf("%s: %s", r.Verb, r.ErrorCode)
	}
	return string(r.Verb)
}
