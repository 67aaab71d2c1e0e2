package oaipmh

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// Форматы дат from/until.
const (
	dayLayout    = "2006-01-02"
	secondLayout = "2006-01-02T15:04:05Z"
)

// setAll — зарезервированный псевдо-набор, означающий «все наборы».
const setAll = "all"

// ValidRequest — запрос, прошедший валидацию, с разрешёнными параметрами.
// Для продолжения (resumptionToken) поля берутся из токена.
type ValidRequest struct {
	Verb Verb
	// Params — параметры в том виде, в каком их прислал клиент
	Params Request
	// Token — декодированный токен (nil для нового запроса)
	Token *ResumptionToken

	Format         model.MetadataFormat
	MetadataPrefix string
	Identifier     OaiIdentifier

	// From, Until — исходные строки (наследуются следующим токеном)
	From  string
	Until string
	// FromTime, UntilTime — границы выборки; Until с дневной точностью — конец дня
	FromTime  time.Time
	UntilTime time.Time
	Set       string
	Start     int
}

// Validator проверяет параметры запроса и их взаимную согласованность.
type Validator struct {
	source   DataSource
	tokenTTL time.Duration
	now      func() time.Time
}

// NewValidator создаёт валидатор.
// tokenTTL — время жизни resumption token (0 — бессрочный).
func NewValidator(source DataSource, tokenTTL time.Duration) *Validator {
	return &Validator{source: source, tokenTTL: tokenTTL, now: time.Now}
}

// Validate проверяет запрос и возвращает разрешённые параметры.
// Ошибки: *ProtocolError (останов на первом нарушенном правиле)
// или ошибка, обёрнутая в ErrInfrastructure.
//
// Порядок: ключи параметров → глагол → обязательные параметры глагола →
// формат → даты → набор → идентификатор.
func (v *Validator) Validate(ctx context.Context, values url.Values) (*ValidRequest, error) {
	req, err := ParseRequest(values)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Verb) == "" {
		return nil, BadVerb("'verb' is missing")
	}
	verb, ok := ParseVerb(req.Verb)
	if !ok {
		return nil, BadVerb("Illegal argument")
	}

	vr := &ValidRequest{Verb: verb, Params: req}

	switch verb {
	case VerbIdentify, VerbListMetadataFormats:
		return vr, nil
	case VerbListSets:
		// ListSets не поддерживает постраничную выдачу
		if req.ResumptionToken != "" {
			return nil, BadResumptionToken("")
		}
		return vr, nil
	case VerbGetRecord:
		return v.validateGetRecord(vr)
	case VerbListIdentifiers, VerbListRecords:
		if req.ResumptionToken != "" {
			return v.validateContinuation(ctx, vr)
		}
		return v.validateFreshList(ctx, vr)
	}
	return nil, BadVerb("Illegal argument")
}

// validateGetRecord — identifier и metadataPrefix обязательны,
// идентификатор проверяется после формата.
func (v *Validator) validateGetRecord(vr *ValidRequest) (*ValidRequest, error) {
	req := vr.Params
	if req.Identifier == "" {
		return nil, BadArgument("identifier is a required argument for the verb " + string(vr.Verb))
	}
	if req.MetadataPrefix == "" {
		return nil, BadArgument("metadataPrefix is a required argument for the verb " + string(vr.Verb))
	}

	format, ok := model.ParseMetadataFormat(req.MetadataPrefix)
	if !ok {
		return nil, CannotDisseminateFormat()
	}
	vr.Format = format
	vr.MetadataPrefix = req.MetadataPrefix

	id, err := NewOaiIdentifier(req.Identifier, v.source.Repository().IdentifierPrefix)
	if err != nil {
		return nil, BadArgument("Not a legal identifier: " + req.Identifier)
	}
	if !v.source.IsValidIdentifier(id.Native()) {
		return nil, IDDoesNotExist()
	}
	vr.Identifier = id
	return vr, nil
}

// validateFreshList — новый запрос ListRecords/ListIdentifiers.
func (v *Validator) validateFreshList(ctx context.Context, vr *ValidRequest) (*ValidRequest, error) {
	req := vr.Params
	if req.MetadataPrefix == "" {
		return nil, BadArgument("metadataPrefix is a required argument for the verb " + string(vr.Verb))
	}

	format, ok := model.ParseMetadataFormat(req.MetadataPrefix)
	if !ok {
		return nil, CannotDisseminateFormat()
	}
	vr.Format = format
	vr.MetadataPrefix = req.MetadataPrefix

	if err := v.resolveDates(vr, req.From, req.Until); err != nil {
		return nil, err
	}

	if err := v.validateSet(ctx, req.Set, CodeBadArgument); err != nil {
		return nil, err
	}
	vr.Set = req.Set
	return vr, nil
}

// validateContinuation — запрос с resumptionToken. Остальные параметры берутся из токена,
// повторно проверяется только набор; прочие проверки токена — защита от подделки.
func (v *Validator) validateContinuation(ctx context.Context, vr *ValidRequest) (*ValidRequest, error) {
	token := DecodeResumptionToken(vr.Params.ResumptionToken)

	if token.Command != string(vr.Verb) {
		return nil, BadResumptionToken("")
	}
	start, ok := token.Start()
	if !ok {
		return nil, BadResumptionToken("")
	}
	if token.Expired(v.now(), v.tokenTTL) {
		return nil, BadResumptionToken("The resumptionToken has expired.")
	}
	format, ok := model.ParseMetadataFormat(token.MetadataPrefix)
	if !ok {
		return nil, BadResumptionToken("")
	}
	if err := v.resolveDates(vr, token.From, token.Until); err != nil {
		return nil, BadResumptionToken("")
	}
	if err := v.validateSet(ctx, token.Set, CodeBadResumptionToken); err != nil {
		return nil, err
	}

	vr.Token = &token
	vr.Format = format
	vr.MetadataPrefix = token.MetadataPrefix
	vr.Set = token.Set
	vr.Start = start
	return vr, nil
}

// resolveDates проверяет from/until и заполняет границы выборки.
func (v *Validator) resolveDates(vr *ValidRequest, from, until string) error {
	var err error
	if from != "" {
		vr.FromTime, err = parseDate(from)
		if err != nil {
			return BadArgument("illegal date FROM: " + from)
		}
	}
	if until != "" {
		vr.UntilTime, err = parseDate(until)
		if err != nil {
			return BadArgument("illegal date UNTIL: " + until)
		}
		if len(until) == len(dayLayout) {
			vr.UntilTime = now.New(vr.UntilTime).EndOfDay()
		}
	}
	if from != "" && until != "" {
		if len(from) != len(until) {
			return BadArgument("different granularities")
		}
		if vr.FromTime.After(vr.UntilTime) {
			return BadArgument("'from' is after 'until'")
		}
	}
	vr.From = from
	vr.Until = until
	return nil
}

// validateSet проверяет набор: "all" или setSpec из списка бэкенда.
// code — код ошибки для неизвестного набора (badArgument или badResumptionToken).
func (v *Validator) validateSet(ctx context.Context, set string, code ErrorCode) error {
	if set == "" || strings.EqualFold(set, setAll) {
		return nil
	}

	sets, err := v.source.ListSets(ctx)
	if errors.Is(err, ErrNoSetHierarchy) {
		return NoSetHierarchy()
	}
	if err != nil {
		return infrastructureError("получение списка наборов", err)
	}
	for _, s := range sets {
		if s.Spec == set {
			return nil
		}
	}
	return &ProtocolError{Code: code, Message: "unknown set name: " + set}
}

// errDateLayout — строка не совпадает ни с одним из допустимых форматов по длине.
var errDateLayout = errors.New("дата должна быть в формате YYYY-MM-DD или YYYY-MM-DDThh:mm:ssZ")

// parseDate разбирает дату в формате YYYY-MM-DD или YYYY-MM-DDThh:mm:ssZ.
// time.Parse допускает дробные секунды сверх макета, поэтому длина проверяется явно.
func parseDate(s string) (time.Time, error) {
	switch len(s) {
	case len(dayLayout):
		return time.Parse(dayLayout, s)
	case len(secondLayout):
		return time.Parse(secondLayout, s)
	}
	return time.Time{}, errDateLayout
}
