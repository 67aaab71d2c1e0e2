package oaipmh

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// XML-пространства имён и схемы OAI-PMH.
const (
	oaiNamespace      = "http://www.openarchives.org/OAI/2.0/"
	xsiNamespace      = "http://www.w3.org/2001/XMLSchema-instance"
	oaiSchemaLocation = "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
)

// datestampLayout — ISO-8601 UTC с суффиксом Z.
const datestampLayout = "2006-01-02T15:04:05Z"

// --- Конверт ответа ---

// envelope — корневой элемент <OAI-PMH>.
type envelope struct {
	XMLName        xml.Name      `xml:"OAI-PMH"`
	Xmlns          string        `xml:"xmlns,attr"`
	XmlnsXsi       string        `xml:"xmlns:xsi,attr"`
	SchemaLocation string        `xml:"xsi:schemaLocation,attr"`
	ResponseDate   string        `xml:"responseDate"`
	Request        requestEcho   `xml:"request"`
	Error          *errorElement `xml:"error,omitempty"`
	// Payload — элемент, названный по глаголу (Identify, ListRecords, ...)
	Payload any
}

// requestEcho — элемент <request>: baseURL и параметры, определившие ответ.
type requestEcho struct {
	BaseURL         string `xml:",chardata"`
	Verb            string `xml:"verb,attr,omitempty"`
	Identifier      string `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
	From            string `xml:"from,attr,omitempty"`
	Until           string `xml:"until,attr,omitempty"`
	Set             string `xml:"set,attr,omitempty"`
	ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
}

type errorElement struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// --- Элементы глаголов ---

type identifyPayload struct {
	XMLName           xml.Name        `xml:"Identify"`
	RepositoryName    string          `xml:"repositoryName"`
	BaseURL           string          `xml:"baseURL"`
	ProtocolVersion   string          `xml:"protocolVersion"`
	AdminEmail        string          `xml:"adminEmail"`
	EarliestDatestamp string          `xml:"earliestDatestamp"`
	DeletedRecord     string          `xml:"deletedRecord"`
	Granularity       string          `xml:"granularity"`
	Descriptions      []innerFragment `xml:"description"`
}

type listMetadataFormatsPayload struct {
	XMLName xml.Name                `xml:"ListMetadataFormats"`
	Formats []metadataFormatElement `xml:"metadataFormat"`
}

type metadataFormatElement struct {
	Prefix    string `xml:"metadataPrefix"`
	Schema    string `xml:"schema"`
	Namespace string `xml:"metadataNamespace"`
}

type listSetsPayload struct {
	XMLName xml.Name     `xml:"ListSets"`
	Sets    []setElement `xml:"set"`
}

type setElement struct {
	Spec string `xml:"setSpec"`
	Name string `xml:"setName"`
}

type getRecordPayload struct {
	XMLName xml.Name      `xml:"GetRecord"`
	Record  recordElement `xml:"record"`
}

type listRecordsPayload struct {
	XMLName xml.Name        `xml:"ListRecords"`
	Records []recordElement `xml:"record"`
	Token   *tokenElement   `xml:"resumptionToken,omitempty"`
}

type listIdentifiersPayload struct {
	XMLName xml.Name        `xml:"ListIdentifiers"`
	Headers []headerElement `xml:"header"`
	Token   *tokenElement   `xml:"resumptionToken,omitempty"`
}

type recordElement struct {
	Header   headerElement  `xml:"header"`
	Metadata *innerFragment `xml:"metadata,omitempty"`
}

type headerElement struct {
	Status     string   `xml:"status,attr,omitempty"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

type tokenElement struct {
	Value            string `xml:",chardata"`
	CompleteListSize int    `xml:"completeListSize,attr"`
	Cursor           int    `xml:"cursor,attr"`
	ExpirationDate   string `xml:"expirationDate,attr,omitempty"`
}

// unavailableElement — тело ответа 503: операция, на которой отказал бэкенд.
type unavailableElement struct {
	XMLName   xml.Name `xml:"unavailable"`
	Operation string   `xml:"operation,attr,omitempty"`
	Message   string   `xml:",chardata"`
}

// innerFragment — элемент с готовым XML-содержимым.
type innerFragment struct {
	XML string `xml:",innerxml"`
}

// --- Чистые функции рендеринга фрагментов ---

// formatDatestamp форматирует время в UTC с суффиксом Z.
func formatDatestamp(t time.Time) string {
	return t.UTC().Format(datestampLayout)
}

// renderHeader строит <header> записи.
func renderHeader(rec *model.Record) headerElement {
	h := headerElement{
		Identifier: rec.Identifier,
		Datestamp:  formatDatestamp(rec.Datestamp),
		SetSpecs:   rec.Sets,
	}
	if rec.Deleted {
		h.Status = "deleted"
	}
	return h
}

// renderRecord строит <record>; <metadata> только для неудалённых записей.
func renderRecord(rec *model.Record, format model.MetadataFormat) recordElement {
	r := recordElement{Header: renderHeader(rec)}
	if !rec.Deleted {
		r.Metadata = &innerFragment{XML: metadataFragment(format, rec.Metadata)}
	}
	return r
}

// metadataFragment оборачивает содержимое записи в корневой элемент формата
// с его пространствами имён.
func metadataFragment(format model.MetadataFormat, content string) string {
	var open, closing string
	switch format {
	case model.FormatOAIDC:
		open = `<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"` +
			` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
			` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
			` xsi:schemaLocation="http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd">`
		closing = `</oai_dc:dc>`
	case model.FormatQDC:
		open = `<qdc:qualifieddc xmlns:qdc="http://epubs.cclrc.ac.uk/xmlns/qdc/"` +
			` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
			` xmlns:dcterms="http://purl.org/dc/terms/"` +
			` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
			` xsi:schemaLocation="http://epubs.cclrc.ac.uk/xmlns/qdc/ http://epubs.cclrc.ac.uk/xsd/qdc.xsd">`
		closing = `</qdc:qualifieddc>`
	case model.FormatOAIDataCite:
		open = `<oaire:resource xmlns:oaire="http://namespace.openaire.eu/schema/oaire/"` +
			` xmlns:datacite="http://datacite.org/schema/kernel-4"` +
			` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
			` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
			` xsi:schemaLocation="http://namespace.openaire.eu/schema/oaire/ https://www.openaire.eu/schema/repo-lit/4.0/openaire.xsd">`
		closing = `</oaire:resource>`
	default:
		return content
	}
	return open + content + closing
}

// renderToken строит <resumptionToken>. value == "" — завершающий пустой элемент.
func renderToken(value string, numFound, cursor int, expires time.Time) *tokenElement {
	t := &tokenElement{Value: value, CompleteListSize: numFound, Cursor: cursor}
	if value != "" && !expires.IsZero() {
		t.ExpirationDate = formatDatestamp(expires)
	}
	return t
}

// renderIdentify строит <Identify> из описания репозитория.
func renderIdentify(info model.RepositoryInfo) identifyPayload {
	p := identifyPayload{
		RepositoryName:    info.Name,
		BaseURL:           info.BaseURL,
		ProtocolVersion:   info.ProtocolVersion,
		AdminEmail:        info.AdminEmail,
		EarliestDatestamp: info.EarliestDatestamp,
		DeletedRecord:     info.DeletedRecord,
		Granularity:       info.Granularity,
	}
	if d := oaiIdentifierDescription(info.IdentifierPrefix); d != "" {
		p.Descriptions = append(p.Descriptions, innerFragment{XML: d})
	}
	if info.Description != "" {
		p.Descriptions = append(p.Descriptions, innerFragment{
			XML: metadataFragment(model.FormatOAIDC, "<dc:description>"+escapeText(info.Description)+"</dc:description>"),
		})
	}
	return p
}

// oaiIdentifierDescription строит описание oai-identifier для префикса вида
// "oai:<repositoryIdentifier>:". Для других префиксов — пустая строка.
func oaiIdentifierDescription(prefix string) string {
	parts := strings.Split(prefix, ":")
	if len(parts) != 3 || parts[0] != "oai" || parts[1] == "" || parts[2] != "" {
		return ""
	}
	return `<oai-identifier xmlns="http://www.openarchives.org/OAI/2.0/oai-identifier"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xsi:schemaLocation="http://www.openarchives.org/OAI/2.0/oai-identifier http://www.openarchives.org/OAI/2.0/oai-identifier.xsd">` +
		`<scheme>oai</scheme>` +
		`<repositoryIdentifier>` + escapeText(parts[1]) + `</repositoryIdentifier>` +
		`<delimiter>:</delimiter>` +
		`<sampleIdentifier>` + escapeText(prefix) + `00000000-0000-0000-0000-000000000000</sampleIdentifier>` +
		`</oai-identifier>`
}

// renderFormats строит <ListMetadataFormats> из фиксированного списка форматов.
func renderFormats() listMetadataFormatsPayload {
	p := listMetadataFormatsPayload{}
	for _, f := range model.AllFormats() {
		p.Formats = append(p.Formats, metadataFormatElement{
			Prefix:    f.Prefix(),
			Schema:    f.Schema(),
			Namespace: f.Namespace(),
		})
	}
	return p
}

// renderSets строит <ListSets>.
func renderSets(sets []model.Set) listSetsPayload {
	p := listSetsPayload{Sets: make([]setElement, 0, len(sets))}
	for _, s := range sets {
		p.Sets = append(p.Sets, setElement{Spec: s.Spec, Name: s.Name})
	}
	return p
}

// renderEcho строит <request>. Для badVerb/badArgument атрибуты не выводятся.
func renderEcho(baseURL string, vr *ValidRequest, perr *ProtocolError) requestEcho {
	echo := requestEcho{BaseURL: baseURL}
	if vr == nil || (perr != nil && (perr.Code == CodeBadVerb || perr.Code == CodeBadArgument)) {
		return echo
	}

	p := vr.Params
	echo.Verb = string(vr.Verb)
	if p.ResumptionToken != "" {
		// Для продолжения выводится только токен
		echo.ResumptionToken = p.ResumptionToken
		return echo
	}
	switch vr.Verb {
	case VerbGetRecord:
		echo.Identifier = p.Identifier
		echo.MetadataPrefix = p.MetadataPrefix
	case VerbListRecords, VerbListIdentifiers:
		echo.MetadataPrefix = p.MetadataPrefix
		echo.From = p.From
		echo.Until = p.Until
		echo.Set = p.Set
	case VerbIdentify, VerbListMetadataFormats, VerbListSets:
	}
	return echo
}

// renderDocument собирает итоговый XML-документ и добавляет комментарий
// с длительностью обработки в миллисекундах.
func renderDocument(responseDate time.Time, echo requestEcho, payload any, perr *ProtocolError, elapsed time.Duration) (string, error) {
	env := envelope{
		Xmlns:          oaiNamespace,
		XmlnsXsi:       xsiNamespace,
		SchemaLocation: oaiSchemaLocation,
		ResponseDate:   formatDatestamp(responseDate),
		Request:        echo,
		Payload:        payload,
	}
	if perr != nil {
		env.Error = &errorElement{Code: string(perr.Code), Message: perr.Message}
		env.Payload = nil
	}

	body, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("сериализация ответа OAI-PMH: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(body) + 48)
	buf.WriteString(xml.Header)
	buf.Write(body)
	fmt.Fprintf(&buf, "\n<!-- rendered in %d ms -->\n", elapsed.Milliseconds())
	return buf.String(), nil
}

// escapeText экранирует текст для вставки в XML.
func escapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
