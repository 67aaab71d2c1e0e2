// document.go — документ каталога DLR и его представление в форматах метаданных.
package dlrclient

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// handleBaseURL — резолвер handle-идентификаторов.
const handleBaseURL = "https://hdl.handle.net/"

// document — запись каталога DLR (поля dlr_*).
type document struct {
	Identifier    string    `json:"dlr_identifier"`
	Deleted       bool      `json:"dlr_status_deleted"`
	TimeUpdated   time.Time `json:"dlr_time_updated"`
	TimePublished string    `json:"dlr_time_published"`
	Title         string    `json:"dlr_title"`
	Description   string    `json:"dlr_description"`
	Creators      []string  `json:"dlr_creator"`
	Subjects      []string  `json:"dlr_subject"`
	Type          string    `json:"dlr_type"`
	Language      string    `json:"dlr_language"`
	License       string    `json:"dlr_rights_license_name"`
	Publisher     string    `json:"dlr_publisher"`
	Handle        string    `json:"dlr_identifier_handle"`
	Sets          []string  `json:"dlr_sets"`
}

// toRecord преобразует документ в запись. Для удалённых записей метаданные не строятся.
func (d *document) toRecord(prefix string, format model.MetadataFormat) *model.Record {
	rec := &model.Record{
		Identifier: prefix + d.Identifier,
		Deleted:    d.Deleted,
		Datestamp:  d.TimeUpdated.UTC(),
		Sets:       d.Sets,
	}
	if !d.Deleted {
		rec.Metadata = d.metadata(format)
	}
	return rec
}

// published — дата публикации в виде YYYY-MM-DD (пусто, если не задана или не разбирается).
func (d *document) published() string {
	if d.TimePublished == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, d.TimePublished)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

// link — постоянная ссылка на ресурс.
func (d *document) link() string {
	if d.Handle == "" {
		return ""
	}
	return handleBaseURL + d.Handle
}

// metadata строит содержимое элемента metadata без корневого элемента формата.
func (d *document) metadata(format model.MetadataFormat) string {
	var b xmlBuilder
	switch format {
	case model.FormatQDC:
		b.element("dc:title", d.Title)
		b.elements("dc:creator", d.Creators)
		b.elements("dc:subject", d.Subjects)
		b.element("dcterms:abstract", d.Description)
		b.element("dc:publisher", d.Publisher)
		b.element("dcterms:issued", d.published())
		b.element("dcterms:modified", d.TimeUpdated.UTC().Format(time.DateOnly))
		b.element("dc:type", d.Type)
		b.element("dc:language", d.Language)
		b.element("dcterms:license", d.License)
		b.element("dc:identifier", d.link())
	case model.FormatOAIDataCite:
		if d.Title != "" {
			b.open("datacite:titles")
			b.element("datacite:title", d.Title)
			b.close("datacite:titles")
		}
		if len(d.Creators) > 0 {
			b.open("datacite:creators")
			for _, c := range d.Creators {
				b.open("datacite:creator")
				b.element("datacite:creatorName", c)
				b.close("datacite:creator")
			}
			b.close("datacite:creators")
		}
		if len(d.Subjects) > 0 {
			b.open("datacite:subjects")
			b.elements("datacite:subject", d.Subjects)
			b.close("datacite:subjects")
		}
		b.element("dc:description", d.Description)
		b.element("dc:publisher", d.Publisher)
		if p := d.published(); p != "" {
			b.open("datacite:dates")
			b.raw(`<datacite:date dateType="Issued">` + escape(p) + `</datacite:date>`)
			b.close("datacite:dates")
		}
		b.element("dc:language", d.Language)
		b.element("datacite:rights", d.License)
		if d.Handle != "" {
			b.raw(`<datacite:identifier identifierType="Handle">` + escape(d.Handle) + `</datacite:identifier>`)
		}
	default:
		b.element("dc:title", d.Title)
		b.elements("dc:creator", d.Creators)
		b.elements("dc:subject", d.Subjects)
		b.element("dc:description", d.Description)
		b.element("dc:publisher", d.Publisher)
		b.element("dc:date", d.published())
		b.element("dc:type", d.Type)
		b.element("dc:language", d.Language)
		b.element("dc:rights", d.License)
		b.element("dc:identifier", d.link())
	}
	return b.String()
}

// xmlBuilder собирает плоский XML-фрагмент; пустые значения пропускаются.
type xmlBuilder struct {
	strings.Builder
}

func (b *xmlBuilder) element(name, value string) {
	if value == "" {
		return
	}
	b.WriteString("<" + name + ">" + escape(value) + "</" + name + ">")
}

func (b *xmlBuilder) elements(name string, values []string) {
	for _, v := range values {
		b.element(name, v)
	}
}

func (b *xmlBuilder) open(name string)  { b.WriteString("<" + name + ">") }
func (b *xmlBuilder) close(name string) { b.WriteString("</" + name + ">") }
func (b *xmlBuilder) raw(s string)      { b.WriteString(s) }

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
