package model

import (
	"fmt"
	"strings"
)

// MetadataFormat — поддерживаемый формат метаданных.
type MetadataFormat int

// Поддерживаемые форматы. Нулевое значение — формат не задан.
const (
	FormatUnknown MetadataFormat = iota
	FormatOAIDC
	FormatQDC
	FormatOAIDataCite
)

// formatInfo — описание формата для ListMetadataFormats.
type formatInfo struct {
	name      string
	prefix    string
	schema    string
	namespace string
}

var formats = map[MetadataFormat]formatInfo{
	FormatOAIDC: {
		name:      "OAI_DC",
		prefix:    "oai_dc",
		schema:    "http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
		namespace: "http://www.openarchives.org/OAI/2.0/oai_dc/",
	},
	FormatQDC: {
		name:      "QDC",
		prefix:    "qdc",
		schema:    "http://epubs.cclrc.ac.uk/xsd/qdc.xsd",
		namespace: "http://epubs.cclrc.ac.uk/xmlns/qdc/",
	},
	FormatOAIDataCite: {
		name:      "OAI_DATACITE",
		prefix:    "oai_datacite",
		schema:    "https://www.openaire.eu/schema/repo-lit/4.0/openaire.xsd",
		namespace: "http://namespace.openaire.eu/schema/oaire/",
	},
}

// AllFormats возвращает поддерживаемые форматы в порядке вывода.
func AllFormats() []MetadataFormat {
	return []MetadataFormat{FormatOAIDC, FormatQDC, FormatOAIDataCite}
}

// ParseMetadataFormat сопоставляет metadataPrefix с форматом без учёта регистра.
func ParseMetadataFormat(prefix string) (MetadataFormat, bool) {
	for f, info := range formats {
		if strings.EqualFold(prefix, info.name) {
			return f, true
		}
	}
	return FormatUnknown, false
}

// Prefix — metadataPrefix формата в нижнем регистре (oai_dc, qdc, oai_datacite).
func (f MetadataFormat) Prefix() string { return formats[f].prefix }

// Schema — URL XSD-схемы формата.
func (f MetadataFormat) Schema() string { return formats[f].schema }

// Namespace — XML namespace формата.
func (f MetadataFormat) Namespace() string { return formats[f].namespace }

// String реализует fmt.Stringer.
func (f MetadataFormat) String() string {
	if info, ok := formats[f]; ok {
		return info.name
	}
	return fmt.Sprintf("MetadataFormat(%d)", int(f))
}
