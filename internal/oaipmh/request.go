package oaipmh

import (
	"net/url"
	"sort"
)

// Имена параметров запроса OAI-PMH.
const (
	paramVerb            = "verb"
	paramIdentifier      = "identifier"
	paramMetadataPrefix  = "metadataPrefix"
	paramFrom            = "from"
	paramUntil           = "until"
	paramSet             = "set"
	paramResumptionToken = "resumptionToken"
)

// recognizedParams — полный набор допустимых ключей запроса.
var recognizedParams = map[string]bool{
	paramVerb:            true,
	paramIdentifier:      true,
	paramMetadataPrefix:  true,
	paramFrom:            true,
	paramUntil:           true,
	paramSet:             true,
	paramResumptionToken: true,
}

// Request — параметры запроса в том виде, в каком их прислал клиент.
// Отсутствующий параметр — пустая строка.
type Request struct {
	Verb            string
	Identifier      string
	MetadataPrefix  string
	From            string
	Until           string
	Set             string
	ResumptionToken string
}

// ParseRequest строит Request из query-параметров.
// Повторённый verb — BadVerb, неизвестный или повторённый прочий ключ — BadArgument.
func ParseRequest(values url.Values) (Request, error) {
	if len(values[paramVerb]) > 1 {
		return Request{}, BadVerb("Duplicate verb")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// Детерминированный порядок проверки
	sort.Strings(keys)

	for _, k := range keys {
		if !recognizedParams[k] {
			return Request{}, BadArgument("Not a legal parameter: " + k)
		}
		if len(values[k]) > 1 {
			return Request{}, BadArgument("Duplicate parameter: " + k)
		}
	}

	return Request{
		Verb:            values.Get(paramVerb),
		Identifier:      values.Get(paramIdentifier),
		MetadataPrefix:  values.Get(paramMetadataPrefix),
		From:            values.Get(paramFrom),
		Until:           values.Get(paramUntil),
		Set:             values.Get(paramSet),
		ResumptionToken: values.Get(paramResumptionToken),
	}, nil
}
