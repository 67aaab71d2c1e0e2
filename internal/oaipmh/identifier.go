package oaipmh

import (
	"errors"
	"strings"
)

// ErrIdentifierPrefix — идентификатор не начинается с префикса репозитория.
var ErrIdentifierPrefix = errors.New("идентификатор не содержит префикс репозитория")

// OaiIdentifier — структурированное представление внешнего идентификатора.
// String() == prefix + Native().
type OaiIdentifier struct {
	prefix string
	native string
}

// NewOaiIdentifier разбирает внешний идентификатор.
// Возвращает ErrIdentifierPrefix, если префикс не совпадает.
func NewOaiIdentifier(id, prefix string) (OaiIdentifier, error) {
	if prefix == "" || !strings.HasPrefix(id, prefix) {
		return OaiIdentifier{}, ErrIdentifierPrefix
	}
	return OaiIdentifier{prefix: prefix, native: strings.TrimPrefix(id, prefix)}, nil
}

// Native — идентификатор бэкенда без префикса.
func (i OaiIdentifier) Native() string { return i.native }

// Prefix — префикс репозитория.
func (i OaiIdentifier) Prefix() string { return i.prefix }

// String — полный внешний идентификатор.
func (i OaiIdentifier) String() string { return i.prefix + i.native }

// FormatIdentifier собирает внешний идентификатор из префикса и идентификатора бэкенда.
func FormatIdentifier(prefix, native string) string {
	return prefix + native
}
