package oaipmh

// Verb — глагол OAI-PMH.
type Verb string

// Глаголы протокола OAI-PMH 2.0.
const (
	VerbIdentify            Verb = "Identify"
	VerbListMetadataFormats Verb = "ListMetadataFormats"
	VerbListSets            Verb = "ListSets"
	VerbGetRecord           Verb = "GetRecord"
	VerbListIdentifiers     Verb = "ListIdentifiers"
	VerbListRecords         Verb = "ListRecords"
)

// AllVerbs возвращает все поддерживаемые глаголы.
func AllVerbs() []Verb {
	return []Verb{
		VerbIdentify,
		VerbListMetadataFormats,
		VerbListSets,
		VerbGetRecord,
		VerbListIdentifiers,
		VerbListRecords,
	}
}

// ParseVerb распознаёт глагол. Сравнение регистрозависимое, как в протоколе.
func ParseVerb(s string) (Verb, bool) {
	for _, v := range AllVerbs() {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// isList — глагол с постраничной выдачей записей.
func (v Verb) isList() bool {
	return v == VerbListRecords || v == VerbListIdentifiers
}
