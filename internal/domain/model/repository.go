package model

// Значения по умолчанию для описания репозитория (Identify).
const (
	ProtocolVersion   = "2.0"
	GranularitySecond = "YYYY-MM-DDThh:mm:ssZ"
	DeletedPersistent = "persistent"
)

// RepositoryInfo — статическое описание репозитория для Identify.
type RepositoryInfo struct {
	Name              string
	BaseURL           string
	AdminEmail        string
	ProtocolVersion   string
	EarliestDatestamp string
	Granularity       string
	DeletedRecord     string
	Description       string
	// IdentifierPrefix — префикс внешних идентификаторов (например, "oai:dlr.unit.no:")
	IdentifierPrefix string
}
