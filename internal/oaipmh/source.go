package oaipmh

import (
	"context"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// DataSource — адаптер бэкенда, через который движок получает данные.
// Реализации: dlrclient.Client (DLR API), repository.RecordRepository (PostgreSQL),
// service.CachedSource (кэширующая обёртка).
type DataSource interface {
	// Repository возвращает статическое описание репозитория.
	Repository() model.RepositoryInfo
	// ListSets возвращает все наборы бэкенда.
	ListSets(ctx context.Context) ([]model.Set, error)
	// GetRecord возвращает запись по идентификатору бэкенда или ErrRecordNotFound.
	GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error)
	// ListRecords возвращает страницу записей и общее количество совпадений.
	ListRecords(ctx context.Context, query model.ListQuery) (*model.RecordsList, error)
	// IsValidIdentifier — дешёвая проверка формы идентификатора без обращения к бэкенду.
	IsValidIdentifier(nativeID string) bool
}
