package oaipmh

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

const testPrefix = "oai:dlr.unit.no:"

// --- Mock DataSource ---

// mockSource — мок DataSource для unit-тестов.
type mockSource struct {
	listSetsFn    func(ctx context.Context) ([]model.Set, error)
	getRecordFn   func(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error)
	listRecordsFn func(ctx context.Context, query model.ListQuery) (*model.RecordsList, error)

	listSetsCalls int
	lastQuery     model.ListQuery
}

func (m *mockSource) Repository() model.RepositoryInfo {
	return model.RepositoryInfo{
		Name:              "DLR",
		BaseURL:           "https://oai.dlr.unit.no/oai",
		AdminEmail:        "oai@unit.no",
		ProtocolVersion:   model.ProtocolVersion,
		EarliestDatestamp: "2017-01-01T00:00:00Z",
		Granularity:       model.GranularitySecond,
		DeletedRecord:     model.DeletedPersistent,
		IdentifierPrefix:  testPrefix,
	}
}

func (m *mockSource) ListSets(ctx context.Context) ([]model.Set, error) {
	m.listSetsCalls++
	if m.listSetsFn != nil {
		return m.listSetsFn(ctx)
	}
	return []model.Set{
		{Spec: "ntnu", Name: "NTNU"},
		{Spec: "uio", Name: "Universitetet i Oslo"},
	}, nil
}

func (m *mockSource) GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error) {
	if m.getRecordFn != nil {
		return m.getRecordFn(ctx, nativeID, format)
	}
	return nil, ErrRecordNotFound
}

func (m *mockSource) ListRecords(ctx context.Context, query model.ListQuery) (*model.RecordsList, error) {
	m.lastQuery = query
	if m.listRecordsFn != nil {
		return m.listRecordsFn(ctx, query)
	}
	return &model.RecordsList{}, nil
}

// IsValidIdentifier — идентификаторы DLR являются UUID.
func (m *mockSource) IsValidIdentifier(nativeID string) bool {
	_, err := uuid.Parse(nativeID)
	return err == nil && len(nativeID) == 36
}

// pagedSource возвращает источник с total записями, отдающий страницы срезом.
func pagedSource(total int) *mockSource {
	records := make([]*model.Record, total)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range records {
		records[i] = &model.Record{
			Identifier: fmt.Sprintf("%s%08d-0000-0000-0000-000000000000", testPrefix, i),
			Metadata:   fmt.Sprintf("<dc:title>Ressurs %d</dc:title>", i),
			Datestamp:  base.Add(time.Duration(i) * time.Minute),
			Sets:       []string{"ntnu"},
		}
	}
	return &mockSource{
		listRecordsFn: func(_ context.Context, q model.ListQuery) (*model.RecordsList, error) {
			if q.Start >= total {
				return &model.RecordsList{NumFound: total}, nil
			}
			end := q.Start + q.Rows
			if end > total {
				end = total
			}
			return &model.RecordsList{Records: records[q.Start:end], NumFound: total}, nil
		},
	}
}
