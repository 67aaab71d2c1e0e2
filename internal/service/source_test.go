package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

// --- Mock backend ---

// mockBackend — мок oaipmh.DataSource для unit-тестов.
type mockBackend struct {
	listSetsFn    func(ctx context.Context) ([]model.Set, error)
	getRecordFn   func(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error)
	listRecordsFn func(ctx context.Context, query model.ListQuery) (*model.RecordsList, error)

	listSetsCalls    int
	getRecordCalls   int
	listRecordsCalls int
}

func (m *mockBackend) Repository() model.RepositoryInfo {
	return model.RepositoryInfo{Name: "DLR", IdentifierPrefix: "oai:dlr.unit.no:"}
}

func (m *mockBackend) IsValidIdentifier(nativeID string) bool {
	return nativeID != ""
}

func (m *mockBackend) ListSets(ctx context.Context) ([]model.Set, error) {
	m.listSetsCalls++
	if m.listSetsFn != nil {
		return m.listSetsFn(ctx)
	}
	return []model.Set{{Spec: "ntnu", Name: "NTNU"}}, nil
}

func (m *mockBackend) GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error) {
	m.getRecordCalls++
	if m.getRecordFn != nil {
		return m.getRecordFn(ctx, nativeID, format)
	}
	return &model.Record{Identifier: "oai:dlr.unit.no:" + nativeID}, nil
}

func (m *mockBackend) ListRecords(ctx context.Context, query model.ListQuery) (*model.RecordsList, error) {
	m.listRecordsCalls++
	if m.listRecordsFn != nil {
		return m.listRecordsFn(ctx, query)
	}
	return &model.RecordsList{}, nil
}

var _ oaipmh.DataSource = (*CachedSource)(nil)

func newTestSource(backend *mockBackend) *CachedSource {
	return NewCachedSource(backend, NewCacheService(100, time.Minute, time.Minute), slog.Default())
}

// --- Тесты CachedSource ---

// TestCachedSource_ListSetsCached проверяет, что список наборов запрашивается один раз.
func TestCachedSource_ListSetsCached(t *testing.T) {
	backend := &mockBackend{}
	src := newTestSource(backend)

	for range 3 {
		sets, err := src.ListSets(context.Background())
		if err != nil {
			t.Fatalf("ListSets ошибка: %v", err)
		}
		if len(sets) != 1 {
			t.Fatalf("len(sets) = %d, ожидалось 1", len(sets))
		}
	}
	if backend.listSetsCalls != 1 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 1", backend.listSetsCalls)
	}
}

// TestCachedSource_ListSetsNotCachedOnFailure проверяет, что ошибки и пустой список не кэшируются.
func TestCachedSource_ListSetsNotCachedOnFailure(t *testing.T) {
	calls := 0
	backend := &mockBackend{
		listSetsFn: func(context.Context) ([]model.Set, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		},
	}
	src := newTestSource(backend)

	if _, err := src.ListSets(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка бэкенда")
	}
	if _, err := src.ListSets(context.Background()); err != nil {
		t.Fatalf("ListSets ошибка: %v", err)
	}
	if _, err := src.ListSets(context.Background()); err != nil {
		t.Fatalf("ListSets ошибка: %v", err)
	}
	if backend.listSetsCalls != 3 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 3", backend.listSetsCalls)
	}
}

// TestCachedSource_GetRecord проверяет кэширование записей по идентификатору и формату.
func TestCachedSource_GetRecord(t *testing.T) {
	backend := &mockBackend{}
	src := newTestSource(backend)
	ctx := context.Background()

	for range 2 {
		rec, err := src.GetRecord(ctx, "rec-1", model.FormatOAIDC)
		if err != nil {
			t.Fatalf("GetRecord ошибка: %v", err)
		}
		if rec.Identifier != "oai:dlr.unit.no:rec-1" {
			t.Errorf("Identifier = %q", rec.Identifier)
		}
	}
	if backend.getRecordCalls != 1 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 1", backend.getRecordCalls)
	}

	if _, err := src.GetRecord(ctx, "rec-1", model.FormatQDC); err != nil {
		t.Fatalf("GetRecord ошибка: %v", err)
	}
	if backend.getRecordCalls != 2 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 2 (другой формат)", backend.getRecordCalls)
	}
}

// TestCachedSource_GetRecordNotFound проверяет, что ErrRecordNotFound не кэшируется и не теряется.
func TestCachedSource_GetRecordNotFound(t *testing.T) {
	backend := &mockBackend{
		getRecordFn: func(context.Context, string, model.MetadataFormat) (*model.Record, error) {
			return nil, oaipmh.ErrRecordNotFound
		},
	}
	src := newTestSource(backend)

	for range 2 {
		_, err := src.GetRecord(context.Background(), "missing", model.FormatOAIDC)
		if !errors.Is(err, oaipmh.ErrRecordNotFound) {
			t.Fatalf("ошибка = %v, ожидалась ErrRecordNotFound", err)
		}
	}
	if backend.getRecordCalls != 2 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 2", backend.getRecordCalls)
	}
}

// TestCachedSource_ListRecords проверяет, что выборка не кэшируется.
func TestCachedSource_ListRecords(t *testing.T) {
	backend := &mockBackend{
		listRecordsFn: func(_ context.Context, q model.ListQuery) (*model.RecordsList, error) {
			if q.Rows != 150 {
				t.Errorf("Rows = %d, ожидалось 150", q.Rows)
			}
			return &model.RecordsList{Records: []*model.Record{{Identifier: "a"}}, NumFound: 1}, nil
		},
	}
	src := newTestSource(backend)

	for range 2 {
		list, err := src.ListRecords(context.Background(), model.ListQuery{Rows: 150})
		if err != nil {
			t.Fatalf("ListRecords ошибка: %v", err)
		}
		if list.NumFound != 1 {
			t.Errorf("NumFound = %d, ожидалось 1", list.NumFound)
		}
	}
	if backend.listRecordsCalls != 2 {
		t.Errorf("обращений к бэкенду = %d, ожидалось 2", backend.listRecordsCalls)
	}
}

// TestCachedSource_Passthrough проверяет делегирование Repository и IsValidIdentifier.
func TestCachedSource_Passthrough(t *testing.T) {
	src := newTestSource(&mockBackend{})

	if src.Repository().Name != "DLR" {
		t.Errorf("Repository().Name = %q", src.Repository().Name)
	}
	if src.IsValidIdentifier("") {
		t.Error("IsValidIdentifier(\"\") = true, ожидалось false")
	}
}
