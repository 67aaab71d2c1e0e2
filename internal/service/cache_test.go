package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
)

// TestCacheService_Records проверяет базовые операции с записями.
func TestCacheService_Records(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute, 5*time.Minute)

	rec := &model.Record{Identifier: "oai:dlr.unit.no:rec-1", Metadata: "<dc:title>A</dc:title>"}

	// Cache miss
	if _, ok := cache.GetRecord("rec-1", model.FormatOAIDC); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	// Set + cache hit
	cache.SetRecord("rec-1", model.FormatOAIDC, rec)
	got, ok := cache.GetRecord("rec-1", model.FormatOAIDC)
	if !ok {
		t.Fatal("ожидался cache hit после SetRecord")
	}
	if got.Identifier != rec.Identifier {
		t.Errorf("Identifier = %q, ожидался %q", got.Identifier, rec.Identifier)
	}

	// Другой формат — отдельный ключ
	if _, ok := cache.GetRecord("rec-1", model.FormatQDC); ok {
		t.Error("запись в формате QDC не должна находиться по ключу oai_dc")
	}
}

// TestCacheService_Sets проверяет кэш списка наборов.
func TestCacheService_Sets(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute, 5*time.Minute)

	if _, ok := cache.GetSets(); ok {
		t.Fatal("ожидался cache miss для пустого кэша")
	}

	cache.SetSets([]model.Set{{Spec: "ntnu", Name: "NTNU"}})
	sets, ok := cache.GetSets()
	if !ok || len(sets) != 1 || sets[0].Spec != "ntnu" {
		t.Errorf("GetSets() = (%v, %v)", sets, ok)
	}

	cache.Purge()
	if _, ok := cache.GetSets(); ok {
		t.Error("ожидался cache miss после Purge")
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	// Короткий TTL = 50ms для теста
	cache := NewCacheService(100, 50*time.Millisecond, 50*time.Millisecond)

	cache.SetRecord("ttl-test", model.FormatOAIDC, &model.Record{Identifier: "ttl-test"})
	cache.SetSets([]model.Set{{Spec: "ntnu"}})

	if _, ok := cache.GetRecord("ttl-test", model.FormatOAIDC); !ok {
		t.Fatal("ожидался cache hit сразу после SetRecord")
	}

	// Ждём истечения TTL
	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.GetRecord("ttl-test", model.FormatOAIDC); ok {
		t.Error("ожидался cache miss записи после истечения TTL")
	}
	if _, ok := cache.GetSets(); ok {
		t.Error("ожидался cache miss наборов после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении размера.
func TestCacheService_Eviction(t *testing.T) {
	// Кэш на 2 записи
	cache := NewCacheService(2, 5*time.Minute, 5*time.Minute)

	cache.SetRecord("r1", model.FormatOAIDC, &model.Record{Identifier: "r1"})
	cache.SetRecord("r2", model.FormatOAIDC, &model.Record{Identifier: "r2"})
	cache.SetRecord("r3", model.FormatOAIDC, &model.Record{Identifier: "r3"})

	// r1 вытеснена как самая старая
	if _, ok := cache.GetRecord("r1", model.FormatOAIDC); ok {
		t.Error("ожидался cache miss для вытесненной r1")
	}
	if _, ok := cache.GetRecord("r3", model.FormatOAIDC); !ok {
		t.Error("ожидался cache hit для r3")
	}
}

// TestCacheService_Disabled проверяет отключение кэша нулевыми параметрами.
func TestCacheService_Disabled(t *testing.T) {
	cache := NewCacheService(0, 0, 0)

	cache.SetRecord("r1", model.FormatOAIDC, &model.Record{Identifier: "r1"})
	cache.SetSets([]model.Set{{Spec: "ntnu"}})

	if _, ok := cache.GetRecord("r1", model.FormatOAIDC); ok {
		t.Error("отключённый кэш записей не должен возвращать hit")
	}
	if _, ok := cache.GetSets(); ok {
		t.Error("отключённый кэш наборов не должен возвращать hit")
	}
	cache.Purge()
}
