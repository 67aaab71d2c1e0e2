package dlrclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

const (
	testPrefix = "oai:dlr.unit.no:"
	testID     = "0b7e8a4e-1f4d-4c4b-9a57-3c1b1e3f6a10"
)

const testDoc = `{
	"dlr_identifier": "0b7e8a4e-1f4d-4c4b-9a57-3c1b1e3f6a10",
	"dlr_status_deleted": false,
	"dlr_time_updated": "2021-09-14T08:15:00Z",
	"dlr_time_published": "2020-01-02T10:00:00Z",
	"dlr_title": "Sikkerhet & helse",
	"dlr_creator": ["Ola Nordmann"],
	"dlr_subject": ["HMS"],
	"dlr_identifier_handle": "11250/123",
	"dlr_sets": ["ntnu"]
}`

// newTestClient создаёт клиент к тестовому серверу без задержек между повторами.
func newTestClient(t *testing.T, handler http.Handler, maxRetries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: 5 * time.Second, MaxRetries: maxRetries},
		model.RepositoryInfo{IdentifierPrefix: testPrefix}, slog.Default())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	c.http.Backoff = func(int) time.Duration { return 0 }
	return c
}

func TestClient_ListSets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oai/sets", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"setSpec":"ntnu","setName":"NTNU"},{"setSpec":"uio","setName":"UiO"}]`))
	})
	c := newTestClient(t, mux, 1)

	sets, err := c.ListSets(context.Background())
	if err != nil {
		t.Fatalf("ListSets ошибка: %v", err)
	}
	if len(sets) != 2 || sets[0].Spec != "ntnu" || sets[1].Name != "UiO" {
		t.Errorf("sets = %+v", sets)
	}
}

func TestClient_ListSetsNotSupported(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), 1)

	_, err := c.ListSets(context.Background())
	if !errors.Is(err, oaipmh.ErrNoSetHierarchy) {
		t.Fatalf("ошибка = %v, ожидалась ErrNoSetHierarchy", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "solr down", http.StatusBadGateway)
	}), 3)

	_, err := c.ListSets(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка при статусе 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("ошибка %q не содержит статус", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("попыток = %d, ожидалось 3", got)
	}
}

func TestClient_GetRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oai/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != testID {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(testDoc))
	})
	c := newTestClient(t, mux, 1)

	rec, err := c.GetRecord(context.Background(), testID, model.FormatOAIDC)
	if err != nil {
		t.Fatalf("GetRecord ошибка: %v", err)
	}
	if rec.Identifier != testPrefix+testID {
		t.Errorf("Identifier = %q", rec.Identifier)
	}
	if !rec.Datestamp.Equal(time.Date(2021, 9, 14, 8, 15, 0, 0, time.UTC)) {
		t.Errorf("Datestamp = %v", rec.Datestamp)
	}
	if !strings.Contains(rec.Metadata, "<dc:title>Sikkerhet &amp; helse</dc:title>") {
		t.Errorf("Metadata = %q", rec.Metadata)
	}
	if len(rec.Sets) != 1 || rec.Sets[0] != "ntnu" {
		t.Errorf("Sets = %v", rec.Sets)
	}

	_, err = c.GetRecord(context.Background(), "00000000-0000-0000-0000-000000000000", model.FormatOAIDC)
	if !errors.Is(err, oaipmh.ErrRecordNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrRecordNotFound", err)
	}
}

func TestClient_GetRecordBadJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dlr_identifier":`))
	}), 1)

	_, err := c.GetRecord(context.Background(), testID, model.FormatOAIDC)
	if err == nil || errors.Is(err, oaipmh.ErrRecordNotFound) {
		t.Fatalf("ошибка = %v, ожидалась ошибка декодирования", err)
	}
}

func TestClient_ListRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oai/records", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"from":  "2020-01-01T00:00:00Z",
			"until": "2020-12-31T23:59:59Z",
			"set":   "ntnu",
			"start": "100",
			"rows":  "150",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("параметр %s = %q, ожидался %q", k, q.Get(k), v)
			}
		}
		_, _ = w.Write([]byte(`{"response":{"numFound":230,"start":100,"docs":[` + testDoc +
			`,{"dlr_identifier":"1b7e8a4e-1f4d-4c4b-9a57-3c1b1e3f6a10","dlr_status_deleted":true,` +
			`"dlr_time_updated":"2022-01-01T00:00:00Z","dlr_title":"Slettet"}]}}`))
	})
	c := newTestClient(t, mux, 1)

	list, err := c.ListRecords(context.Background(), model.ListQuery{
		From:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:  time.Date(2020, 12, 31, 23, 59, 59, 999999999, time.UTC),
		Set:    "ntnu",
		Format: model.FormatQDC,
		Start:  100,
		Rows:   150,
	})
	if err != nil {
		t.Fatalf("ListRecords ошибка: %v", err)
	}
	if list.NumFound != 230 || len(list.Records) != 2 {
		t.Fatalf("NumFound/len = %d/%d", list.NumFound, len(list.Records))
	}
	if !strings.Contains(list.Records[0].Metadata, "<dcterms:issued>2020-01-02</dcterms:issued>") {
		t.Errorf("Metadata = %q", list.Records[0].Metadata)
	}
	if !list.Records[1].Deleted || list.Records[1].Metadata != "" {
		t.Errorf("удалённая запись = %+v", list.Records[1])
	}
}

func TestClient_ListRecordsOmitsEmptyFilters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, k := range []string{"from", "until", "set"} {
			if q.Has(k) {
				t.Errorf("параметр %s не должен передаваться", k)
			}
		}
		_, _ = w.Write([]byte(`{"response":{"numFound":0,"start":0,"docs":[]}}`))
	}), 1)

	list, err := c.ListRecords(context.Background(), model.ListQuery{Rows: 150})
	if err != nil {
		t.Fatalf("ListRecords ошибка: %v", err)
	}
	if list.NumFound != 0 || len(list.Records) != 0 {
		t.Errorf("list = %+v", list)
	}
}

func TestClient_IsValidIdentifier(t *testing.T) {
	c := &Client{}
	tests := []struct {
		id   string
		want bool
	}{
		{testID, true},
		{"00000000-0000-0000-0000-000000000000", true},
		{"0b7e8a4e1f4d4c4b9a573c1b1e3f6a10", false},
		{"{0b7e8a4e-1f4d-4c4b-9a57-3c1b1e3f6a10}", false},
		{"not-a-uuid-but-exactly-36-characters", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsValidIdentifier(tt.id); got != tt.want {
			t.Errorf("IsValidIdentifier(%q) = %v, ожидалось %v", tt.id, got, tt.want)
		}
	}
}

func TestNew_MissingCACert(t *testing.T) {
	_, err := New(Options{
		BaseURL:    "https://dlr.example.com",
		CACertPath: filepath.Join(t.TempDir(), "missing.pem"),
	}, model.RepositoryInfo{}, slog.Default())
	if err == nil {
		t.Fatal("ожидалась ошибка для отсутствующего CA-сертификата")
	}
}

func TestClient_CheckReady(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	c := newTestClient(t, mux, 3)

	if status, msg := c.CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = (%q, %q), ожидался ok", status, msg)
	}

	healthy.Store(false)
	status, msg := c.CheckReady()
	if status != "fail" {
		t.Errorf("CheckReady() status = %q, ожидался fail", status)
	}
	if !strings.Contains(msg, "503") {
		t.Errorf("сообщение = %q, ожидался статус 503", msg)
	}
}
