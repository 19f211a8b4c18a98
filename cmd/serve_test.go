package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/extract"
	"github.com/soundline/pricesync/internal/fetch"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/internal/parser"
	"github.com/soundline/pricesync/internal/reconcile"
	"github.com/soundline/pricesync/internal/store"
	"github.com/soundline/pricesync/internal/validate"
	"github.com/soundline/pricesync/internal/workflow"
	"github.com/soundline/pricesync/pkg/opencart"
)

type fileExtractor struct{}

func (fileExtractor) Extract(_ context.Context, path string) extract.Extraction {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Extraction{Error: err.Error()}
	}
	return extract.Extraction{Success: true, Text: string(data), Method: "plain"}
}

type stubCatalog struct {
	opencart.Client
	products []opencart.Product
	err      error
}

func (s stubCatalog) Search(context.Context, string) ([]opencart.Product, error) {
	return s.products, s.err
}

func testMux(t *testing.T, cat opencart.Client) (*http.ServeMux, *workflow.Manager) {
	t.Helper()
	engine := reconcile.NewEngine(
		reconcile.SearcherFunc(func(context.Context, string) ([]model.CatalogEntry, error) {
			return nil, nil
		}),
		config.ReconcileConfig{},
	)
	mgr := workflow.NewManager(workflow.Deps{
		Store:     store.NewMemory(),
		Extractor: fileExtractor{},
		Parser:    parser.New(config.ParserConfig{}),
		Validator: validate.New(config.ValidateConfig{}),
		Orchestrator: reconcile.NewOrchestrator(engine, config.ReconcileConfig{},
			reconcile.WithSleep(func(time.Duration) {})),
		CacheTTL: time.Minute,
	})
	dl := fetch.NewCached(fetch.New(config.FetchConfig{TimeoutSecs: 5}), t.TempDir())
	return newServeMux(mgr, cat, t.TempDir(), dl), mgr
}

func TestServe_Health(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_StartAndPollWorkflow(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("DENON AVR-X1800H AV Receiver R 15,990.00\n"), 0o644))

	body, err := json.Marshal(map[string]string{"path": path})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflow/start", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var started model.JobSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow/"+started.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var job model.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == model.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []model.JobSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	// The status query param filters the listing.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow?status=completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Empty(t, jobs)
}

func TestServe_StartFromURL(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	var full, conditional int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full++
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("DENON AVR-X1800H AV Receiver R 15,990.00\n"))
	}))
	defer srv.Close()

	start := func() model.JobSummary {
		body, err := json.Marshal(map[string]string{"url": srv.URL + "/august.txt"})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/workflow/start", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var started model.JobSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
		return started
	}

	first := start()
	assert.Contains(t, first.Filename, "august.txt")
	require.Equal(t, 1, full)

	// The second start matches the cached ETag and reuses the copy on disk.
	second := start()
	require.NotEmpty(t, second.ID)
	assert.Equal(t, 1, full, "unchanged pricelist must not be transferred again")
	assert.Equal(t, 1, conditional)
}

func TestServe_MultipartUpload(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "august.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("JBL EON715-B Powered Speaker R 8,990.00\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflow/start", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var started model.JobSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Contains(t, started.Filename, "august.txt")
}

func TestServe_StartRejectsBadRequests(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflow/start", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/workflow/start",
		bytes.NewReader([]byte(`{"path":"/no/such/file.pdf"}`)))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_UnknownJobIs404(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workflow/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_CancelNotRunningConflicts(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/workflow/nope/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServe_ReportNotCachedIs404(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_CatalogSearch(t *testing.T) {
	mux, _ := testMux(t, stubCatalog{products: []opencart.Product{
		{ID: "42", Name: "Denon AVR-X1800H", Model: "AVR-X1800H", Price: opencart.NewMoney(decimal.RequireFromString("15990.00"))},
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/search?term=AVR-X1800H", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var products []opencart.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "42", products[0].ID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
