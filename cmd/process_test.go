package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/fetch"
	"github.com/soundline/pricesync/internal/model"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote("https://supplier.example.com/list.pdf"))
	assert.True(t, isRemote("http://supplier.example.com/list.pdf"))
	assert.True(t, isRemote("ftp://supplier.example.com/list.xlsx"))
	assert.False(t, isRemote("/data/pricelists/august.pdf"))
	assert.False(t, isRemote("august.pdf"))
}

func TestLocalize_LocalPathPassesThrough(t *testing.T) {
	dl := fetch.New(config.FetchConfig{})

	path, cleanup, err := localize(context.Background(), dl, "/data/list.pdf")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "/data/list.pdf", path)
}

func TestLocalize_DownloadsRemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pricelist content"))
	}))
	defer srv.Close()

	dl := fetch.New(config.FetchConfig{})

	path, cleanup, err := localize(context.Background(), dl, srv.URL+"/lists/august.txt")
	require.NoError(t, err)

	assert.Equal(t, "august.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pricelist content", string(data))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessAll_RunsEverySource(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("DENON AVR-X1800H AV Receiver R 15,990.00\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("JBL EON715-B Powered Speaker R 8,990.00\n"), 0o644))

	_, mgr := testMux(t, stubCatalog{})

	jobs, err := processAll(context.Background(), mgr, fetch.New(config.FetchConfig{}), []string{a, b}, 2)
	require.NoError(t, err)

	require.Len(t, jobs, 2)
	assert.Equal(t, "a.txt", jobs[0].Filename)
	assert.Equal(t, "b.txt", jobs[1].Filename)
	for _, j := range jobs {
		assert.Equal(t, model.JobStatusCompleted, j.Status)
	}
}

func TestProcessAll_FailedSourceDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("DENON AVR-X1800H AV Receiver R 15,990.00\n"), 0o644))

	_, mgr := testMux(t, stubCatalog{})

	jobs, err := processAll(context.Background(), mgr, fetch.New(config.FetchConfig{}),
		[]string{filepath.Join(dir, "missing.txt"), good}, 1)
	require.NoError(t, err)

	require.Len(t, jobs, 2)
	// The missing file still produces a job; extraction fails inside it.
	assert.Equal(t, model.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, model.JobStatusCompleted, jobs[1].Status)
}
