package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/fetch"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/internal/store"
	"github.com/soundline/pricesync/internal/workflow"
	"github.com/soundline/pricesync/pkg/opencart"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for pricelist processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		mgr := newManager(e, false, false)

		uploadDir, err := os.MkdirTemp("", "pricesync-uploads-*")
		if err != nil {
			return eris.Wrap(err, "create upload dir")
		}
		defer os.RemoveAll(uploadDir) //nolint:errcheck

		mux := newServeMux(mgr, e.Catalog, uploadDir, fetch.NewCached(e.Fetch, uploadDir))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServeMux builds the API routes. Uploaded pricelists land in uploadDir;
// remote pricelists go through the ETag-aware download cache.
func newServeMux(mgr *workflow.Manager, cat opencart.Client, uploadDir string, dl *fetch.Cached) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/workflow/start", func(w http.ResponseWriter, r *http.Request) {
		path, filename, err := receivePricelist(r, uploadDir, dl)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		job, err := mgr.Start(r.Context(), path)
		if err != nil {
			zap.L().Error("start workflow", zap.String("filename", filename), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start workflow"})
			return
		}

		writeJSON(w, http.StatusAccepted, job.Summary())
	})

	mux.HandleFunc("GET /api/workflow/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := mgr.Status(r.Context(), r.PathValue("id"))
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
				return
			}
			zap.L().Error("job status", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	mux.HandleFunc("POST /api/workflow/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Cancel(r.PathValue("id")); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
	})

	mux.HandleFunc("GET /api/workflow", func(w http.ResponseWriter, r *http.Request) {
		filter := store.JobFilter{Status: model.JobStatus(r.URL.Query().Get("status"))}
		jobs, err := mgr.List(r.Context(), filter)
		if err != nil {
			zap.L().Error("list jobs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list jobs"})
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	})

	mux.HandleFunc("GET /api/report", func(w http.ResponseWriter, r *http.Request) {
		report, err := mgr.LastReport(r.Context())
		if err != nil {
			zap.L().Error("load cached report", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load report"})
			return
		}
		if report == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached report"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("GET /api/catalog/search", func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		if term == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "term is required"})
			return
		}
		products, err := cat.Search(r.Context(), term)
		if err != nil {
			zap.L().Error("catalog search", zap.String("term", term), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "catalog search failed"})
			return
		}
		writeJSON(w, http.StatusOK, products)
	})

	return mux
}

// receivePricelist makes the pricelist available on disk and returns its
// local path. Multipart uploads use the "file" field; JSON bodies name an
// existing local path or a remote URL to download.
func receivePricelist(r *http.Request, uploadDir string, dl *fetch.Cached) (path string, filename string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", eris.New("multipart upload requires a \"file\" field")
		}
		defer file.Close() //nolint:errcheck

		filename = filepath.Base(header.Filename)
		if filename == "" || filename == "." {
			filename = "pricelist"
		}
		dest, err := os.CreateTemp(uploadDir, "*-"+filename)
		if err != nil {
			return "", "", eris.Wrap(err, "save upload")
		}
		defer dest.Close() //nolint:errcheck

		if _, err := io.Copy(dest, file); err != nil {
			return "", "", eris.Wrap(err, "save upload")
		}
		return dest.Name(), filename, nil
	}

	var req struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", eris.New("invalid request body")
	}

	switch {
	case req.URL != "":
		path, err := dl.Download(r.Context(), req.URL)
		if err != nil {
			return "", "", eris.Wrapf(err, "download %s", req.URL)
		}
		return path, fetch.Filename(req.URL), nil
	case req.Path != "":
		if _, err := os.Stat(req.Path); err != nil {
			return "", "", eris.Errorf("pricelist %s not found", req.Path)
		}
		return req.Path, filepath.Base(req.Path), nil
	default:
		return "", "", eris.New("path or url is required")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
