package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soundline/pricesync/internal/fetch"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/internal/workflow"
)

var (
	processFast     bool
	processAutomate bool
)

var processCmd = &cobra.Command{
	Use:   "process <pricelist>...",
	Short: "Run the full pipeline on one or more pricelist files or URLs",
	Long:  "Each argument is a local file or an http/https/ftp URL. URLs are downloaded to a temp file first. Multiple pricelists are processed concurrently; reconciliation within each stays sequential.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		mgr := newManager(e, processFast, processAutomate)

		jobs, err := processAll(ctx, mgr, e.Fetch, args, cfg.Batch.MaxConcurrentFiles)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

func init() {
	processCmd.Flags().BoolVar(&processFast, "fast", false, "sampled reconciliation with extrapolated totals")
	processCmd.Flags().BoolVar(&processAutomate, "create-missing", false, "create missing products in the catalog")
	rootCmd.AddCommand(processCmd)
}

// processAll runs the pipeline over every pricelist with bounded
// concurrency. A single failed pricelist does not abort the batch; its job
// carries the errors.
func processAll(ctx context.Context, mgr *workflow.Manager, dl *fetch.Client, sources []string, concurrency int) ([]model.JobSummary, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing pricelists",
		zap.Int("count", len(sources)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]model.JobSummary, len(sources))
	var failed atomic.Int64

	for i, src := range sources {
		g.Go(func() error {
			log := zap.L().With(zap.String("source", src))

			path, cleanup, err := localize(gctx, dl, src)
			if err != nil {
				failed.Add(1)
				log.Error("download failed", zap.Error(err))
				return nil
			}
			defer cleanup()

			job, err := mgr.Run(gctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("pipeline failed", zap.Error(err))
				return nil
			}

			results[i] = job.Summary()
			log.Info("pricelist processed",
				zap.String("job_id", job.ID),
				zap.String("status", string(job.Status)),
				zap.Int("extracted", job.ProductsExtracted),
				zap.Int("missing", job.ProductsMissing),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "process batch")
	}

	zap.L().Info("batch complete",
		zap.Int("pricelists", len(sources)),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

// localize makes a source available as a local file. Remote URLs are
// downloaded to a temp file; the cleanup removes it.
func localize(ctx context.Context, dl *fetch.Client, src string) (string, func(), error) {
	if !isRemote(src) {
		return src, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "pricesync-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "create temp dir")
	}
	dest := filepath.Join(dir, fetch.Filename(src))

	if _, err := dl.FetchToFile(ctx, src, dest); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	return dest, func() { _ = os.RemoveAll(dir) }, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "ftp://")
}
