package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/catalog"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/internal/reconcile"
)

var reconcileFast bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <records.json>",
	Short: "Reconcile a parsed-records JSON file against the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read records file")
		}
		var records []model.ProductRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return eris.Wrap(err, "parse records file")
		}

		engine := reconcile.NewEngine(catalog.NewAdapter(e.Catalog), cfg.Reconcile)
		orch := reconcile.NewOrchestrator(engine, cfg.Reconcile)

		var report model.Report
		if reconcileFast {
			report = orch.RunFast(ctx, records)
		} else {
			report = orch.Run(ctx, records)
		}

		zap.L().Info("reconciliation complete",
			zap.Int("total", report.Summary.Total),
			zap.Int("exact", report.Summary.ExactMatches),
			zap.Int("price_differences", report.Summary.PriceDifferences),
			zap.Int("missing", report.Summary.Missing),
			zap.Bool("approximate", report.Approximate),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFast, "fast", false, "sampled reconciliation with extrapolated totals")
	rootCmd.AddCommand(reconcileCmd)
}
