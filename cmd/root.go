package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricesync",
	Short: "Supplier pricelist reconciliation for the store catalog",
	Long:  "Extracts products from supplier pricelists (PDF, spreadsheet, text), validates them, reconciles against the store catalog, and optionally creates missing products.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
