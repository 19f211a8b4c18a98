package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog connectivity check and ad-hoc queries",
}

var catalogPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check catalog API connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Catalog.Ping(cmd.Context()); err != nil {
			return eris.Wrap(err, "catalog unreachable")
		}
		zap.L().Info("catalog reachable", zap.String("base_url", cfg.Catalog.BaseURL))
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the catalog by name or model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		products, err := e.Catalog.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		zap.L().Info("search complete", zap.String("term", args[0]), zap.Int("results", len(products)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(products)
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list [page]",
	Short: "List a page of catalog products",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		page := 1
		if len(args) == 1 {
			p, err := strconv.Atoi(args[0])
			if err != nil || p < 1 {
				return eris.Errorf("invalid page %q", args[0])
			}
			page = p
		}

		products, err := e.Catalog.List(cmd.Context(), page, cfg.Catalog.ListLimit)
		if err != nil {
			return err
		}
		zap.L().Info("list complete",
			zap.Int("page", page),
			zap.Int("returned", len(products)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(products)
	},
}

func init() {
	catalogCmd.AddCommand(catalogPingCmd, catalogSearchCmd, catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}
