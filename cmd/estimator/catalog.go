package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/boddenberg/estimator-bff-go/internal/catalog"
	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/pdf"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var catalogTrade string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or seed the system materials catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the built-in catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		items := catalog.All()
		if catalogTrade != "" {
			t, err := domain.ParseTrade(catalogTrade)
			if err != nil {
				return err
			}
			items = catalog.ByTrade(t)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRADE\tNAME\tUNIT\tPRICE")
		for _, m := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Trade, m.Name, m.Unit, pdf.FormatCurrency(m.DefaultPrice))
		}
		return w.Flush()
	},
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the built-in catalog into the data backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, logger, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := service.NewMaterialService(store, logger).SeedCatalog(ctx)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", zap.Int("materials", n), zap.String("data_backend", cfg.DataBackend))
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d materials\n", n)
		return nil
	},
}

func init() {
	catalogListCmd.Flags().StringVar(&catalogTrade, "trade", "", "only list one trade (hvac, plumbing, electrical, roofing)")
	catalogCmd.AddCommand(catalogListCmd, catalogSeedCmd)
}
