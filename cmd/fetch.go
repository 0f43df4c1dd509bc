package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/gridsource"
)

var fetchProduct string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and decode the newest published grid cycle once",
	RunE: func(cmd *cobra.Command, args []string) error {
		product := grid.Product(fetchProduct)
		if product != grid.ProductWind && product != grid.ProductWave {
			return fmt.Errorf("unknown product %q, want wind or wave", fetchProduct)
		}

		env, err := initEnv(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Catalog != nil {
			if err := env.Catalog.Migrate(cmd.Context()); err != nil {
				return err
			}
		}

		poller := gridsource.NewPoller(env.Source, env.Fetcher, env.Decoder, env.Catalog, nil,
			gridsource.PollerOptions{
				BaseURL:      cfg.Grids.BaseURL,
				Dir:          cfg.Grids.Dir,
				MaxLookback:  cfg.Grids.MaxLookback,
				ForecastHour: cfg.Grids.ForecastHour,
			})
		poller.PollOnce(cmd.Context())

		snap, ok := env.Source.Current(product)
		if !ok {
			return fmt.Errorf("no %s grid could be fetched", product)
		}

		zap.L().Info("fetch complete",
			zap.String("product", string(product)),
			zap.String("path", snap.Info.Path),
			zap.Time("valid_time", snap.Field.ValidTime()),
		)
		fmt.Printf("%s: %s (valid %s)\n", product, snap.Info.Path, snap.Field.ValidTime().Format("2006-01-02 15:04 MST"))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchProduct, "product", "wind", "grid product to fetch (wind or wave)")
	rootCmd.AddCommand(fetchCmd)
}
