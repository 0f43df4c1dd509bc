package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/api"
	"github.com/seaward-systems/marinecast/internal/gridsource"
	"github.com/seaward-systems/marinecast/internal/observability"
)

var (
	servePort   int
	serveNoPoll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marine weather query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Catalog != nil {
			if err := env.Catalog.Migrate(ctx); err != nil {
				return err
			}
			env.Source.WarmStart(ctx, env.Catalog, env.Decoder)
		}

		metrics := observability.NewCollector("marinecast")

		if !serveNoPoll {
			poller := gridsource.NewPoller(env.Source, env.Fetcher, env.Decoder, env.Catalog, nil,
				gridsource.PollerOptions{
					Interval:     time.Duration(cfg.Grids.PollIntervalMins) * time.Minute,
					BaseURL:      cfg.Grids.BaseURL,
					Dir:          cfg.Grids.Dir,
					MaxLookback:  cfg.Grids.MaxLookback,
					ForecastHour: cfg.Grids.ForecastHour,
					Metrics:      metrics,
				})
			go func() {
				if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
					zap.L().Error("poller stopped", zap.Error(err))
				}
			}()
		}

		server := api.NewServer(env.Orchestrator, env.Gazetteer, env.Forecasts, env.Source, metrics)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(api.Options{AllowedOrigins: cfg.Server.AllowedOrigins}),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
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
	serveCmd.Flags().BoolVar(&serveNoPoll, "no-poll", false, "serve without the upstream grid poller")
	rootCmd.AddCommand(serveCmd)
}
