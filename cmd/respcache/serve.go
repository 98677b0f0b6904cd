package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/janitor"
	"github.com/pario-ai/respcache/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache admin API and evict idle entries in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			if listen != "" {
				e.cfg.Server.Listen = listen
			}

			j := janitor.New(e.cache, e.cfg.Janitor.Interval, e.cfg.Janitor.MaxIdle, e.log)
			j.Start(ctx)
			defer j.Stop()

			e.log.Info("starting respcache",
				zap.String("config", *configPath),
				zap.String("driver", e.cfg.Store.Driver),
				zap.Bool("janitor", j.Enabled()))

			srv := server.New(e.cache, e.log)
			if err := srv.ListenAndServe(ctx, e.cfg.Server.Listen, e.cfg.Server.ShutdownTimeout); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}
