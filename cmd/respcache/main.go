package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/cache"
	"github.com/pario-ai/respcache/pkg/config"
	"github.com/pario-ai/respcache/pkg/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "respcache",
		Short:         "respcache - persistent response cache for generative model calls",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "respcache.yaml", "path to config file")

	root.AddCommand(
		newCacheCmd(&configPath),
		newServeCmd(&configPath),
		newCompleteCmd(&configPath),
		newMCPCmd(&configPath),
	)
	return root
}

// env is what every command needs: loaded config, a logger and an open cache.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	cache *cache.Cache
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(ctx, cfg.Store, cache.WithLogger(log))
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &env{cfg: cfg, log: log, cache: c}, nil
}

func (e *env) Close() {
	_ = e.cache.Close()
	_ = e.log.Sync()
}
