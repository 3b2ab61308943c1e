package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/config"
	"github.com/marmos91/nameserver/pkg/gc"
	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the namespace and keep it maintained until signalled",
	Long: `Open the configured storage, check snapshot state left by earlier runs,
expose Prometheus metrics when enabled, reclaim orphaned segments when gc is
enabled and run BadgerDB value-log garbage collection until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadedConfig
	return withComponents(ctx, func(ctx context.Context, c *config.Components) error {
		srv := server.New(c.NameServer, cfg.Server.ShutdownTimeout)

		services := []server.Service{server.CollectorService{Collector: c.Collector}}
		if c.Metrics.Server != nil {
			c.Metrics.Server.AddHealthCheck("engine", func(ctx context.Context) error {
				return c.Engine.View(ctx, func(kv.Txn) error { return nil })
			})
			services = append(services, server.MetricsService{Server: c.Metrics.Server})
		}
		if engine, ok := c.Engine.(*badger.Engine); ok {
			services = append(services, server.BadgerGCService{Engine: engine})
		}
		for _, svc := range services {
			if err := srv.AddService(svc); err != nil {
				return err
			}
		}

		logger.Info("serving namespace: storage=%s services=%d", cfg.Storage.Type, len(services))
		return srv.Serve(ctx)
	})
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete segments whose file record is gone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
			collector := c.Collector
			if dryRun {
				collector = gc.NewCollector(c.Store, gc.Config{DryRun: true})
			}
			stats, err := collector.RunNow(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
			return nil
		})
	},
}

func init() {
	gcCmd.Flags().Bool("dry-run", false, "only report what would be deleted")
}
