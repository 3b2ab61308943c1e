package server

import (
	"context"

	"github.com/marmos91/nameserver/pkg/gc"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/metrics"
)

// MetricsService serves the Prometheus endpoint.
type MetricsService struct {
	Server *metrics.Server
}

func (s MetricsService) Name() string                    { return "metrics" }
func (s MetricsService) Serve(ctx context.Context) error { return s.Server.Start(ctx) }
func (s MetricsService) Stop(ctx context.Context) error  { return s.Server.Stop(ctx) }

// CollectorService runs the orphaned segment collector.
type CollectorService struct {
	Collector *gc.Collector
}

func (s CollectorService) Name() string { return "segment-gc" }

func (s CollectorService) Serve(ctx context.Context) error {
	s.Collector.Start()
	<-ctx.Done()
	return nil
}

func (s CollectorService) Stop(ctx context.Context) error { return s.Collector.Stop(ctx) }

// BadgerGCService runs BadgerDB value-log garbage collection.
type BadgerGCService struct {
	Engine *badger.Engine
}

func (s BadgerGCService) Name() string { return "badger-gc" }

func (s BadgerGCService) Serve(ctx context.Context) error {
	s.Engine.RunGCLoop(ctx)
	return nil
}

func (s BadgerGCService) Stop(context.Context) error { return nil }
