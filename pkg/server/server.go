// Package server runs the long-lived background services of a name server
// process (metrics endpoint, segment collection, storage maintenance) and
// shuts them down together.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/nameserver"
)

// Service is one background task.
type Service interface {
	// Name identifies the service in logs.
	Name() string

	// Serve runs until ctx is done or the service fails.
	Serve(ctx context.Context) error

	// Stop asks a running Serve to return. It may be called after Serve
	// returned.
	Stop(ctx context.Context) error
}

// Server runs services next to a NameServer.
//
// Thread Safety:
// AddService and Serve may be called from different goroutines, but
// services cannot be added once Serve has been called.
type Server struct {
	ns              *nameserver.NameServer
	shutdownTimeout time.Duration

	mu       sync.Mutex
	services []Service
	served   bool
}

// New creates a Server. shutdownTimeout bounds how long Stop calls may take
// once Serve is shutting down (default 30s).
func New(ns *nameserver.NameServer, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{
		ns:              ns,
		shutdownTimeout: shutdownTimeout,
		services:        make([]Service, 0, 4),
	}
}

// AddService registers a service. Names must be unique.
func (s *Server) AddService(svc Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add a service after Serve has been called")
	}
	for _, existing := range s.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("service %s already registered", svc.Name())
		}
	}

	s.services = append(s.services, svc)
	logger.Debug("registered service %s", svc.Name())
	return nil
}

// Services returns the registered services in registration order.
func (s *Server) Services() []Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Service, len(s.services))
	copy(out, s.services)
	return out
}

// Serve recovers the namespace, then runs every service until ctx is done
// or one of them fails. All services are stopped, in reverse registration
// order, before Serve returns. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already served")
	}
	s.served = true
	services := make([]Service, len(s.services))
	copy(services, s.services)
	s.mu.Unlock()

	if s.ns != nil {
		if _, err := s.ns.Recover(ctx); err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}
	}

	logger.Info("Starting %d service(s)", len(services))

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			if err := svc.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s failed: %v", svc.Name(), err)
				return fmt.Errorf("%s: %w", svc.Name(), err)
			}
			logger.Debug("%s stopped", svc.Name())
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		}
		s.stopAll(services)
		return nil
	})

	err := g.Wait()
	logger.Info("Server stopped")
	return err
}

func (s *Server) stopAll(services []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := svc.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s: %v", svc.Name(), err)
		}
	}
}
