package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akoutsou/pipegate/config"
	"github.com/akoutsou/pipegate/internal/breaker"
	"github.com/akoutsou/pipegate/internal/handler"
	"github.com/akoutsou/pipegate/internal/healthcheck"
	"github.com/akoutsou/pipegate/internal/httpserver"
	"github.com/akoutsou/pipegate/internal/lifecycle"
	"github.com/akoutsou/pipegate/internal/metrics"
	"github.com/akoutsou/pipegate/internal/pipeline"
	"github.com/akoutsou/pipegate/internal/upstream"
	"github.com/akoutsou/pipegate/pkg/logger"
)

const eventBufferSize = 256

// route ties together everything serving one path prefix.
type route struct {
	name     string
	prefix   string
	upstream *upstream.Upstream
	breaker  *breaker.CircuitBreaker
	handler  *handler.RouteHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	control := lifecycle.NewController()

	collector := metrics.NewCollector(eventBufferSize, log)
	collector.Start(ctx)

	registry, err := buildRegistry(cfg, control, log)
	if err != nil {
		log.Error("Failed to configure breakers", slog.Any("err", err))
		os.Exit(1)
	}

	routes, err := buildRoutes(ctx, cfg, log, registry, collector)
	if err != nil {
		log.Error("Failed to initialize routes", slog.Any("err", err))
		os.Exit(1)
	}

	mux := setupRouter(routes, collector, statusSource(routes, time.Now()))

	srv, err := httpserver.New(cfg.Server.Address, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Gateway started", slog.String("address", cfg.Server.Address))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		// Refuse new work before draining in-flight requests.
		control.BeginShutdown()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRegistry(cfg *config.Config, gate lifecycle.Gate, log *slog.Logger) (*breaker.Registry, error) {
	halfOpenAfter, err := time.ParseDuration(cfg.Breaker.HalfOpenAfter)
	if err != nil {
		return nil, err
	}

	var kinds []error
	for _, name := range cfg.Breaker.FailureKinds {
		kind, ok := upstream.KindFromName(name)
		if !ok {
			return nil, fmt.Errorf("unknown failure kind %q", name)
		}
		kinds = append(kinds, kind)
	}

	return breaker.NewRegistry(gate, log, cfg.Breaker.Threshold, halfOpenAfter, kinds...), nil
}

func buildRoutes(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	registry *breaker.Registry,
	collector *metrics.Collector,
) ([]*route, error) {
	interval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		return nil, err
	}

	var routes []*route

	for _, uc := range cfg.Upstreams {
		u, err := url.Parse(uc.URL)
		if err != nil {
			return nil, fmt.Errorf("upstream %s: %w", uc.Name, err)
		}

		up := upstream.New(u, log)
		go healthcheck.Watch(ctx, uc.Name, up, interval, log, collector)

		cb := registry.GetBreaker(uc.Name, pipeline.Adapt(up))

		routes = append(routes, &route{
			name:     uc.Name,
			prefix:   uc.Prefix,
			upstream: up,
			breaker:  cb,
			handler:  handler.NewRouteHandler(log, uc.Name, cb, collector),
		})
	}

	return routes, nil
}

func statusSource(routes []*route, start time.Time) func() metrics.Snapshot {
	return func() metrics.Snapshot {
		snap := metrics.Snapshot{
			Uptime: time.Since(start),
			Routes: make(map[string]metrics.RouteStatus, len(routes)),
		}

		for _, rt := range routes {
			snap.Routes[rt.name] = metrics.RouteStatus{
				Upstream:    rt.upstream.URL().String(),
				State:       rt.breaker.State().String(),
				Failures:    rt.breaker.Failures(),
				LastFailure: rt.breaker.LastFailure(),
				Healthy:     rt.upstream.IsHealthy(),
				AvgResponse: rt.upstream.EWMATime(),
			}
		}

		return snap
	}
}
