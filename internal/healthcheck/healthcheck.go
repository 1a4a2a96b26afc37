package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/akoutsou/pipegate/internal/metrics"
	"github.com/akoutsou/pipegate/internal/upstream"
)

// Watch periodically checks if an upstream is healthy by sending HTTP GET
// requests to its /health endpoint. The upstream's health status is updated
// based on the response, and transitions are reported to the collector.
func Watch(
	ctx context.Context,
	route string,
	up *upstream.Upstream,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("upstream", up.URL().String()))
			return

		case <-ticker.C:
			healthURL := up.URL().ResolveReference(&url.URL{Path: "/health"})

			req, err := http.NewRequestWithContext(
				ctx, http.MethodGet, healthURL.String(), nil)
			if err != nil {
				continue
			}

			res, err := client.Do(req)
			if err != nil {
				if up.SetHealthy(false) {
					logger.Warn("Upstream is down",
						slog.String("upstream", up.URL().String()),
						slog.String("error", err.Error()))
					emitHealth(collector, route, false)
				}
				continue
			}
			res.Body.Close()

			healthy := res.StatusCode == http.StatusOK
			changed := up.SetHealthy(healthy)

			if changed {
				if healthy {
					logger.Info("Upstream is back up",
						slog.String("upstream", up.URL().String()))
				} else {
					logger.Warn("Upstream is down",
						slog.String("upstream", up.URL().String()),
						slog.Int("status", res.StatusCode))
				}
				emitHealth(collector, route, healthy)
			}
		}
	}
}

func emitHealth(collector *metrics.Collector, route string, healthy bool) {
	if collector == nil {
		return
	}

	select {
	case collector.EventChannel() <- metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Route:     route,
		Healthy:   healthy,
	}:
	default:
	}
}
