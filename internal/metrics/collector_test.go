package metrics_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/akoutsou/pipegate/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, nil))
}

func scrape(c *metrics.Collector) string {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		collector = metrics.NewCollector(16, testLogger())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should count forwarded exchanges per route", func() {
		collector.EventChannel() <- metrics.Event{
			Type:  metrics.EventExchangeForwarded,
			Route: "orders",
		}

		Eventually(func() string { return scrape(collector) }).Should(
			ContainSubstring(`pipegate_exchanges_forwarded_total{route="orders"} 1`))
	})

	It("should count rejected exchanges per route", func() {
		collector.EventChannel() <- metrics.Event{
			Type:  metrics.EventExchangeRejected,
			Route: "orders",
		}
		collector.EventChannel() <- metrics.Event{
			Type:  metrics.EventExchangeRejected,
			Route: "orders",
		}

		Eventually(func() string { return scrape(collector) }).Should(
			ContainSubstring(`pipegate_exchanges_rejected_total{route="orders"} 2`))
	})

	It("should count completions by outcome and observe the duration", func() {
		collector.EventChannel() <- metrics.Event{
			Type:     metrics.EventExchangeCompleted,
			Route:    "orders",
			Duration: 30 * time.Millisecond,
			Failed:   true,
		}

		Eventually(func() string { return scrape(collector) }).Should(SatisfyAll(
			ContainSubstring(`pipegate_exchanges_completed_total{outcome="failure",route="orders"} 1`),
			ContainSubstring(`pipegate_exchange_duration_seconds_count{route="orders"} 1`),
		))
	})

	It("should track the breaker state gauge", func() {
		collector.EventChannel() <- metrics.Event{
			Type:      metrics.EventExchangeRejected,
			Route:     "orders",
			State:     "OPEN",
			StateCode: 2,
		}

		Eventually(func() string { return scrape(collector) }).Should(
			ContainSubstring(`pipegate_breaker_state{route="orders"} 2`))
	})

	It("should track upstream health", func() {
		collector.EventChannel() <- metrics.Event{
			Type:    metrics.EventHealthChanged,
			Route:   "orders",
			Healthy: false,
		}

		Eventually(func() string { return scrape(collector) }).Should(
			ContainSubstring(`pipegate_upstream_healthy{route="orders"} 0`))
	})
})

var _ = Describe("StatusHandler", func() {
	It("should serve the snapshot as JSON", func() {
		source := func() metrics.Snapshot {
			return metrics.Snapshot{
				Uptime: time.Minute,
				Routes: map[string]metrics.RouteStatus{
					"orders": {
						Upstream: "http://localhost:8081",
						State:    "CLOSED",
						Failures: 0,
						Healthy:  true,
					},
				},
			}
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		metrics.StatusHandler(source)(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(rec.Body.String()).To(ContainSubstring(`"state":"CLOSED"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"upstream":"http://localhost:8081"`))
	})
})
