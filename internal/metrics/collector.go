package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EventType string

const (
	EventExchangeForwarded EventType = "exchange_forwarded"
	EventExchangeRejected  EventType = "exchange_rejected"
	EventExchangeCompleted EventType = "exchange_completed"
	EventHealthChanged     EventType = "health_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	State      string
	StateCode  int
	Duration   time.Duration
	StatusCode int
	Failed     bool
	Healthy    bool
}

// Collector consumes gateway events from a buffered channel and exposes
// them as Prometheus metrics on a private registry.
type Collector struct {
	eventCh chan Event
	logger  *slog.Logger

	registry  *prometheus.Registry
	forwarded *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	state     *prometheus.GaugeVec
	healthy   *prometheus.GaugeVec
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	c := &Collector{
		eventCh:  make(chan Event, bufferSize),
		logger:   logger,
		registry: prometheus.NewRegistry(),

		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipegate_exchanges_forwarded_total",
			Help: "Exchanges forwarded to the upstream, per route.",
		}, []string{"route"}),

		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipegate_exchanges_rejected_total",
			Help: "Exchanges rejected by the circuit breaker or lifecycle gate, per route.",
		}, []string{"route"}),

		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipegate_exchanges_completed_total",
			Help: "Completed exchanges by outcome, per route.",
		}, []string{"route", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipegate_exchange_duration_seconds",
			Help:    "End-to-end exchange duration, per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipegate_breaker_state",
			Help: "Circuit breaker state per route (0 closed, 1 half-open, 2 open).",
		}, []string{"route"}),

		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipegate_upstream_healthy",
			Help: "Upstream health per route (1 healthy, 0 down).",
		}, []string{"route"}),
	}

	c.registry.MustRegister(c.forwarded, c.rejected, c.completed, c.duration, c.state, c.healthy)

	return c
}

// EventChannel returns the channel producers emit events on. Sends should
// be non-blocking; events are dropped when the buffer is full.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Handler serves the collected metrics in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventExchangeForwarded:
		c.forwarded.WithLabelValues(event.Route).Inc()

	case EventExchangeRejected:
		c.rejected.WithLabelValues(event.Route).Inc()

	case EventExchangeCompleted:
		outcome := "success"
		if event.Failed {
			outcome = "failure"
		}
		c.completed.WithLabelValues(event.Route, outcome).Inc()
		c.duration.WithLabelValues(event.Route).Observe(event.Duration.Seconds())

	case EventHealthChanged:
		value := 0.0
		if event.Healthy {
			value = 1.0
		}
		c.healthy.WithLabelValues(event.Route).Set(value)
	}

	if event.State != "" {
		c.state.WithLabelValues(event.Route).Set(float64(event.StateCode))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}
