// Package observability owns process-wide telemetry: the Prometheus
// registry the engine reports into, and OpenTelemetry tracing setup.
package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-tutor/internal/platform/envutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const namespace = "tutor"

type Metrics struct {
	reg *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	askTotal     *prometheus.CounterVec
	askLatency   *prometheus.HistogramVec
	askFallbacks *prometheus.CounterVec

	retrievals       *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec
	retrievalResults *prometheus.HistogramVec

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerRetries *prometheus.CounterVec

	cacheOps *prometheus.CounterVec

	signalsIngested *prometheus.CounterVec
	reviews         *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec

	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports METRICS_ENABLED. When off, Init returns nil and every
// Metrics method is a no-op on the nil receiver.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New(prometheus.NewRegistry())
		instance.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// New builds a Metrics bound to reg. Tests pass a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	m := &Metrics{
		reg: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help: "API request latency in seconds.", Buckets: latency,
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "In-flight API requests.",
		}),
		askTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ask", Name: "requests_total",
			Help: "Ask pipeline runs by outcome (success, fallback, error).",
		}, []string{"outcome"}),
		askLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ask", Name: "duration_seconds",
			Help: "End-to-end ask pipeline latency.", Buckets: latency,
		}, []string{"outcome"}),
		askFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ask", Name: "fallbacks_total",
			Help: "Fallback responses by the stage that failed.",
		}, []string{"stage"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "queries_total",
			Help: "Retrieval queries by backend and path (hybrid, fallback).",
		}, []string{"backend", "path"}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "duration_seconds",
			Help: "Retrieval latency.", Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"backend", "path"}),
		retrievalResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "results",
			Help: "Candidates returned per query.", Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"backend", "path"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "calls_total",
			Help: "Provider calls after retries, by provider, op and outcome.",
		}, []string{"provider", "op", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "provider", Name: "duration_seconds",
			Help: "Provider call latency including retries.", Buckets: latency,
		}, []string{"provider", "op", "outcome"}),
		providerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "retries_total",
			Help: "Provider retry attempts.",
		}, []string{"provider", "op"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operations_total",
			Help: "Cache operations by op and outcome (hit, miss, error, ok).",
		}, []string{"op", "outcome"}),
		signalsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signals", Name: "ingested_total",
			Help: "Behavioral signals ingested by type.",
		}, []string{"signal_type"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fsrs", Name: "reviews_total",
			Help: "Spaced-repetition reviews by rating.",
		}, []string{"rating"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "up",
			Help: "1 when the last Redis ping succeeded.",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "ping_seconds",
			Help: "Latency of the last Redis ping.",
		}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.askTotal, m.askLatency, m.askFallbacks,
		m.retrievals, m.retrievalLatency, m.retrievalResults,
		m.providerCalls, m.providerLatency, m.providerRetries,
		m.cacheOps, m.signalsIngested, m.reviews, m.rateLimited,
		m.redisUp, m.redisPing,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAsk(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.askTotal.WithLabelValues(outcome).Inc()
	m.askLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) ObserveFallback(stage string) {
	if m == nil {
		return
	}
	m.askFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveRetrieval(backend, path string, results int, dur time.Duration) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(backend, path).Inc()
	m.retrievalLatency.WithLabelValues(backend, path).Observe(dur.Seconds())
	m.retrievalResults.WithLabelValues(backend, path).Observe(float64(results))
}

func (m *Metrics) ObserveProviderCall(provider, op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, op, outcome).Inc()
	m.providerLatency.WithLabelValues(provider, op, outcome).Observe(dur.Seconds())
}

func (m *Metrics) ObserveProviderRetry(provider, op string) {
	if m == nil {
		return
	}
	m.providerRetries.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) ObserveCache(op, outcome string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) IncSignal(signalType string) {
	if m == nil {
		return
	}
	m.signalsIngested.WithLabelValues(signalType).Inc()
}

func (m *Metrics) IncReview(rating string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(rating).Inc()
}

func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

// RegisterDB exposes database/sql pool stats for the primary database.
func (m *Metrics) RegisterDB(name string, db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	m.reg.MustRegister(collectors.NewDBStatsCollector(db, name))
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
