// Package metrics exposes Prometheus metrics and a /healthz endpoint for
// the screener.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the screener on a private
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	SymbolsTotal     *prometheus.CounterVec // labels: status
	ClustersTotal    *prometheus.CounterVec // labels: set
	IntradayFailures prometheus.Counter
	CandlesFetched   prometheus.Counter

	AssembleDur prometheus.Histogram
	DetectDur   prometheus.Histogram
	ScanDur     prometheus.Histogram

	LastScanTime prometheus.Gauge
	ScanInFlight prometheus.Gauge

	// Provider circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_symbols_total",
			Help: "Symbols processed, by assembly outcome",
		}, []string{"status"}),
		ClustersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_clusters_total",
			Help: "Symbols with at least one clustered bar, by EMA set",
		}, []string{"set"}),
		IntradayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_intraday_failures_total",
			Help: "Intraday fetches that failed and fell back to historical only",
		}),
		CandlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_candles_fetched_total",
			Help: "Candles in assembled series",
		}),

		AssembleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_assemble_duration_seconds",
			Help:    "Per-symbol series assembly latency (network bound)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		DetectDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_detect_duration_seconds",
			Help:    "Per-symbol cluster detection latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_scan_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		LastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),
		ScanInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_symbols_in_flight",
			Help: "Symbols currently being processed",
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_provider_breaker_state",
			Help: "Candle provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_provider_breaker_trips_total",
			Help: "Times the provider circuit breaker tripped open",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SymbolsTotal,
		m.ClustersTotal,
		m.IntradayFailures,
		m.CandlesFetched,
		m.AssembleDur,
		m.DetectDur,
		m.ScanDur,
		m.LastScanTime,
		m.ScanInFlight,
		m.BreakerState,
		m.BreakerTrips,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
		log:  log.With(slog.String("component", "metrics")),
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("server error", slog.Any("err", err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
