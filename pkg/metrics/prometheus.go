// Package metrics exposes scan engine measurements as Prometheus collectors.
// Collectors live on a private registry so tests and the CLI never share global state.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/velemoonkon/portbolt/pkg/scanner"
)

const (
	namespace = "portbolt"

	subsystemScan   = "scan"
	subsystemBanner = "banner"
)

// Collector implements scanner.Recorder on a private Prometheus registry
type Collector struct {
	portsScanned   *prometheus.CounterVec
	connectLatency *prometheus.HistogramVec
	banners        *prometheus.CounterVec
	slotsInUse     prometheus.Gauge
	scansTotal     prometheus.Counter
	scanDuration   prometheus.Histogram

	registry *prometheus.Registry
}

var _ scanner.Recorder = (*Collector)(nil)

// NewCollector creates a collector with all scan metrics registered
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		portsScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "ports_total",
				Help:      "Ports scanned by status and failure reason",
			},
			[]string{"status", "reason"},
		),
		connectLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "connect_duration_seconds",
				Help:      "Duration of TCP connection attempts in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"status"},
		),
		banners: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemBanner,
				Name:      "total",
				Help:      "Banner capture attempts on open ports by outcome",
			},
			[]string{"result"},
		),
		slotsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "slots_in_use",
				Help:      "Concurrency slots currently held by port tasks",
			},
		),
		scansTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "total",
				Help:      "Completed scans",
			},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "duration_seconds",
				Help:      "Duration of whole scans in seconds",
				Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
			},
		),
	}

	registry.MustRegister(
		c.portsScanned,
		c.connectLatency,
		c.banners,
		c.slotsInUse,
		c.scansTotal,
		c.scanDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// PortScanned counts one port and observes its connect latency
func (c *Collector) PortScanned(status scanner.Status, reason string, latency time.Duration) {
	c.portsScanned.WithLabelValues(string(status), reason).Inc()
	c.connectLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
}

// BannerCollected counts one banner attempt
func (c *Collector) BannerCollected(captured bool) {
	result := "empty"
	if captured {
		result = "captured"
	}
	c.banners.WithLabelValues(result).Inc()
}

// SlotsInUse sets the slots gauge
func (c *Collector) SlotsInUse(n int) {
	c.slotsInUse.Set(float64(n))
}

// ScanFinished records a completed scan
func (c *Collector) ScanFinished(ports int, duration time.Duration) {
	c.scansTotal.Inc()
	c.scanDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the registry in the exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()

	slog.Debug("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
