package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/windowio/pkg/utils"
)

var logger = utils.GetLogger("metrics")

// Collector records reader and cache activity on a private Prometheus registry.
// A nil or disabled Collector accepts every call and records nothing.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	windowsMaterialized *prometheus.CounterVec
	windowsPrefetched   *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	cacheEvictions      *prometheus.CounterVec
	recoveries          *prometheus.CounterVec
	bytesRead           prometheus.Counter
	overflowBytes       prometheus.Counter
	rangeRequests       *prometheus.CounterVec
	rangeLatency        prometheus.Histogram

	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Address:   ":9108",
			Path:      "/metrics",
			Namespace: "windowio",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled && c.registry != nil
}

// Registry returns the collector's registry, or nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	if !c.enabled() {
		return nil
	}
	return c.registry
}

// Handler returns the HTTP handler exposing the collected metrics.
func (c *Collector) Handler() http.Handler {
	if !c.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start serves the metrics endpoint in the background until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled() || c.config.Address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	c.server = &http.Server{
		Addr:              c.config.Address,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(shutdownCtx)
	}()

	logger.Infof("serving metrics on %s%s", c.config.Address, c.config.Path)
	return nil
}

// Stop stops the metrics server
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordWindowMaterialized counts a window read from a source of the given kind.
func (c *Collector) RecordWindowMaterialized(source string) {
	if !c.enabled() {
		return
	}
	c.windowsMaterialized.With(prometheus.Labels{"source": source}).Inc()
}

// RecordPrefetch counts a window read ahead of a sequential reader.
func (c *Collector) RecordPrefetch(source string) {
	if !c.enabled() {
		return
	}
	c.windowsPrefetched.With(prometheus.Labels{"source": source}).Inc()
}

// RecordCacheLookup counts a lookup against the named cache.
func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if !c.enabled() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.With(prometheus.Labels{"cache": cache, "result": result}).Inc()
}

// RecordEviction counts a window evicted from the named cache.
func (c *Collector) RecordEviction(cache string) {
	if !c.enabled() {
		return
	}
	c.cacheEvictions.With(prometheus.Labels{"cache": cache}).Inc()
}

// RecordRecovery counts a reclaimed buffer being regenerated.
func (c *Collector) RecordRecovery(success bool) {
	if !c.enabled() {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	c.recoveries.With(prometheus.Labels{"result": result}).Inc()
}

// RecordBytesRead counts bytes delivered to callers.
func (c *Collector) RecordBytesRead(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.bytesRead.Add(float64(n))
}

// RecordOverflowWrite counts bytes written to an overflow store.
func (c *Collector) RecordOverflowWrite(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.overflowBytes.Add(float64(n))
}

// RecordRangeRequest records one ranged read against a remote object.
func (c *Collector) RecordRangeRequest(duration time.Duration, err error) {
	if !c.enabled() {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.rangeRequests.With(prometheus.Labels{"result": result}).Inc()
	c.rangeLatency.Observe(duration.Seconds())
}

func (c *Collector) initMetrics() {
	ns := c.config.Namespace

	c.windowsMaterialized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "windows_materialized_total",
			Help:      "Total number of windows read from a source",
		},
		[]string{"source"},
	)

	c.windowsPrefetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "windows_prefetched_total",
			Help:      "Total number of windows read ahead of sequential access",
		},
		[]string{"source"},
	)

	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_lookups_total",
			Help:      "Total number of window cache lookups",
		},
		[]string{"cache", "result"},
	)

	c.cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_evictions_total",
			Help:      "Total number of windows evicted from a cache",
		},
		[]string{"cache"},
	)

	c.recoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "window_recoveries_total",
			Help:      "Total number of reclaimed window buffers regenerated",
		},
		[]string{"result"},
	)

	c.bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "bytes_read_total",
		Help:      "Total number of bytes delivered by readers",
	})

	c.overflowBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "overflow_bytes_written_total",
		Help:      "Total number of bytes written to overflow stores",
	})

	c.rangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "range_requests_total",
			Help:      "Total number of ranged reads sent to remote objects",
		},
		[]string{"result"},
	)

	c.rangeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "range_request_duration_seconds",
		Help:      "Latency of ranged reads sent to remote objects",
		Buckets:   prometheus.DefBuckets,
	})
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.windowsMaterialized,
		c.windowsPrefetched,
		c.cacheLookups,
		c.cacheEvictions,
		c.recoveries,
		c.bytesRead,
		c.overflowBytes,
		c.rangeRequests,
		c.rangeLatency,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}
