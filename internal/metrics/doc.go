/*
Package metrics provides Prometheus metrics for windowed readers and window caches.

# Overview

A Collector owns a private registry so several readers in one process, or several
tests, never collide on the default registry. Every Record method is safe to call on a
nil or disabled Collector, which lets readers and caches take an optional collector
without guarding each call site.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Address:   ":9108",
		Path:      "/metrics",
		Namespace: "windowio",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}

# Metrics

	windows_materialized_total{source}     windows read from a source
	cache_lookups_total{cache,result}      window cache hits and misses
	cache_evictions_total{cache}           windows evicted from a bounded cache
	window_recoveries_total{result}        reclaimed buffers regenerated
	bytes_read_total                       bytes delivered to callers
	overflow_bytes_written_total           bytes written to overflow stores
*/
package metrics
