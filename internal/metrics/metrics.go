// Package metrics exposes Prometheus instrumentation for the block cache,
// bitmap allocator and disk client, following the singleton-collector shape
// the rest of the stack uses for its stats.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	cacheAccesses  prometheus.Counter
	cacheHits      prometheus.Counter
	diskLatency    prometheus.Histogram
	diskFailures   *prometheus.CounterVec
	allocExhausted prometheus.Counter
}

var (
	once sync.Once
	m    *collectors
)

func get() *collectors {
	once.Do(func() {
		m = &collectors{
			cacheAccesses: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "blockfs_cache_accesses_total",
				Help: "Total number of block-cache lookups.",
			}),
			cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "blockfs_cache_hits_total",
				Help: "Total number of block-cache hits.",
			}),
			diskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "blockfs_disk_roundtrip_seconds",
				Help:    "Round-trip latency of disk read/write requests.",
				Buckets: prometheus.DefBuckets,
			}),
			diskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "blockfs_disk_failures_total",
				Help: "Disk requests that the disk service refused.",
			}, []string{"op"}),
			allocExhausted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "blockfs_bitmap_exhausted_total",
				Help: "Times the bitmap allocator found no free block.",
			}),
		}
		prometheus.MustRegister(m.cacheAccesses, m.cacheHits, m.diskLatency, m.diskFailures, m.allocExhausted)
	})
	return m
}

// CacheAccess records one block-cache lookup, hit or not.
func CacheAccess(hit bool) {
	c := get()
	c.cacheAccesses.Inc()
	if hit {
		c.cacheHits.Inc()
	}
}

// DiskRoundTrip records the latency, in seconds, of one disk request.
func DiskRoundTrip(seconds float64) {
	get().diskLatency.Observe(seconds)
}

// DiskFailure records a disk request that came back negative.
func DiskFailure(op string) {
	get().diskFailures.WithLabelValues(op).Inc()
}

// AllocatorExhausted records a bitmap scan that found no free block.
func AllocatorExhausted() {
	get().allocExhausted.Inc()
}
