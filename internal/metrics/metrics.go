package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the photo pipeline. Each
// instance owns its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Searches         *prometheus.CounterVec
	SearchResults    prometheus.Histogram
	Downloads        *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	DownloadsActive  prometheus.Gauge
	DownloadJoins    prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ImagesEvicted    prometheus.Counter
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "virtualtourist_searches_total",
			Help: "Photo searches by outcome",
		}, []string{"result"}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "virtualtourist_search_result_urls",
			Help:    "Number of URLs returned by successful searches",
			Buckets: []float64{0, 1, 6, 12, 24, 50, 100, 200},
		}),
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "virtualtourist_downloads_total",
			Help: "Image downloads by outcome",
		}, []string{"result"}),
		DownloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "virtualtourist_download_duration_seconds",
			Help:    "Time from download start to the image being stored",
			Buckets: prometheus.DefBuckets,
		}),
		DownloadsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "virtualtourist_downloads_in_flight",
			Help: "Downloads currently in progress",
		}),
		DownloadJoins: f.NewCounter(prometheus.CounterOpts{
			Name: "virtualtourist_download_joins_total",
			Help: "Requests that attached to an already running download",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "virtualtourist_image_cache_hits_total",
			Help: "Image requests served from the store",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "virtualtourist_image_cache_misses_total",
			Help: "Image requests that needed a download",
		}),
		ImagesEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "virtualtourist_images_evicted_total",
			Help: "Image deletions issued to the store",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
