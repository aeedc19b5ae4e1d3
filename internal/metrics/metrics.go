// Package metrics exposes the Prometheus instrumentation points for the
// downloader, grounded on the CounterVec/Histogram/Gauge pattern in
// APTlantis-Mirror-Crates/internal/downloader/downloader.go.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	PageDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jm_page_downloads_total", Help: "Page download attempts by outcome"},
		[]string{"outcome"},
	)
	PageCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jm_page_cache_hits_total", Help: "Pages served from the on-disk cache without a network fetch"},
	)
	PageDownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "jm_page_download_duration_seconds", Help: "Time spent downloading and descrambling one page", Buckets: prometheus.DefBuckets},
	)
	Relogins = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jm_session_relogins_total", Help: "Session re-login attempts"},
	)
	PDFJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jm_pdf_jobs_total", Help: "PDF assembly jobs by outcome"},
		[]string{"outcome"},
	)
	InflightDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "jm_inflight_page_downloads", Help: "Page downloads currently in flight"},
	)
)

// Register idempotently registers all collectors with the default
// Prometheus registry. Safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PageDownloads, PageCacheHits, PageDownloadDuration, Relogins, PDFJobs, InflightDownloads)
	})
}
