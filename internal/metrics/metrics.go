// Package metrics holds the process-wide Prometheus counters for photovault.
//
// photovault has no HTTP surface, so the registry is exported by writing the
// node_exporter textfile format to a path at the end of a CLI invocation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var factory = promauto.With(registry)

// Thumbnail cache.
var (
	CacheHits = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_thumbnail_cache_hits_total",
		Help: "Thumbnail cache lookups served from memory.",
	})
	CacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_thumbnail_cache_misses_total",
		Help: "Thumbnail cache lookups that missed.",
	})
	CacheEvictions = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_thumbnail_cache_evictions_total",
		Help: "Entries evicted to stay under the byte budget.",
	})
	CacheBytes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "photovault_thumbnail_cache_bytes",
		Help: "Bytes currently held by the thumbnail cache.",
	})
	ThumbnailFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_thumbnail_generation_failures_total",
		Help: "Thumbnail generations that failed.",
	})
)

// Object store.
var (
	ObjectsSaved = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_objects_saved_total",
		Help: "Photos saved into the vault.",
	})
	ObjectsDeleted = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_objects_deleted_total",
		Help: "Photos deleted from the vault.",
	})
	ObjectsRecovered = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_objects_recovered_total",
		Help: "Index entries rebuilt from ciphertext filenames.",
	})
	ErasePasses = factory.NewCounter(prometheus.CounterOpts{
		Name: "photovault_erase_passes_total",
		Help: "Completed secure-erase overwrite passes.",
	})
)

// Backup codec.
var (
	BackupPhotos = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "photovault_backup_photos_total",
		Help: "Photos processed by backup, by result.",
	}, []string{"result"})
	RestorePhotos = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "photovault_restore_photos_total",
		Help: "Photos processed by restore, by result.",
	}, []string{"result"})
)

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Registry returns the registry all photovault metrics are registered with.
func Registry() *prometheus.Registry {
	return registry
}

// WriteTextfile writes the current metric values to path in the text
// exposition format, replacing the file atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
