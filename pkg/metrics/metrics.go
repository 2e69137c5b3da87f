// Package metrics records transfer statistics. The CLI can write them in the
// Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/rmasync/pkg/errors"
)

var (
	// Registry holds the metrics of the Default recorder.
	Registry = prometheus.NewRegistry()

	// Default is the recorder used by the CLI.
	Default = New(Registry)
)

// Recorder records metrics for downloads.
type Recorder struct {
	filesProcessed     *prometheus.CounterVec
	bytesTransferred   prometheus.Counter
	cacheRequests      *prometheus.CounterVec
	missingDirectories prometheus.Counter
	logEvents          *prometheus.CounterVec
	downloadDuration   prometheus.Histogram
}

// New creates a Recorder whose metrics are registered with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		filesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rma_files_processed_total",
				Help: "Remote files handed to an output sink",
			},
			[]string{"sink"},
		),
		bytesTransferred: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rma_bytes_transferred_total",
				Help: "Bytes copied from the server into the local cache",
			},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rma_cache_requests_total",
				Help: "Cache lookups by result",
			},
			[]string{"result"},
		),
		missingDirectories: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rma_missing_directories_total",
				Help: "Candidate directories that didn't exist on the server",
			},
		),
		logEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rma_log_events_total",
				Help: "Warnings and errors logged",
			},
			[]string{"level"},
		),
		downloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rma_download_duration_seconds",
				Help:    "Duration of download requests",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// FileProcessed records that a file was handed to sink.
func (r *Recorder) FileProcessed(sink string) {
	r.filesProcessed.WithLabelValues(sink).Inc()
}

// BytesTransferred records bytes copied from the server.
func (r *Recorder) BytesTransferred(n int64) {
	r.bytesTransferred.Add(float64(n))
}

// CacheHit records a lookup served from the cache.
func (r *Recorder) CacheHit() {
	r.cacheRequests.WithLabelValues("hit").Inc()
}

// CacheMiss records a lookup that required a transfer.
func (r *Recorder) CacheMiss() {
	r.cacheRequests.WithLabelValues("miss").Inc()
}

// MissingDirectory records a candidate directory that didn't exist.
func (r *Recorder) MissingDirectory() {
	r.missingDirectories.Inc()
}

// DownloadDuration records how long a download took.
func (r *Recorder) DownloadDuration(seconds float64) {
	r.downloadDuration.Observe(seconds)
}

// WriteTextfile writes the metrics gathered from g to path.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.WithContext(err, "write metrics")
	}
	return nil
}

// LogHook returns a logrus hook that counts warnings and errors.
func (r *Recorder) LogHook() logrus.Hook {
	return &hook{r}
}

type hook struct {
	recorder *Recorder
}

func (h *hook) Levels() []logrus.Level {
	return []logrus.Level{logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

func (h *hook) Fire(entry *logrus.Entry) error {
	h.recorder.logEvents.WithLabelValues(entry.Level.String()).Inc()

	// Never return an error because logrus prints it directly to stderr.
	return nil
}
