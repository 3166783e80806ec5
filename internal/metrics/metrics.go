package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the namespace of the exported metrics.
const DefaultNamespace = "playerdata"

// An Observer captures telemetry for blob operations.
type Observer interface {
	RecordUpload(collection string, duration time.Duration, size int64, err error)
	RecordDownload(collection string, duration time.Duration, size int64, err error)
	RecordDelete(collection string, duration time.Duration, err error)
}

// Prometheus exports blob operation metrics to Prometheus.
type Prometheus struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewPrometheus registers the blob operation metrics on reg.
// Metrics already registered by a previous observer are reused.
func NewPrometheus(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Prometheus{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_operation_duration_seconds",
			Help:      "Latency of blob operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operation_errors_total",
			Help:      "Count of failed blob operations.",
		}, []string{"collection", "operation"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_bytes_total",
			Help:      "Cumulative blob payload transferred.",
		}, []string{"collection", "operation"}),
	}

	var err error
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, errors.Wrap(err, "register duration histogram")
	}
	if o.failures, err = register(reg, o.failures); err != nil {
		return nil, errors.Wrap(err, "register errors counter")
	}
	if o.bytes, err = register(reg, o.bytes); err != nil {
		return nil, errors.Wrap(err, "register bytes counter")
	}
	return o, nil
}

// RecordUpload tracks upload duration, size and failures.
func (o *Prometheus) RecordUpload(collection string, duration time.Duration, size int64, err error) {
	o.record(collection, "upload", duration, size, err)
}

// RecordDownload tracks download duration, streamed size and failures.
func (o *Prometheus) RecordDownload(collection string, duration time.Duration, size int64, err error) {
	o.record(collection, "download", duration, size, err)
}

// RecordDelete tracks delete duration and failures.
func (o *Prometheus) RecordDelete(collection string, duration time.Duration, err error) {
	o.record(collection, "delete", duration, 0, err)
}

func (o *Prometheus) record(collection, operation string, duration time.Duration, size int64, err error) {
	if o == nil {
		return
	}

	o.duration.WithLabelValues(collection, operation).Observe(duration.Seconds())
	if err != nil {
		o.failures.WithLabelValues(collection, operation).Inc()
		return
	}
	if size > 0 {
		o.bytes.WithLabelValues(collection, operation).Add(float64(size))
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

//
//
//

type nop struct{}

// Nop returns an Observer discarding everything.
func Nop() Observer {
	return nop{}
}

func (nop) RecordUpload(string, time.Duration, int64, error) {}

func (nop) RecordDownload(string, time.Duration, int64, error) {}

func (nop) RecordDelete(string, time.Duration, error) {}
