// Package metrics provides a Prometheus implementation of streambox.Metrics.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velmie/streambox"
)

const (
	defaultNamespace = "streambox"
	boxLabel         = "box"
)

// Recorder exports scheduler telemetry labeled by box name.
type Recorder struct {
	batchDuration *prometheus.HistogramVec
	claimed       *prometheus.CounterVec
	processed     *prometheus.CounterVec
	errors        *prometheus.CounterVec
	pending       *prometheus.GaugeVec
}

var _ streambox.Metrics = (*Recorder)(nil)

// New creates the collectors under namespace (streambox when empty) and registers them.
// A nil registerer leaves them unregistered.
func New(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	r := &Recorder{
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to claim, process and commit one batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{boxLabel}),
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_claimed_total",
			Help:      "Records claimed from the backlog.",
		}, []string{boxLabel}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Records moved to FINISHED.",
		}, []string{boxLabel}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_errors_total",
			Help:      "Records left pending after a failed attempt.",
		}, []string{boxLabel}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_pending",
			Help:      "Pending records in the backlog at the last sample.",
		}, []string{boxLabel}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range r.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "metrics: register")
		}
	}

	return r, nil
}

// MustNew is like New but panics on registration failure.
func MustNew(reg prometheus.Registerer, namespace string) *Recorder {
	r, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}

	return r
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{r.batchDuration, r.claimed, r.processed, r.errors, r.pending}
}

// ObserveBatchDuration implements streambox.Metrics.
func (r *Recorder) ObserveBatchDuration(box string, duration time.Duration) {
	r.batchDuration.WithLabelValues(box).Observe(duration.Seconds())
}

// AddClaimed implements streambox.Metrics.
func (r *Recorder) AddClaimed(box string, count int) {
	if count > 0 {
		r.claimed.WithLabelValues(box).Add(float64(count))
	}
}

// AddProcessed implements streambox.Metrics.
func (r *Recorder) AddProcessed(box string, count int) {
	if count > 0 {
		r.processed.WithLabelValues(box).Add(float64(count))
	}
}

// AddErrors implements streambox.Metrics.
func (r *Recorder) AddErrors(box string, count int) {
	if count > 0 {
		r.errors.WithLabelValues(box).Add(float64(count))
	}
}

// SetPending implements streambox.Metrics.
func (r *Recorder) SetPending(box string, count int) {
	r.pending.WithLabelValues(box).Set(float64(count))
}
