// Package metrics exports access decisions, link lifecycle events and
// rendition/upload latency to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes.
const (
	OutcomeGranted   = "granted"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// Link lifecycle events.
const (
	LinkCreated  = "created"
	LinkRedeemed = "redeemed"
	LinkExpired  = "expired"
	LinkDeleted  = "deleted"
)

// Observer captures telemetry for the image core.
type Observer interface {
	AccessDecision(artifact, outcome string)
	LinkEvent(event string)
	LinksSwept(n int64)
	RecordRender(duration time.Duration, err error)
	RecordUpload(duration time.Duration, sizeBytes int64, err error)
}

// PrometheusObserver exports Observer calls as Prometheus collectors.
type PrometheusObserver struct {
	decisions       *prometheus.CounterVec
	linkEvents      *prometheus.CounterVec
	linksSwept      prometheus.Counter
	opDuration      *prometheus.HistogramVec
	operationErrors *prometheus.CounterVec
	uploadBytes     prometheus.Counter
}

// NewPrometheusObserver registers the collectors with reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "imagehost"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access decisions by artifact and outcome.",
		}, []string{"artifact", "outcome"}),
		linkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiring_link_events_total",
			Help:      "Expiring link lifecycle events.",
		}, []string{"event"}),
		linksSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiring_links_swept_total",
			Help:      "Expired links removed by the background sweep.",
		}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of render and upload operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed render and upload operations.",
		}, []string{"operation"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of originals stored.",
		}),
	}
	collectors := []prometheus.Collector{o.decisions, o.linkEvents, o.linksSwept, o.opDuration, o.operationErrors, o.uploadBytes}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) AccessDecision(artifact, outcome string) {
	o.decisions.WithLabelValues(artifact, outcome).Inc()
}

func (o *PrometheusObserver) LinkEvent(event string) {
	o.linkEvents.WithLabelValues(event).Inc()
}

func (o *PrometheusObserver) LinksSwept(n int64) {
	if n > 0 {
		o.linksSwept.Add(float64(n))
	}
}

func (o *PrometheusObserver) RecordRender(duration time.Duration, err error) {
	o.recordOperation("render", duration, err)
}

func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int64, err error) {
	o.recordOperation("upload", duration, err)
	if err == nil {
		o.uploadBytes.Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) recordOperation(op string, duration time.Duration, err error) {
	o.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues(op).Inc()
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) AccessDecision(string, string)            {}
func (Nop) LinkEvent(string)                         {}
func (Nop) LinksSwept(int64)                         {}
func (Nop) RecordRender(time.Duration, error)        {}
func (Nop) RecordUpload(time.Duration, int64, error) {}
