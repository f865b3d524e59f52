// Package observability provides the Prometheus metrics of the admin
// service.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics contains all Prometheus metrics for the entity managers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Mutations      *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	RefreshLatency *prometheus.HistogramVec
	URLResolutions *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_admin_mutations_total",
			Help: "Create, update, delete and activate operations by entity kind and result",
		}, []string{"kind", "op", "result"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_admin_media_uploads_total",
			Help: "Media uploads by entity kind and result",
		}, []string{"kind", "result"}),
		RefreshLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campus_admin_refresh_duration_seconds",
			Help:    "Duration of collection refreshes including view URL resolution",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind", "result"}),
		URLResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_admin_view_url_resolutions_total",
			Help: "Signed view URL resolutions by entity kind and result",
		}, []string{"kind", "result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register admin metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Mutations.Describe(ch)
	m.Uploads.Describe(ch)
	m.RefreshLatency.Describe(ch)
	m.URLResolutions.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Mutations.Collect(ch)
	m.Uploads.Collect(ch)
	m.RefreshLatency.Collect(ch)
	m.URLResolutions.Collect(ch)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveMutation counts one mutation.
func (m *Metrics) ObserveMutation(kind, op string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind, op, result(err)).Inc()
}

// ObserveUpload counts one upload.
func (m *Metrics) ObserveUpload(kind string, err error) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(kind, result(err)).Inc()
}

// ObserveRefresh records the duration of one refresh.
func (m *Metrics) ObserveRefresh(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RefreshLatency.WithLabelValues(kind, result(err)).Observe(d.Seconds())
}

// ObserveResolve counts one view URL resolution.
func (m *Metrics) ObserveResolve(kind string, err error) {
	if m == nil {
		return
	}
	m.URLResolutions.WithLabelValues(kind, result(err)).Inc()
}
