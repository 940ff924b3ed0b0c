package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Cycle results.
const (
	ResultUp    = "up"
	ResultDown  = "down"
	ResultError = "error"
)

type Metrics struct {
	CycleTotal          *prometheus.CounterVec
	TransitionTotal     *prometheus.CounterVec
	NotificationTotal   *prometheus.CounterVec
	ProbeLatencySeconds prometheus.Histogram
	Up                  prometheus.Gauge
	LastCycleTimestamp  prometheus.Gauge
	BuildInfo           *prometheus.GaugeVec
}

type Bundle struct {
	Registry *prometheus.Registry
	Metrics  *Metrics
}

func NewBundle() *Bundle {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitewatch_cycle_total",
				Help: "Evaluation cycles, labeled by result (up, down, error).",
			},
			[]string{"result"},
		),
		TransitionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitewatch_transition_total",
				Help: "Status transitions, labeled by the new status.",
			},
			[]string{"to"},
		),
		NotificationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitewatch_notification_total",
				Help: "Notification attempts, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		ProbeLatencySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitewatch_probe_latency_seconds",
				Help:    "Probe latency in seconds, retries included.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitewatch_up",
			Help: "Persisted status after the last cycle: 1 for UP, 0 for DOWN.",
		}),
		LastCycleTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitewatch_last_cycle_timestamp",
			Help: "Unix timestamp of the last completed cycle.",
		}),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitewatch_build_info",
				Help: "Build/runtime info exposed as a gauge set to 1.",
			},
			[]string{"go_version", "os", "arch"},
		),
	}

	reg.MustRegister(
		m.CycleTotal,
		m.TransitionTotal,
		m.NotificationTotal,
		m.ProbeLatencySeconds,
		m.Up,
		m.LastCycleTimestamp,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(runtime.Version(), runtime.GOOS, runtime.GOARCH).Set(1)

	for _, r := range []string{ResultUp, ResultDown, ResultError} {
		m.CycleTotal.WithLabelValues(r).Add(0)
	}
	m.Up.Set(1)

	return &Bundle{Registry: reg, Metrics: m}
}

// Handler serves the bundle's registry in the Prometheus text format.
func (b *Bundle) Handler() http.Handler {
	return promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{Registry: b.Registry})
}

// The Observe* methods are safe on a nil *Metrics.

func (m *Metrics) ObserveCycle(status domain.Status, err error) {
	if m == nil {
		return
	}
	m.LastCycleTimestamp.Set(float64(time.Now().Unix()))
	if err != nil {
		m.CycleTotal.WithLabelValues(ResultError).Inc()
		return
	}
	if status == domain.StatusDown {
		m.CycleTotal.WithLabelValues(ResultDown).Inc()
		m.Up.Set(0)
		return
	}
	m.CycleTotal.WithLabelValues(ResultUp).Inc()
	m.Up.Set(1)
}

func (m *Metrics) ObserveTransition(to domain.Status) {
	if m == nil {
		return
	}
	m.TransitionTotal.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.NotificationTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) ObserveProbe(latencyMS float64) {
	if m == nil {
		return
	}
	m.ProbeLatencySeconds.Observe(latencyMS / 1000)
}
