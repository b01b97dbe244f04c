package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values every run exports, even when zero, so a textfile from a quiet
// run still carries each series.
const (
	LinkBreach = "breach"
	LinkPaste  = "paste"

	IdentityLinked  = "linked"
	IdentitySkipped = "skipped"

	TableIdentities  = "identities"
	TableBreaches    = "breaches"
	TableDataClasses = "data_classes"
)

// Metrics holds the counters for one sync run. The registry is private to the
// run and is written out as a node-exporter textfile when the run ends.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	FeedRequests       *prometheus.CounterVec
	Identities         *prometheus.CounterVec
	LinksAdded         *prometheus.CounterVec
	UnresolvedBreaches prometheus.Counter
	BootstrapRows      *prometheus.CounterVec
	RunDuration        prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
}

// New creates and registers all sync metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		FeedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_feed_requests_total",
			Help: "Requests sent to the breach feed by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		Identities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_identities_total",
			Help: "Identities processed by reconciliation, by terminal state",
		}, []string{"state"}),
		LinksAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_links_added_total",
			Help: "New identity links persisted, by kind",
		}, []string{"kind"}),
		UnresolvedBreaches: factory.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_unresolved_breaches_total",
			Help: "Breach names reported for an identity that had no catalog row",
		}),
		BootstrapRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_bootstrap_rows_total",
			Help: "Rows inserted while seeding reference data, by table",
		}, []string{"table"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "breachwatch_run_duration_seconds",
			Help: "Wall time of the last sync run",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "breachwatch_last_run_timestamp_seconds",
			Help: "Unix time at which the last sync run finished",
		}),
	}

	for _, kind := range []string{LinkBreach, LinkPaste} {
		m.LinksAdded.WithLabelValues(kind)
	}
	for _, state := range []string{IdentityLinked, IdentitySkipped} {
		m.Identities.WithLabelValues(state)
	}
	for _, table := range []string{TableIdentities, TableBreaches, TableDataClasses} {
		m.BootstrapRows.WithLabelValues(table)
	}
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveFeedRequest(endpoint string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.FeedRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveIdentity(state string) {
	if m == nil {
		return
	}
	m.Identities.WithLabelValues(state).Inc()
}

func (m *Metrics) AddLinks(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksAdded.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncrementUnresolved() {
	if m == nil {
		return
	}
	m.UnresolvedBreaches.Inc()
}

func (m *Metrics) AddBootstrapRows(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BootstrapRows.WithLabelValues(table).Add(float64(n))
}

// FinishRun records the run duration and completion time.
func (m *Metrics) FinishRun(duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(duration.Seconds())
	m.LastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes every metric in Prometheus text format to path,
// replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
