// Package analytics counts reach-out outcomes as Prometheus metrics.
package analytics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync results recorded on reachout_backend_sync_total
const (
	SyncOK       = "ok"
	SyncConflict = "conflict"
	SyncFailed   = "failed"
	SyncDropped  = "dropped"
)

// Recorder receives reach-out analytics events
type Recorder interface {
	HighValueLead(leadID string, totalMinutes float64)
	CallCompleted(leadID string, minutes float64)
	CycleReopened(leadID, reason string)
	OrphanRepaired(leadID string)
	ClosureSuggested(leadID string)
	SyncResult(result string)
}

// Metrics is the Prometheus-backed Recorder
type Metrics struct {
	registry *prometheus.Registry

	highValueLeads     prometheus.Counter
	callsCompleted     prometheus.Counter
	callMinutes        prometheus.Counter
	cyclesReopened     *prometheus.CounterVec
	orphansRepaired    prometheus.Counter
	closureSuggestions prometheus.Counter
	backendSync        *prometheus.CounterVec
}

// NewMetrics registers the counters on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		highValueLeads: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachout_high_value_leads_total",
			Help: "Leads whose cumulative connected call time crossed the high-value threshold",
		}),
		callsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachout_calls_completed_total",
			Help: "Connected calls finalised with a duration",
		}),
		callMinutes: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachout_call_minutes_total",
			Help: "Connected call minutes logged",
		}),
		cyclesReopened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reachout_cycles_reopened_total",
			Help: "Reach-out cycles reopened by reason",
		}, []string{"reason"}),
		orphansRepaired: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachout_orphans_repaired_total",
			Help: "Completion timestamps cleared because no activity backed them",
		}),
		closureSuggestions: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachout_closure_suggestions_total",
			Help: "Times the response-rate classifier suggested closing a lead",
		}),
		backendSync: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reachout_backend_sync_total",
			Help: "Backend sync attempts by result",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HighValueLead(leadID string, totalMinutes float64) {
	m.highValueLeads.Inc()
}

func (m *Metrics) CallCompleted(leadID string, minutes float64) {
	m.callsCompleted.Inc()
	if minutes > 0 {
		m.callMinutes.Add(minutes)
	}
}

func (m *Metrics) CycleReopened(leadID, reason string) {
	m.cyclesReopened.WithLabelValues(reason).Inc()
}

func (m *Metrics) OrphanRepaired(leadID string) {
	m.orphansRepaired.Inc()
}

func (m *Metrics) ClosureSuggested(leadID string) {
	m.closureSuggestions.Inc()
}

func (m *Metrics) SyncResult(result string) {
	m.backendSync.WithLabelValues(result).Inc()
}

// Nop discards every event
type Nop struct{}

func (Nop) HighValueLead(string, float64) {}
func (Nop) CallCompleted(string, float64) {}
func (Nop) CycleReopened(string, string)  {}
func (Nop) OrphanRepaired(string)         {}
func (Nop) ClosureSuggested(string)       {}
func (Nop) SyncResult(string)             {}
