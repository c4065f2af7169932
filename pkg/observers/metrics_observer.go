package observers

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anggasct/hfsm"
)

// MetricsObserver exports Prometheus metrics about state machine execution.
// All collectors are labeled with the machine name, so one observer can
// serve every machine built from a definition.
type MetricsObserver[S, E comparable] struct {
	transitions *prometheus.CounterVec
	declined    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	entries     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetricsObserver creates the collectors and registers them with reg.
// A nil reg registers with the default Prometheus registry. Registering two
// observers with the same registry panics.
func NewMetricsObserver[S, E comparable](reg prometheus.Registerer) *MetricsObserver[S, E] {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &MetricsObserver[S, E]{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsm_transitions_total",
				Help: "A count of completed transitions.",
			},
			[]string{"machine", "from", "to", "event"},
		),
		declined: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsm_declined_events_total",
				Help: "A count of events no state accepted.",
			},
			[]string{"machine", "state", "event"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsm_errors_total",
				Help: "A count of errors caught in guards and actions.",
			},
			[]string{"machine", "state"},
		),
		entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hfsm_state_entries_total",
				Help: "A count of state entries.",
			},
			[]string{"machine", "state"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hfsm_event_latency_seconds",
				Help:    "Time from handing an event to the machine until it was handled.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"machine"},
		),
	}
}

func (o *MetricsObserver[S, E]) observeLatency(ctx *hfsm.Context[S, E]) {
	if enqueued := ctx.EnqueuedAt(); !enqueued.IsZero() {
		o.latency.WithLabelValues(ctx.Machine().Name()).Observe(time.Since(enqueued).Seconds())
	}
}

// OnTransitionBegin implements hfsm.Observer
func (o *MetricsObserver[S, E]) OnTransitionBegin(ctx *hfsm.Context[S, E]) {}

// OnTransitionCompleted counts the transition
func (o *MetricsObserver[S, E]) OnTransitionCompleted(ctx *hfsm.Context[S, E], newState S) {
	event, _ := ctx.Event()
	o.transitions.WithLabelValues(
		ctx.Machine().Name(),
		fmt.Sprint(ctx.State()),
		fmt.Sprint(newState),
		fmt.Sprint(event),
	).Inc()
	o.observeLatency(ctx)
}

// OnTransitionDeclined counts the declined event
func (o *MetricsObserver[S, E]) OnTransitionDeclined(ctx *hfsm.Context[S, E]) {
	event, _ := ctx.Event()
	o.declined.WithLabelValues(ctx.Machine().Name(), fmt.Sprint(ctx.State()), fmt.Sprint(event)).Inc()
	o.observeLatency(ctx)
}

// OnError counts the error
func (o *MetricsObserver[S, E]) OnError(ctx *hfsm.Context[S, E], err error) {
	o.errors.WithLabelValues(ctx.Machine().Name(), fmt.Sprint(ctx.State())).Inc()
}

// OnStateEnter counts the entry
func (o *MetricsObserver[S, E]) OnStateEnter(ctx *hfsm.Context[S, E], state S) {
	o.entries.WithLabelValues(ctx.Machine().Name(), fmt.Sprint(state)).Inc()
}

// OnStateExit implements hfsm.ExtendedObserver
func (o *MetricsObserver[S, E]) OnStateExit(ctx *hfsm.Context[S, E], state S) {}

// OnMachineStarted implements hfsm.ExtendedObserver
func (o *MetricsObserver[S, E]) OnMachineStarted(m *hfsm.Machine[S, E]) {}

// OnMachineStopped implements hfsm.ExtendedObserver
func (o *MetricsObserver[S, E]) OnMachineStopped(m *hfsm.Machine[S, E]) {}
