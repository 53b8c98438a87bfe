// Package metrics defines the Prometheus metrics of the client: resource
// store operations, guard decisions and session activity.
//
// Metrics are registered with the default registry on package init.
package metrics

import (
	"context"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crowdfund"

// StoreOperationsTotal counts store operations.
// Labels:
//   - store: resource name (e.g. "campaigns")
//   - op: "list", "get", "load", "create", or an action name
//   - result: "ok" or "error"
var StoreOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_operations_total",
		Help:      "Total number of resource store operations, by result.",
	},
	[]string{"store", "op", "result"},
)

// StoreOperationDuration measures the network time of store operations.
var StoreOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of resource store operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"store", "op"},
)

// StoreFetchSkippedTotal counts list fetches ignored because one was in flight.
var StoreFetchSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_fetch_skipped_total",
		Help:      "Total number of list fetches skipped by single-flight.",
	},
	[]string{"store"},
)

// GuardDecisionsTotal counts route guard outcomes.
// Label:
//   - state: "authorized", "unauthenticated", "expired" or "unauthorized"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by state.",
	},
	[]string{"state"},
)

// SessionEventsTotal counts session activity events.
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session activity events, by type.",
	},
	[]string{"event"},
)

var _ resource.Observer = StoreObserver{}

// StoreObserver feeds store lifecycle notifications into the metrics above.
type StoreObserver struct{}

func (StoreObserver) FetchSkipped(store string) {
	StoreFetchSkippedTotal.WithLabelValues(store).Inc()
}

func (StoreObserver) OperationFinished(store, op string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperationsTotal.WithLabelValues(store, op, result).Inc()
	StoreOperationDuration.WithLabelValues(store, op).Observe(took.Seconds())
}

// ObserveDecision records a guard decision.
func ObserveDecision(d crowdfund.Decision) {
	GuardDecisionsTotal.WithLabelValues(d.State.String()).Inc()
}

// ActivityCounter counts session events and forwards them to Next.
type ActivityCounter struct {
	Next crowdfund.ActivitySink
}

// Record implements crowdfund.ActivitySink.
func (a ActivityCounter) Record(ctx context.Context, event crowdfund.ActivityEvent) error {
	SessionEventsTotal.WithLabelValues(string(event.EventType)).Inc()
	if a.Next == nil {
		return nil
	}
	return a.Next.Record(ctx, event)
}
