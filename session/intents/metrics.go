package intents

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/n0-computer/go-willow/metrics"
)

const namespace = "intents"

const (
	completionAtSubmit   = "at_submit"
	completionReconciled = "reconciled"
)

var (
	intentsSubmitted = metrics.NewCounter(
		"submitted",
		namespace,
		"number of intents registered with a dispatcher",
		nil,
	).WithLabelValues()

	intentsCompleted = metrics.NewCounter(
		"completed",
		namespace,
		"number of intents that reconciled all their interests",
		[]string{"when"},
	)

	intentsAborted = metrics.NewCounter(
		"aborted",
		namespace,
		"number of intents aborted at session teardown",
		nil,
	).WithLabelValues()

	eventsEmitted = metrics.NewCounter(
		"events",
		namespace,
		"number of session events fanned out, by kind",
		[]string{"kind"},
	)

	intentDuration = metrics.NewHistogramWithBuckets(
		"duration_seconds",
		namespace,
		"time from intent registration to reconciliation of all its interests",
		nil,
		prometheus.ExponentialBuckets(0.01, 4, 10),
	).WithLabelValues()

	activeIntents = metrics.NewGauge(
		"active",
		namespace,
		"number of currently registered intents",
		nil,
	).WithLabelValues()
)

func eventLabel(ev EventKind) string {
	return External(ev).Type
}
