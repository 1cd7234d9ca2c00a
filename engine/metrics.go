package engine

import (
	"github.com/n0-computer/go-willow/metrics"
)

const namespace = "engine"

var (
	sessionsStarted = metrics.NewCounter(
		"sessions",
		namespace,
		"number of peer sessions started",
		nil,
	).WithLabelValues()

	sessionDuration = metrics.NewHistogram(
		"session_duration_seconds",
		namespace,
		"lifetime of a peer session from start to teardown",
		nil,
	).WithLabelValues()
)
