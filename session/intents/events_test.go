package intents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0-computer/go-willow/grouping"
)

func TestExternalEvent(t *testing.T) {
	area := grouping.SubspaceArea(subOne)
	aoi := grouping.NewAreaOfInterest(area)

	ext := External(EventCapabilityIntersection{Namespace: nsAlfa, Area: area})
	require.Equal(t, EventTypeCapabilityIntersection, ext.Type)
	require.Equal(t, nsAlfa, ext.Namespace)
	require.NotNil(t, ext.Area)
	require.Nil(t, ext.AreaOfInterest)

	ext = External(EventInterestIntersection{Namespace: nsAlfa, Area: aoi})
	require.Equal(t, EventTypeInterestIntersection, ext.Type)
	require.NotNil(t, ext.AreaOfInterest)

	ext = External(EventReconciled{Namespace: nsAlfa, Area: aoi})
	require.Equal(t, EventTypeReconciled, ext.Type)

	ext = External(EventReconciledAll{})
	require.Equal(t, EventTypeReconciledAll, ext.Type)

	// The rich error flattens to its message.
	ext = External(EventAbort{Err: errors.New("capability revoked")})
	require.Equal(t, EventTypeAbort, ext.Type)
	require.Equal(t, "capability revoked", ext.Error)
}

func TestEventNamespace(t *testing.T) {
	ns, ok := EventNamespace(EventReconciled{Namespace: nsBeta, Area: fullAOI})
	require.True(t, ok)
	require.Equal(t, nsBeta, ns)

	_, ok = EventNamespace(EventReconciledAll{})
	require.False(t, ok)
	_, ok = EventNamespace(EventAbort{Err: errors.New("x")})
	require.False(t, ok)
}

func TestCompletionString(t *testing.T) {
	require.Equal(t, "complete", CompletionComplete.String())
	require.Equal(t, "partial", CompletionPartial.String())
	require.Equal(t, "nothing", CompletionNothing.String())
}
