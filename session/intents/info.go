package intents

import (
	"context"
	"time"

	"github.com/n0-computer/go-willow/common/types"
	"github.com/n0-computer/go-willow/grouping"
	"github.com/n0-computer/go-willow/interest"
	"github.com/n0-computer/go-willow/session"
)

// intentInfo is the dispatcher's bookkeeping for one accepted intent: the
// interests not yet reconciled, grouped by namespace and only ever
// shrinking, plus the sink matching events are forwarded to. A detached
// intent has a nil sink.
type intentInfo struct {
	interests  NamespaceInterests
	mode       session.Mode
	sink       *eventSink
	registered time.Time
}

func (info *intentInfo) mergeInterests(added interest.InterestMap) {
	for auth, aois := range added {
		set, ok := info.interests[auth.Namespace]
		if !ok {
			set = make(grouping.AreaOfInterestSet, len(aois))
			info.interests[auth.Namespace] = set
		}
		set.Merge(aois)
	}
}

// isComplete reports whether the intent is done: no remaining interests
// and not in continuous mode. Continuous intents stay open for live
// updates even after catching up.
func (info *intentInfo) isComplete() bool {
	return len(info.interests) == 0 && !info.mode.IsLive()
}

func (info *intentInfo) eventsClosed() bool {
	if info.sink == nil {
		return false
	}
	return info.sink.closed()
}

// onReconciled applies an already-reconciled area to the intent, sending
// the same events a live reconciliation would. Used for cache replay at
// submission.
func (info *intentInfo) onReconciled(ctx context.Context, namespace types.NamespaceID, aoi grouping.AreaOfInterest) error {
	if !info.completeAreaIfMatches(namespace, aoi.Area) {
		return nil
	}
	if err := info.send(ctx, EventReconciled{Namespace: namespace, Area: aoi}); err != nil {
		return err
	}
	if len(info.interests) == 0 {
		return info.send(ctx, EventReconciledAll{})
	}
	return nil
}

func (info *intentInfo) matchesArea(namespace types.NamespaceID, area grouping.Area) bool {
	set, ok := info.interests[namespace]
	return ok && set.IntersectsArea(area)
}

// completeAreaIfMatches reports whether area overlaps the intent's
// remaining interests in the namespace, and removes every interest that
// is entirely contained in it. A partial overlap matches but does not
// shrink the interest; reconciliation is expected to produce
// interest-aligned areas.
func (info *intentInfo) completeAreaIfMatches(namespace types.NamespaceID, area grouping.Area) bool {
	set, ok := info.interests[namespace]
	if !ok || !set.IntersectsArea(area) {
		return false
	}
	for fp, aoi := range set {
		if area.Includes(aoi.Area) {
			delete(set, fp)
		}
	}
	if len(set) == 0 {
		delete(info.interests, namespace)
	}
	return true
}

// handleEvent delivers the event to the intent if it matches its
// remaining interests, and reports whether the intent is now complete.
// The returned error is errReceiverDropped when the consumer is gone.
func (info *intentInfo) handleEvent(ctx context.Context, ev EventKind) (bool, error) {
	var matches bool
	switch e := ev.(type) {
	case EventCapabilityIntersection:
		_, matches = info.interests[e.Namespace]
	case EventInterestIntersection:
		matches = info.matchesArea(e.Namespace, e.Area.Area)
	case EventReconciled:
		matches = info.completeAreaIfMatches(e.Namespace, e.Area.Area)
	case EventAbort:
		matches = true
	case EventReconciledAll:
		// Synthesized per intent, never routed from outside.
		matches = false
	}
	if matches {
		if err := info.send(ctx, ev); err != nil {
			return false, err
		}
		if _, reconciled := ev.(EventReconciled); reconciled && len(info.interests) == 0 {
			if err := info.send(ctx, EventReconciledAll{}); err != nil {
				return false, err
			}
		}
	}
	return info.isComplete(), nil
}

func (info *intentInfo) send(ctx context.Context, ev EventKind) error {
	if info.sink == nil {
		return nil
	}
	return info.sink.send(ctx, ev)
}
