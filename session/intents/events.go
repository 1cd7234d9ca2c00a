package intents

import (
	"fmt"

	"github.com/n0-computer/go-willow/common/types"
	"github.com/n0-computer/go-willow/grouping"
)

// EventKind is an event emitted from a session for a synchronisation
// intent. The Abort variant carries the rich session error; use External
// for a serializable rendition.
type EventKind interface {
	isEvent()
	fmt.Stringer
}

// EventCapabilityIntersection reports an intersection between our and the
// peer's capabilities.
type EventCapabilityIntersection struct {
	Namespace types.NamespaceID
	Area      grouping.Area
}

// EventInterestIntersection reports an intersection between our and the
// peer's interests; the area will start to synchronise.
type EventInterestIntersection struct {
	Namespace types.NamespaceID
	Area      grouping.AreaOfInterest
}

// EventReconciled reports that an area was reconciled.
type EventReconciled struct {
	Namespace types.NamespaceID
	Area      grouping.AreaOfInterest
}

// EventReconciledAll reports that all interests submitted in this intent
// were reconciled. It is synthesized per intent, never emitted by the
// session itself.
type EventReconciledAll struct{}

// EventAbort reports that the session was closed with an error. The error
// value is shared by every intent of the session.
type EventAbort struct {
	Err error
}

func (EventCapabilityIntersection) isEvent() {}
func (EventInterestIntersection) isEvent()   {}
func (EventReconciled) isEvent()             {}
func (EventReconciledAll) isEvent()          {}
func (EventAbort) isEvent()                  {}

func (e EventCapabilityIntersection) String() string {
	return fmt.Sprintf("capability-intersection(%s %s)", e.Namespace.ShortString(), e.Area)
}

func (e EventInterestIntersection) String() string {
	return fmt.Sprintf("interest-intersection(%s %s)", e.Namespace.ShortString(), e.Area.Area)
}

func (e EventReconciled) String() string {
	return fmt.Sprintf("reconciled(%s %s)", e.Namespace.ShortString(), e.Area.Area)
}

func (EventReconciledAll) String() string { return "reconciled-all" }

func (e EventAbort) String() string { return fmt.Sprintf("abort(%s)", e.Err) }

// EventNamespace returns the namespace the event relates to, if any.
func EventNamespace(ev EventKind) (types.NamespaceID, bool) {
	switch e := ev.(type) {
	case EventCapabilityIntersection:
		return e.Namespace, true
	case EventInterestIntersection:
		return e.Namespace, true
	case EventReconciled:
		return e.Namespace, true
	default:
		return types.NamespaceID{}, false
	}
}

// Completion is the outcome of driving an intent to completion.
type Completion uint8

const (
	// CompletionNothing means no interests were reconciled.
	CompletionNothing Completion = iota
	// CompletionPartial means some interests were reconciled.
	CompletionPartial
	// CompletionComplete means all interests were reconciled.
	CompletionComplete
)

func (c Completion) String() string {
	switch c {
	case CompletionComplete:
		return "complete"
	case CompletionPartial:
		return "partial"
	case CompletionNothing:
		return "nothing"
	default:
		return "unknown"
	}
}

// Event is the externally serializable rendition of EventKind. The abort
// error is flattened to a string; the conversion is lossy by design and
// the rich error never crosses a serialization boundary.
type Event struct {
	Type           string                   `json:"type"`
	Namespace      types.NamespaceID        `json:"namespace,omitempty"`
	Area           *grouping.Area           `json:"area,omitempty"`
	AreaOfInterest *grouping.AreaOfInterest `json:"area_of_interest,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// Event type tags.
const (
	EventTypeCapabilityIntersection = "capability-intersection"
	EventTypeInterestIntersection   = "interest-intersection"
	EventTypeReconciled             = "reconciled"
	EventTypeReconciledAll          = "reconciled-all"
	EventTypeAbort                  = "abort"
)

// External converts an internal event into its serializable form.
func External(ev EventKind) Event {
	switch e := ev.(type) {
	case EventCapabilityIntersection:
		area := e.Area
		return Event{Type: EventTypeCapabilityIntersection, Namespace: e.Namespace, Area: &area}
	case EventInterestIntersection:
		aoi := e.Area
		return Event{Type: EventTypeInterestIntersection, Namespace: e.Namespace, AreaOfInterest: &aoi}
	case EventReconciled:
		aoi := e.Area
		return Event{Type: EventTypeReconciled, Namespace: e.Namespace, AreaOfInterest: &aoi}
	case EventReconciledAll:
		return Event{Type: EventTypeReconciledAll}
	case EventAbort:
		return Event{Type: EventTypeAbort, Error: e.Err.Error()}
	default:
		panic(fmt.Sprintf("unknown event kind %T", ev))
	}
}
