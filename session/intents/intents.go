// Package intents multiplexes any number of synchronisation intents onto
// one session with a peer.
//
// An intent is a tracked request to reconcile a set of interests. It is
// created with an IntentHandle that receives the session events matching
// the intent's interests and can submit new interests, or detached, in
// which case it is fire-and-forget. The Dispatcher owns all intents of a
// session, routes reconciliation outcomes to the intents they concern and
// tracks per-intent completion. Once all intents for a peer are complete,
// the session can be closed.
package intents

import (
	"context"
	"errors"
	"sync"

	"github.com/n0-computer/go-willow/interest"
	"github.com/n0-computer/go-willow/session"
)

const (
	intentEventCap  = 64
	intentUpdateCap = 16
)

// IntentID identifies an intent within one dispatcher.
type IntentID uint64

var (
	// ErrIntentDropped is returned when an update is submitted for an
	// intent that no dispatcher tracks anymore. This is a local error,
	// not a session failure.
	ErrIntentDropped = errors.New("intent is no longer tracked")

	// errReceiverDropped signals that delivery to an intent's event sink
	// failed because the consumer is gone. Internal only; it drives
	// cancellation bookkeeping and is never surfaced to callers.
	errReceiverDropped = errors.New("event receiver dropped")
)

// IntentUpdate is an update submitted from an intent handle into the
// session.
type IntentUpdate interface {
	isIntentUpdate()
}

// UpdateAddInterests submits new interests into the session.
type UpdateAddInterests struct {
	Interests interest.Interests
}

// UpdateClose closes the intent. Sending it is not required, but may
// reduce the time a cancelled intent lingers in the dispatcher.
type UpdateClose struct{}

func (UpdateAddInterests) isIntentUpdate() {}
func (UpdateClose) isIntentUpdate()        {}

// Intent is a synchronisation intent: a set of interests to sync within a
// session, optionally paired with an IntentHandle.
//
// The caller owns the Intent until it is submitted into a dispatcher.
type Intent struct {
	init     session.Init
	channels *intentChannels
}

// New creates an intent with its associated handle.
//
// The intent must be passed into a session. The handle receives the events
// for the intent and can submit updates. It must be received from in a
// loop, otherwise the intent's event delivery blocks.
func New(init session.Init) (*Intent, *IntentHandle) {
	return newWithCap(init, intentEventCap, intentUpdateCap)
}

// NewDetached creates a detached intent.
//
// A detached intent submits interests into a session, but delivers no
// events and accepts no updates.
func NewDetached(init session.Init) *Intent {
	return &Intent{init: init}
}

func newWithCap(init session.Init, eventCap, updateCap int) (*Intent, *IntentHandle) {
	eventCh := make(chan EventKind, eventCap)
	updateCh := make(chan IntentUpdate, updateCap)
	recvDone := make(chan struct{})
	updateStop := make(chan struct{})
	intent := &Intent{
		init: init,
		channels: &intentChannels{
			sink:       &eventSink{ch: eventCh, done: recvDone},
			updateRx:   updateCh,
			updateStop: updateStop,
		},
	}
	handle := &IntentHandle{
		events:  &EventStream{ch: eventCh, done: recvDone},
		updates: &UpdateSink{ch: updateCh, stop: updateStop},
	}
	return intent, handle
}

// Init returns the session init the intent was created with.
func (i *Intent) Init() session.Init {
	return i.init
}

// SendAbort delivers a final abort event to the intent's handle and ends
// its event stream. It is used for intents that never made it into a
// session. No-op for detached intents.
func (i *Intent) SendAbort(ctx context.Context, err error) {
	if i.channels == nil {
		return
	}
	i.channels.sink.send(ctx, EventAbort{Err: err}) //nolint:errcheck // consumer gone is fine
	i.channels.sink.close()
	i.channels.stopUpdates()
}

// intentChannels is the dispatcher-side half of a non-detached intent.
type intentChannels struct {
	sink     *eventSink
	updateRx <-chan IntentUpdate

	// updateStop is closed when no dispatcher watches updateRx anymore,
	// so blocked update submissions fail instead of hanging.
	updateStop chan struct{}
	stopOnce   sync.Once
}

func (c *intentChannels) stopUpdates() {
	c.stopOnce.Do(func() { close(c.updateStop) })
}

// eventSink delivers events into an intent's buffered event channel. The
// done channel is closed by the consumer half when it stops receiving,
// which turns blocked sends into errReceiverDropped.
type eventSink struct {
	ch        chan EventKind
	done      <-chan struct{}
	closeOnce sync.Once
}

func (s *eventSink) send(ctx context.Context, ev EventKind) error {
	if s.closed() {
		return errReceiverDropped
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return errReceiverDropped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *eventSink) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close ends the consumer's event stream. Only the dispatcher side calls
// this, after the final event.
func (s *eventSink) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
