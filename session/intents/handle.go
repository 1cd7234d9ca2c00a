package intents

import (
	"context"
	"sync"

	"github.com/n0-computer/go-willow/interest"
)

// IntentHandle is the consumer half of an intent.
//
// It is a pull-based stream of events plus a sink for updates. The stream
// must be consumed (Next, Complete) or closed, otherwise event delivery
// for this intent blocks once its buffer fills. A slow handle only
// backpressures its own intent, never the whole session.
type IntentHandle struct {
	events  *EventStream
	updates *UpdateSink
}

// Split splits the handle into its independently closable halves.
func (h *IntentHandle) Split() (*UpdateSink, *EventStream) {
	return h.updates, h.events
}

// Next returns the next event for the intent. It reports false when the
// event stream has ended or ctx is done.
//
// Consuming events also latches the handle's completion state, so partial
// consumption followed by a final Complete call still yields a correct
// cumulative verdict.
func (h *IntentHandle) Next(ctx context.Context) (EventKind, bool) {
	return h.events.Next(ctx)
}

// Complete drains the event stream and reports the intent's outcome.
//
// It returns CompletionComplete if all interests were reconciled,
// CompletionPartial if some were, CompletionNothing otherwise. An abort
// event short-circuits immediately with the session's error, taking
// precedence over any partial progress. Calling Complete again after the
// stream ended returns the same verdict.
func (h *IntentHandle) Complete(ctx context.Context) (Completion, error) {
	return h.events.Complete(ctx)
}

// AddInterests submits new interests into the session. The handle then
// receives events for these interests in addition to the ones already
// submitted.
func (h *IntentHandle) AddInterests(ctx context.Context, interests interest.Interests) error {
	return h.updates.AddInterests(ctx, interests)
}

// Close releases the handle: it tells the dispatcher to cancel the intent
// (best-effort) and ends event consumption. It never blocks and is safe
// to call multiple times. Close is the idiomatic way to abandon an
// intent; a handle that is done consuming must call it.
func (h *IntentHandle) Close() {
	h.updates.Close()
	h.events.Close()
}

// EventStream is the event-consuming half of an IntentHandle.
type EventStream struct {
	ch   <-chan EventKind
	done chan struct{}

	closeOnce sync.Once

	mu          sync.Mutex
	sawComplete bool
	sawPartial  bool
	err         error
}

// Next returns the next event, or false when the stream has ended or ctx
// is done. Received events update the stream's latched completion state.
func (s *EventStream) Next(ctx context.Context) (EventKind, bool) {
	ev, ok, _ := s.next(ctx)
	return ev, ok
}

// next prefers a ready event or closure over ctx expiry, so an ended
// stream yields its events and verdict even with a dead context. The
// error is non-nil only when the wait was cut short by ctx.
func (s *EventStream) next(ctx context.Context) (EventKind, bool, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, false, nil
		}
		s.latch(ev)
		return ev, true, nil
	default:
	}
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, false, nil
		}
		s.latch(ev)
		return ev, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *EventStream) latch(ev EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e := ev.(type) {
	case EventReconciledAll:
		s.sawComplete = true
	case EventReconciled:
		s.sawPartial = true
	case EventAbort:
		s.err = e.Err
	}
}

// Complete drains the stream and returns the cumulative verdict. See
// IntentHandle.Complete.
func (s *EventStream) Complete(ctx context.Context) (Completion, error) {
	for {
		if err := s.latchedErr(); err != nil {
			return CompletionNothing, err
		}
		_, ok, err := s.next(ctx)
		if err != nil {
			return CompletionNothing, err
		}
		if !ok {
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.err != nil:
		return CompletionNothing, s.err
	case s.sawComplete:
		return CompletionComplete, nil
	case s.sawPartial:
		return CompletionPartial, nil
	default:
		return CompletionNothing, nil
	}
}

func (s *EventStream) latchedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops event consumption. The dispatcher observes the closure and
// cancels the intent once its update half is gone too.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// UpdateSink is the update-submitting half of an IntentHandle.
type UpdateSink struct {
	ch   chan<- IntentUpdate
	stop <-chan struct{}

	closeOnce sync.Once
}

// AddInterests submits new interests for the intent. It blocks while the
// intent's update buffer is full and fails with ErrIntentDropped when no
// dispatcher tracks the intent anymore.
func (u *UpdateSink) AddInterests(ctx context.Context, interests interest.Interests) error {
	select {
	case <-u.stop:
		return ErrIntentDropped
	default:
	}
	select {
	case u.ch <- UpdateAddInterests{Interests: interests}:
		return nil
	case <-u.stop:
		return ErrIntentDropped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a best-effort close update and closes the update channel.
// The dispatcher treats either signal as cancellation; absence of a
// reader is not an error.
func (u *UpdateSink) Close() {
	u.closeOnce.Do(func() {
		select {
		case u.ch <- UpdateClose{}:
		case <-u.stop:
		default:
		}
		close(u.ch)
	})
}
