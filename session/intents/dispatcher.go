package intents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/n0-computer/go-willow/common/types"
	"github.com/n0-computer/go-willow/grouping"
	"github.com/n0-computer/go-willow/interest"
)

// NamespaceInterests is an interest map flattened per namespace, with the
// authorization scopes erased.
type NamespaceInterests map[types.NamespaceID]grouping.AreaOfInterestSet

func flattenInterests(m interest.InterestMap) NamespaceInterests {
	out := make(NamespaceInterests, len(m))
	for auth, aois := range m {
		set, ok := out[auth.Namespace]
		if !ok {
			set = make(grouping.AreaOfInterestSet, len(aois))
			out[auth.Namespace] = set
		}
		set.Merge(aois)
	}
	return out
}

// Input is an instruction submitted into a dispatcher by the session
// engine.
type Input interface {
	isInput()
}

// SubmitIntent onboards a new intent into the session.
type SubmitIntent struct {
	Intent *Intent
}

// EmitEvent fans a reconciliation outcome out to the intents it concerns.
type EmitEvent struct {
	Event EventKind
}

func (SubmitIntent) isInput() {}
func (EmitEvent) isInput()    {}

// Output is an effect the dispatcher yields for the session engine to
// execute.
type Output interface {
	isOutput()
}

// SubmitInterests instructs the session to begin or extend reconciliation
// for exactly these interests.
type SubmitInterests struct {
	Interests interest.InterestMap
}

// AllIntentsDropped signals that no registered intents remain. The
// session should consider ending itself, though it may keep running.
type AllIntentsDropped struct{}

func (SubmitInterests) isOutput()   {}
func (AllIntentsDropped) isOutput() {}

// updateEnvelope carries one intent's update, or its closure notice, into
// the dispatcher's shared update channel.
type updateEnvelope struct {
	id     IntentID
	update IntentUpdate
	closed bool
}

// Dispatcher owns all active and pending intents of one session.
//
// It consumes Inputs from its inbox, yields Outputs for the session
// engine, and routes every session event to the subset of intents whose
// remaining interests it matches. All state is owned by the single
// goroutine running Run; cross-boundary communication is channels only.
type Dispatcher struct {
	logger   *zap.Logger
	resolver InterestResolver
	inbox    <-chan Input

	pending  []*Intent
	intents  map[IntentID]*intentInfo
	watched  map[IntentID]*intentChannels
	updates  chan updateEnvelope
	nextID   IntentID

	// completeAreas caches every reconciled area per namespace for the
	// lifetime of the dispatcher. It is replayed in full to late-joining
	// intents before their first live event.
	completeAreas NamespaceInterests
}

// NewDispatcher creates a dispatcher for one session. Initial intents are
// queued and submitted before the first input is processed; further
// inputs arrive through inbox.
func NewDispatcher(logger *zap.Logger, resolver InterestResolver, initial []*Intent, inbox <-chan Input) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		resolver:      resolver,
		inbox:         inbox,
		pending:       append([]*Intent(nil), initial...),
		intents:       make(map[IntentID]*intentInfo),
		watched:       make(map[IntentID]*intentChannels),
		updates:       make(chan updateEnvelope),
		completeAreas: make(NamespaceInterests),
	}
}

// Run executes the dispatcher loop until ctx is done or the inbox closes.
// Yielded outputs are blocking sends to outbox; the driver paces the
// dispatcher by reading it.
//
// Run returns an error when interest resolution fails for a submitted
// intent; update-triggered resolution failures are logged and dropped so
// one misbehaving caller cannot take down unrelated intents.
func (d *Dispatcher) Run(ctx context.Context, outbox chan<- Output) error {
	for len(d.pending) > 0 {
		intent := d.pending[0]
		d.pending = d.pending[1:]
		if err := d.submitIntent(ctx, outbox, intent); err != nil {
			return err
		}
	}
	d.logger.Debug("submitted initial intents, starting dispatch loop")
	for {
		select {
		case input, ok := <-d.inbox:
			if !ok {
				return nil
			}
			switch in := input.(type) {
			case SubmitIntent:
				if err := d.submitIntent(ctx, outbox, in.Intent); err != nil {
					return err
				}
			case EmitEvent:
				if err := d.emitEvent(ctx, outbox, in.Event); err != nil {
					return err
				}
			}
		case env := <-d.updates:
			if env.closed {
				// The update sender is gone. Cancel the intent only if
				// its event receiver is gone too; otherwise it stays
				// registered for event delivery.
				d.unwatch(env.id)
				if info, ok := d.intents[env.id]; ok && info.eventsClosed() {
					if err := d.cancelIntent(ctx, outbox, env.id); err != nil {
						return err
					}
				}
				continue
			}
			if err := d.updateIntent(ctx, outbox, env.id, env.update); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Warn("failed to update intent",
					zap.Uint64("intent", uint64(env.id)), zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) submitIntent(ctx context.Context, outbox chan<- Output, intent *Intent) error {
	interests, err := d.resolver.ResolveInterests(intent.init.Interests)
	if err != nil {
		err = fmt.Errorf("resolve interests: %w", err)
		// The loop is about to fail with this error, but the intent is
		// not registered anywhere teardown would reach. Its handle must
		// still observe an ending.
		intent.SendAbort(ctx, err)
		return err
	}
	id := d.nextID
	d.nextID++

	info := &intentInfo{
		interests:  flattenInterests(interests),
		mode:       intent.init.Mode,
		registered: time.Now(),
	}
	if intent.channels != nil {
		info.sink = intent.channels.sink
	}

	// Replay already reconciled areas, so a late joiner synchronously
	// observes the same outcomes a live intent saw.
	for namespace, areas := range d.completeAreas {
		for _, aoi := range areas {
			if err := info.onReconciled(ctx, namespace, aoi); err != nil {
				if errors.Is(err, errReceiverDropped) {
					// Consumer vanished before submission; onboard
					// nothing and let the handle's stream end.
					d.dropIntentChannels(intent)
					return nil
				}
				return err
			}
		}
	}

	if info.isComplete() {
		// Everything was served from the cache. The intent is never
		// registered and no interests are submitted to the session.
		d.logger.Debug("intent complete at submission",
			zap.Uint64("intent", uint64(id)))
		d.dropIntentChannels(intent)
		intentsCompleted.WithLabelValues(completionAtSubmit).Inc()
		return nil
	}

	d.intents[id] = info
	if intent.channels != nil {
		d.watched[id] = intent.channels
		go d.watchUpdates(id, intent.channels)
	}
	intentsSubmitted.Inc()
	activeIntents.Set(float64(len(d.intents)))
	return d.yield(ctx, outbox, SubmitInterests{Interests: interests})
}

// dropIntentChannels ends the channel pair of an intent that will never
// be registered.
func (d *Dispatcher) dropIntentChannels(intent *Intent) {
	if intent.channels == nil {
		return
	}
	intent.channels.sink.close()
	intent.channels.stopUpdates()
}

// watchUpdates forwards one intent's updates into the shared update
// channel, ending with a closure notice. It stops when the intent's
// updateStop channel closes.
func (d *Dispatcher) watchUpdates(id IntentID, ch *intentChannels) {
	for {
		select {
		case update, ok := <-ch.updateRx:
			env := updateEnvelope{id: id, update: update, closed: !ok}
			select {
			case d.updates <- env:
			case <-ch.updateStop:
				return
			}
			if !ok {
				return
			}
		case <-ch.updateStop:
			return
		}
	}
}

func (d *Dispatcher) unwatch(id IntentID) {
	if ch, ok := d.watched[id]; ok {
		ch.stopUpdates()
		delete(d.watched, id)
	}
}

// emitEventInner records reconciled areas into the cache and fans the
// event out to every registered intent it matches. Delivery runs
// concurrently per intent, so a slow consumer only stalls its own stream.
func (d *Dispatcher) emitEventInner(ctx context.Context, ev EventKind) error {
	if rec, ok := ev.(EventReconciled); ok {
		set, ok := d.completeAreas[rec.Namespace]
		if !ok {
			set = make(grouping.AreaOfInterestSet)
			d.completeAreas[rec.Namespace] = set
		}
		set.Add(rec.Area)
	}
	eventsEmitted.WithLabelValues(eventLabel(ev)).Inc()

	ids := make([]IntentID, 0, len(d.intents))
	for id := range d.intents {
		ids = append(ids, id)
	}
	type result struct {
		complete bool
		err      error
	}
	results := make([]result, len(ids))
	var eg errgroup.Group
	for i, id := range ids {
		i := i
		info := d.intents[id]
		eg.Go(func() error {
			complete, err := info.handleEvent(ctx, ev)
			results[i] = result{complete: complete, err: err}
			return nil
		})
	}
	eg.Wait() //nolint:errcheck // goroutines never return errors

	for i, id := range ids {
		switch {
		case errors.Is(results[i].err, errReceiverDropped):
			// Cancel only if the update source is gone too; a live
			// update source may still want to drive the intent.
			if _, watched := d.watched[id]; !watched {
				d.cancelIntentInner(id)
			}
		case results[i].err != nil:
			return results[i].err
		case results[i].complete:
			intentsCompleted.WithLabelValues(completionReconciled).Inc()
			intentDuration.Observe(time.Since(d.intents[id].registered).Seconds())
			d.cancelIntentInner(id)
		}
	}
	return nil
}

func (d *Dispatcher) emitEvent(ctx context.Context, outbox chan<- Output, ev EventKind) error {
	if err := d.emitEventInner(ctx, ev); err != nil {
		return err
	}
	if len(d.intents) == 0 {
		return d.yield(ctx, outbox, AllIntentsDropped{})
	}
	return nil
}

func (d *Dispatcher) updateIntent(ctx context.Context, outbox chan<- Output, id IntentID, update IntentUpdate) error {
	switch u := update.(type) {
	case UpdateAddInterests:
		added, err := d.resolver.ResolveInterests(u.Interests)
		if err != nil {
			return fmt.Errorf("resolve interests: %w", err)
		}
		info, ok := d.intents[id]
		if !ok {
			return fmt.Errorf("invalid intent id %d", id)
		}
		info.mergeInterests(added)
		return d.yield(ctx, outbox, SubmitInterests{Interests: added})
	case UpdateClose:
		return d.cancelIntent(ctx, outbox, id)
	default:
		return fmt.Errorf("unknown intent update %T", update)
	}
}

func (d *Dispatcher) cancelIntentInner(id IntentID) {
	d.unwatch(id)
	info, ok := d.intents[id]
	if !ok {
		return
	}
	if info.sink != nil {
		info.sink.close()
	}
	delete(d.intents, id)
	activeIntents.Set(float64(len(d.intents)))
	d.logger.Debug("cancelled intent", zap.Uint64("intent", uint64(id)))
}

func (d *Dispatcher) cancelIntent(ctx context.Context, outbox chan<- Output, id IntentID) error {
	d.cancelIntentInner(id)
	if len(d.intents) == 0 {
		return d.yield(ctx, outbox, AllIntentsDropped{})
	}
	return nil
}

func (d *Dispatcher) yield(ctx context.Context, outbox chan<- Output, out Output) error {
	select {
	case outbox <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainAll tears the dispatcher down after Run has returned. Queued
// inbox events are still applied; queued intent submissions and the
// never-submitted pending queue are collected for a successor session.
// Still-registered incomplete intents contribute their event sinks only:
// their resolved interest progress is session-specific and cannot move.
//
// The returned RemainingIntents must be aborted (or its queued intents
// resubmitted), otherwise their handles never observe an ending.
func (d *Dispatcher) DrainAll(ctx context.Context) *RemainingIntents {
	var queued []*Intent
drain:
	for {
		select {
		case input, ok := <-d.inbox:
			if !ok {
				break drain
			}
			switch in := input.(type) {
			case EmitEvent:
				if err := d.emitEventInner(ctx, in.Event); err != nil {
					d.logger.Debug("drain: drop event", zap.Error(err))
				}
			case SubmitIntent:
				queued = append(queued, in.Intent)
			}
		default:
			break drain
		}
	}

	queued = append(queued, d.pending...)
	d.pending = nil

	remaining := &RemainingIntents{logger: d.logger, queued: queued}
	for id, info := range d.intents {
		d.unwatch(id)
		if !info.isComplete() && info.sink != nil {
			remaining.activeIncomplete = append(remaining.activeIncomplete, info.sink)
		} else if info.sink != nil {
			info.sink.close()
		}
		delete(d.intents, id)
	}
	activeIntents.Set(0)
	return remaining
}

// RemainingIntents is what is left of a dispatcher after draining:
// intents that never reached the session, reconstructible in full, and
// the event sinks of intents that were active but incomplete.
type RemainingIntents struct {
	logger           *zap.Logger
	queued           []*Intent
	activeIncomplete []*eventSink
}

// AbortAll aborts both the active incomplete and the queued intents.
// Delivery is concurrent and best-effort; dropped consumers are ignored.
// Fully terminal: nothing remains for reuse.
func (r *RemainingIntents) AbortAll(ctx context.Context, cause error) {
	var eg errgroup.Group
	for _, intent := range r.queued {
		intent := intent
		eg.Go(func() error {
			intent.SendAbort(ctx, cause)
			return nil
		})
	}
	r.abortActive(ctx, &eg, cause)
	eg.Wait() //nolint:errcheck // best-effort fan-out
	r.queued = nil
	r.activeIncomplete = nil
}

// AbortActive aborts only the active incomplete intents and returns the
// queued intents untouched, so they can be handed to a successor session.
func (r *RemainingIntents) AbortActive(ctx context.Context, cause error) []*Intent {
	var eg errgroup.Group
	r.abortActive(ctx, &eg, cause)
	eg.Wait() //nolint:errcheck // best-effort fan-out
	queued := r.queued
	r.queued = nil
	r.activeIncomplete = nil
	return queued
}

func (r *RemainingIntents) abortActive(ctx context.Context, eg *errgroup.Group, cause error) {
	for _, sink := range r.activeIncomplete {
		sink := sink
		eg.Go(func() error {
			if err := sink.send(ctx, EventAbort{Err: cause}); err != nil && !errors.Is(err, errReceiverDropped) {
				r.logger.Debug("abort delivery failed", zap.Error(err))
			}
			sink.close()
			intentsAborted.Inc()
			return nil
		})
	}
}
