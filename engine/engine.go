// Package engine manages synchronisation sessions across peers.
//
// The engine owns one intent dispatcher per live peer session, drives its
// effect loop, and hands resolved interests to the Reconciler that
// performs the actual range-based set reconciliation. Sessions are
// created on demand by the first intent for a peer and closed after a
// grace period once no intents remain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/n0-computer/go-willow/interest"
	"github.com/n0-computer/go-willow/p2p"
	"github.com/n0-computer/go-willow/session"
	"github.com/n0-computer/go-willow/session/intents"
)

// ErrEngineClosed is returned for submissions after Close.
var ErrEngineClosed = errors.New("engine closed")

// ErrNoPeer is returned when a sync is requested without a peer.
var ErrNoPeer = errors.New("peer is required")

// errSessionIdle ends a session whose intents are all gone and whose
// grace period elapsed.
var errSessionIdle = errors.New("session idle")

// errSessionClosing is returned by a session that no longer accepts
// input; the submission is retried against a fresh session.
var errSessionClosing = errors.New("session closing")

// EmitFunc feeds a reconciliation outcome back into a session.
type EmitFunc func(ctx context.Context, ev intents.EventKind) error

// Reconciler performs range-based set reconciliation with a peer. It is
// the external collaborator below the intent layer.
type Reconciler interface {
	// BeginReconciliation starts or extends reconciliation with the peer
	// for exactly the given interests. Outcomes are reported through
	// emit as they are computed; emit may be called until the session's
	// context is done.
	BeginReconciliation(ctx context.Context, peer p2p.Peer, interests interest.InterestMap, emit EmitFunc) error
}

// Config holds the engine's tunables.
type Config struct {
	// SessionInboxSize bounds how many queued inputs a session holds.
	SessionInboxSize int
	// IdleGrace is how long a session without intents stays alive
	// waiting for new intents before it is closed.
	IdleGrace time.Duration
	// DrainTimeout bounds event delivery during session teardown.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SessionInboxSize: 32,
		IdleGrace:        5 * time.Second,
		DrainTimeout:     10 * time.Second,
	}
}

// Opt specifies an option for an Engine.
type Opt func(*Engine)

// WithLogger specifies the logger for the engine.
func WithLogger(logger *zap.Logger) Opt {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig specifies the engine configuration.
func WithConfig(cfg Config) Opt {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock specifies the clock used for session grace timers.
func WithClock(clock clockwork.Clock) Opt {
	return func(e *Engine) {
		e.clock = clock
	}
}

// Engine coordinates intent dispatchers across peer sessions.
type Engine struct {
	logger   *zap.Logger
	cfg      Config
	clock    clockwork.Clock
	resolver intents.InterestResolver
	recon    Reconciler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[p2p.Peer]*peerSession
	// stashed holds intents that never reached a failed session, to be
	// resubmitted when a new session with the peer is established.
	stashed map[p2p.Peer][]*intents.Intent
}

// New creates an engine. The resolver belongs to the authorization layer;
// the reconciler to the synchronisation layer below.
func New(resolver intents.InterestResolver, recon Reconciler, opts ...Opt) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		logger:   zap.NewNop(),
		cfg:      DefaultConfig(),
		clock:    clockwork.NewRealClock(),
		resolver: resolver,
		recon:    recon,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[p2p.Peer]*peerSession),
		stashed:  make(map[p2p.Peer][]*intents.Intent),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncWithPeer starts or joins a synchronisation session with the peer
// and returns the handle tracking the new intent. The handle must be
// consumed or closed.
func (e *Engine) SyncWithPeer(ctx context.Context, peer p2p.Peer, init session.Init) (*intents.IntentHandle, error) {
	intent, handle := intents.New(init)
	if err := e.submitIntent(ctx, peer, intent); err != nil {
		handle.Close()
		return nil, err
	}
	return handle, nil
}

// SyncWithPeerDetached is the fire-and-forget variant of SyncWithPeer:
// the intent contributes interests and completion bookkeeping, but
// nothing observes it.
func (e *Engine) SyncWithPeerDetached(ctx context.Context, peer p2p.Peer, init session.Init) error {
	return e.submitIntent(ctx, peer, intents.NewDetached(init))
}

func (e *Engine) submitIntent(ctx context.Context, peer p2p.Peer, intent *intents.Intent) error {
	if p2p.IsNoPeer(peer) {
		return ErrNoPeer
	}
	for {
		sess, created, err := e.getOrCreateSession(peer, intent)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		err = sess.submit(ctx, intents.SubmitIntent{Intent: intent})
		if !errors.Is(err, errSessionClosing) {
			return err
		}
		// The session is going down; wait out the teardown and retry
		// against a fresh one.
		select {
		case <-sess.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// getOrCreateSession returns the live session for the peer, or starts one
// seeded with the intent plus any intents stashed from a failed session.
func (e *Engine) getOrCreateSession(peer p2p.Peer, intent *intents.Intent) (*peerSession, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false, ErrEngineClosed
	}
	if sess, ok := e.sessions[peer]; ok {
		return sess, false, nil
	}
	sess := &peerSession{
		peer:    peer,
		inbox:   make(chan intents.Input, e.cfg.SessionInboxSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := e.addSessionLocked(peer, sess); err != nil {
		return nil, false, err
	}
	initial := append(e.stashed[peer], intent)
	delete(e.stashed, peer)
	e.wg.Add(1)
	go e.runSession(sess, initial)
	return sess, true, nil
}

func (e *Engine) addSessionLocked(peer p2p.Peer, sess *peerSession) error {
	if _, ok := e.sessions[peer]; ok {
		return fmt.Errorf("%w: %s", session.ErrSessionExists, peer)
	}
	e.sessions[peer] = sess
	return nil
}

// Close shuts the engine down: every session is cancelled, its active
// intents aborted, and stashed intents flushed with an abort. Blocks
// until all sessions finished tearing down.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()
	e.mu.Lock()
	stashed := e.stashed
	e.stashed = map[p2p.Peer][]*intents.Intent{}
	e.mu.Unlock()
	for _, queued := range stashed {
		for _, intent := range queued {
			intent.SendAbort(ctx, session.ErrSessionClosed)
		}
	}
}

func (e *Engine) runSession(sess *peerSession, initial []*intents.Intent) {
	defer e.wg.Done()
	defer close(sess.done)

	started := e.clock.Now()
	sessionsStarted.Inc()
	defer func() { sessionDuration.Observe(e.clock.Since(started).Seconds()) }()

	logger := e.logger.With(zap.Stringer("peer", sess.peer))
	logger.Debug("session starting", zap.Int("initial_intents", len(initial)))
	dispatcher := intents.NewDispatcher(logger, e.resolver, initial, sess.inbox)
	outbox := make(chan intents.Output)

	g, ctx := errgroup.WithContext(e.ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx, outbox)
	})
	g.Go(func() error {
		return e.driveSession(ctx, sess, outbox)
	})
	err := g.Wait()

	sess.close()
	e.removeSession(sess)
	// Once in-flight submissions settle, everything an accepted submit
	// delivered is in the inbox and visible to the drain below.
	sess.wait()

	var cause error
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errSessionIdle) {
		cause = err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()
	remaining := dispatcher.DrainAll(drainCtx)
	if cause == nil {
		// Clean close. Intents that raced into the inbox during
		// teardown get a fresh session instead of a spurious abort.
		queued := remaining.AbortActive(drainCtx, session.ErrSessionClosed)
		for _, intent := range queued {
			if err := e.submitIntent(drainCtx, sess.peer, intent); err != nil {
				intent.SendAbort(drainCtx, session.ErrSessionClosed)
			}
		}
		logger.Debug("session closed")
		return
	}
	logger.Warn("session failed", zap.Error(cause))
	queued := remaining.AbortActive(drainCtx, cause)
	if len(queued) > 0 && !e.stash(sess.peer, queued) {
		for _, intent := range queued {
			intent.SendAbort(drainCtx, cause)
		}
	}
}

// driveSession executes the dispatcher's effects. It returns
// errSessionIdle once all intents are gone and the grace period elapsed.
func (e *Engine) driveSession(ctx context.Context, sess *peerSession, outbox <-chan intents.Output) error {
	emit := EmitFunc(func(ctx context.Context, ev intents.EventKind) error {
		return sess.submit(ctx, intents.EmitEvent{Event: ev})
	})
	var idle clockwork.Timer
	var idleC <-chan time.Time
	for {
		select {
		case out := <-outbox:
			switch o := out.(type) {
			case intents.SubmitInterests:
				if idle != nil {
					idle.Stop()
					idle, idleC = nil, nil
				}
				if err := e.recon.BeginReconciliation(ctx, sess.peer, o.Interests, emit); err != nil {
					return fmt.Errorf("begin reconciliation: %w", err)
				}
			case intents.AllIntentsDropped:
				if idle == nil {
					idle = e.clock.NewTimer(e.cfg.IdleGrace)
					idleC = idle.Chan()
				}
			}
		case <-idleC:
			return errSessionIdle
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) removeSession(sess *peerSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[sess.peer] == sess {
		delete(e.sessions, sess.peer)
	}
}

// stash keeps queued intents of a failed session for resubmission.
// Reports false when the engine is closed and the intents must be aborted
// instead.
func (e *Engine) stash(peer p2p.Peer, queued []*intents.Intent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.stashed[peer] = append(e.stashed[peer], queued...)
	return true
}

// peerSession is one live session: the inbox feeding its dispatcher and
// the lifecycle signals guarding it.
type peerSession struct {
	peer      p2p.Peer
	inbox     chan intents.Input
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// submit delivers an input into the session's inbox. A nil return
// guarantees the input is visible to the teardown drain: submissions
// register as in-flight before sending, and teardown waits them out
// before draining the inbox.
func (s *peerSession) submit(ctx context.Context, input intents.Input) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSessionClosing
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()
	select {
	case s.inbox <- input:
		return nil
	case <-s.closing:
		return errSessionClosing
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *peerSession) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closing) })
}

// wait blocks until every in-flight submission has returned. Must be
// called after close, otherwise new submissions keep arriving.
func (s *peerSession) wait() {
	s.inflight.Wait()
}
