// Package session holds the shared definitions for one synchronisation
// session with a peer: how a session is initialised and the errors a
// session can end with.
package session

import (
	"errors"

	"github.com/n0-computer/go-willow/interest"
)

// Mode selects for how long a session or intent stays alive.
type Mode uint8

const (
	// ReconcileOnce runs reconciliation for the submitted interests and
	// completes once they are all reconciled.
	ReconcileOnce Mode = iota
	// Continuous keeps the session alive after reconciliation to
	// receive live updates.
	Continuous
)

// IsLive reports whether the mode keeps an intent open after all its
// interests are reconciled.
func (m Mode) IsLive() bool {
	return m == Continuous
}

func (m Mode) String() string {
	switch m {
	case ReconcileOnce:
		return "reconcile-once"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Init carries everything needed to start or join a session: the interests
// to synchronise and the session mode.
type Init struct {
	Interests interest.Interests
	Mode      Mode
}

// NewInit builds a session init.
func NewInit(mode Mode, interests interest.Interests) Init {
	return Init{Interests: interests, Mode: mode}
}

var (
	// ErrSessionClosed is the abort cause when a session shuts down
	// normally while intents are still incomplete.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionExists is returned when a session for a peer is
	// registered twice.
	ErrSessionExists = errors.New("session for peer already exists")
)
