package intents

import "github.com/n0-computer/go-willow/interest"

//go:generate mockgen -typed -package=intents -destination=./mocks.go -source=./interface.go

// InterestResolver resolves a capability-qualified interest declaration
// into the concrete areas the local capabilities grant. It is implemented
// by the authorization layer.
//
// Resolution failures (no matching capability, invalid selector) are
// surfaced to the caller that triggered them, never swallowed.
type InterestResolver interface {
	ResolveInterests(interests interest.Interests) (interest.InterestMap, error)
}
