// Package interest defines caller-declared synchronisation interest specs
// and their resolved, capability-qualified form.
//
// A caller declares interests in terms of capability selectors; the
// authorization layer resolves those selectors against the capabilities it
// actually holds, producing an InterestMap of concrete grants.
package interest

import (
	"github.com/n0-computer/go-willow/common/types"
	"github.com/n0-computer/go-willow/grouping"
)

// ReceiverSelector restricts which capability receivers a selector matches.
// The zero value matches any receiver.
type ReceiverSelector struct {
	Exact bool
	User  types.UserID
}

// AnyReceiver matches capabilities granted to any user.
func AnyReceiver() ReceiverSelector { return ReceiverSelector{} }

// ReceiverUser matches only capabilities granted to the given user.
func ReceiverUser(user types.UserID) ReceiverSelector {
	return ReceiverSelector{Exact: true, User: user}
}

// CapSelector selects capabilities for a namespace, optionally restricted
// by receiver.
type CapSelector struct {
	Namespace types.NamespaceID
	Receiver  ReceiverSelector
}

// AreaSelector narrows a selected capability to areas of interest.
type AreaSelector struct {
	// Widest selects the full area each matching capability grants.
	Widest bool
	// Areas, when Widest is unset, selects specific areas of interest.
	// Areas outside the capability's grant fail resolution.
	Areas []grouping.AreaOfInterest
}

// Interests is a caller-declared interest spec, to be resolved by the
// authorization layer into an InterestMap.
type Interests struct {
	// All requests the widest area of every capability held.
	All bool
	// Select maps capability selectors to area selectors.
	Select map[CapSelector]AreaSelector
}

// InterestsAll declares interest in everything the local peer is
// authorised to read.
func InterestsAll() Interests {
	return Interests{All: true}
}

// InterestsSelect declares interest in specific capability selections.
func InterestsSelect(sel map[CapSelector]AreaSelector) Interests {
	return Interests{Select: sel}
}

// InterestsNamespace declares interest in the widest grant for a namespace.
func InterestsNamespace(namespace types.NamespaceID) Interests {
	return Interests{Select: map[CapSelector]AreaSelector{
		{Namespace: namespace}: {Widest: true},
	}}
}

// ReadAuthorisation is the scope under which a set of areas was granted:
// a namespace plus an opaque handle onto the authorising capability.
type ReadAuthorisation struct {
	Namespace types.NamespaceID
	CapID     types.Fingerprint
}

// InterestMap maps authorization scopes to the concrete areas of interest
// they grant. Produced by interest resolution; multiple scopes may
// reference the same namespace.
type InterestMap map[ReadAuthorisation]grouping.AreaOfInterestSet

// Clone returns a copy of the map with cloned area sets.
func (m InterestMap) Clone() InterestMap {
	out := make(InterestMap, len(m))
	for auth, aois := range m {
		out[auth] = aois.Clone()
	}
	return out
}
