// Package types defines the identifier types shared across the willow
// synchronisation packages.
package types

import (
	"encoding/hex"
	"fmt"
)

// IDLength is 32, the byte length of all identifier types in this package.
const IDLength = 32

// NamespaceID identifies a namespace, the top-level partition of the
// synchronised data space.
type NamespaceID [IDLength]byte

// SubspaceID identifies a subspace within a namespace.
type SubspaceID [IDLength]byte

// UserID identifies the receiver of a capability.
type UserID [IDLength]byte

// Fingerprint is a 32-byte blake3 digest used to key value-deduplicated
// sets of non-comparable values.
type Fingerprint [IDLength]byte

// Bytes gets the byte representation of the underlying namespace id.
func (n NamespaceID) Bytes() []byte { return n[:] }

// Hex converts a namespace id to a hex string.
func (n NamespaceID) Hex() string { return "0x" + hex.EncodeToString(n[:]) }

// String implements the stringer interface.
func (n NamespaceID) String() string { return n.Hex() }

// ShortString returns a the first 5 bytes of the id in hex, for logging.
func (n NamespaceID) ShortString() string { return shorten(hex.EncodeToString(n[:]), 10) }

// Bytes gets the byte representation of the underlying subspace id.
func (s SubspaceID) Bytes() []byte { return s[:] }

// Hex converts a subspace id to a hex string.
func (s SubspaceID) Hex() string { return "0x" + hex.EncodeToString(s[:]) }

// String implements the stringer interface.
func (s SubspaceID) String() string { return s.Hex() }

// ShortString returns the first 5 bytes of the id in hex, for logging.
func (s SubspaceID) ShortString() string { return shorten(hex.EncodeToString(s[:]), 10) }

// Bytes gets the byte representation of the underlying user id.
func (u UserID) Bytes() []byte { return u[:] }

// Hex converts a user id to a hex string.
func (u UserID) Hex() string { return "0x" + hex.EncodeToString(u[:]) }

// String implements the stringer interface.
func (u UserID) String() string { return u.Hex() }

// Hex converts a fingerprint to a hex string.
func (f Fingerprint) Hex() string { return "0x" + hex.EncodeToString(f[:]) }

// String implements the stringer interface.
func (f Fingerprint) String() string { return shorten(hex.EncodeToString(f[:]), 10) }

// BytesToNamespaceID sets b to a namespace id.
// If b is larger than IDLength, b will be cropped from the left.
func BytesToNamespaceID(b []byte) NamespaceID {
	var n NamespaceID
	copy(n[max(0, IDLength-len(b)):], b[max(0, len(b)-IDLength):])
	return n
}

// BytesToSubspaceID sets b to a subspace id.
// If b is larger than IDLength, b will be cropped from the left.
func BytesToSubspaceID(b []byte) SubspaceID {
	var s SubspaceID
	copy(s[max(0, IDLength-len(b)):], b[max(0, len(b)-IDLength):])
	return s
}

func shorten(s string, maxlen int) string {
	return s[:min(maxlen, len(s))]
}

var _ fmt.Stringer = NamespaceID{}
