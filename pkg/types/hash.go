// Package types defines the wire and domain model shared across warpz's
// synchronizer, witness engine, and payment pipeline.
package types

import "encoding/hex"

// HashSize is the size in bytes of a commitment, nullifier, or block hash.
const HashSize = 32

// Hash is a 32-byte identifier: a block hash, note commitment, or nullifier.
type Hash [HashSize]byte

// EmptyHash is the zero hash, used as the empty-subtree leaf at tree depth 0.
var EmptyHash = Hash{}

// IsEmpty reports whether h is the all-zero hash.
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes truncates or zero-pads b into a Hash.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// AddressSize is the size in bytes of a transparent address payload.
const AddressSize = 20

// Address is a 20-byte transparent address payload (hash of a pubkey or script).
type Address [AddressSize]byte

// EmptyAddress is the zero address.
var EmptyAddress = Address{}

// Pool identifies a Zcash value pool.
type Pool uint8

const (
	PoolTransparent Pool = iota
	PoolSapling
	PoolOrchard
)

// String returns the lowercase pool name.
func (p Pool) String() string {
	switch p {
	case PoolTransparent:
		return "transparent"
	case PoolSapling:
		return "sapling"
	case PoolOrchard:
		return "orchard"
	default:
		return "unknown"
	}
}

// Shielded reports whether the pool participates in the shielded commitment trees.
func (p Pool) Shielded() bool {
	return p == PoolSapling || p == PoolOrchard
}

// PrivacyLevel ranks how much of a transaction is observable on-chain, from
// 0 (fully transparent) to 3 (fully shielded, Orchard-only).
type PrivacyLevel uint8

const (
	PrivacyTransparent PrivacyLevel = 0
	PrivacySaplingMixed PrivacyLevel = 1
	PrivacyShielded      PrivacyLevel = 2
	PrivacyOrchardOnly   PrivacyLevel = 3
)
