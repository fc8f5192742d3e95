package address

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// DiversifierSize is the size in bytes of a Sapling/Orchard diversifier.
const DiversifierSize = 11

// DeriveDiversifier derives the diversifier for a given account's
// diversifier key and a diversifier index. Real Sapling/Orchard
// diversifier derivation rejects indices whose group hash lands on the
// identity point; this derivation instead runs every index through a
// rejection-free domain-separated KDF, valid for every index by
// construction.
func DeriveDiversifier(diversifierKey []byte, index uint64) []byte {
	h, _ := blake2b.New(DiversifierSize, nil)
	h.Write([]byte("WarpzDiversifier"))
	h.Write(diversifierKey)
	var idxBytes [8]byte
	binary.LittleEndian.PutUint64(idxBytes[:], index)
	h.Write(idxBytes[:])
	return h.Sum(nil)
}

// NextDiversifierIndex returns the smallest index >= from not yet recorded
// as used in used (the caller's persisted high-water mark), so repeated
// calls for the same account never reuse a diversifier.
func NextDiversifierIndex(from uint64, used map[uint64]bool) uint64 {
	idx := from
	for used[idx] {
		idx++
	}
	return idx
}
