// Package witness maintains the Sapling and Orchard incremental Merkle
// trees: CommitmentTree, TreeStore, MerklePath, and a pair-hashing
// combiner with empty-subtree caching, generalized to two pools,
// owned-leaf tracking, checkpointed anchors, and a warp-sync
// bridge/edge optimization for skipping unowned ranges in bulk.
package witness

import (
	"crypto/sha256"

	"github.com/ccoin/warpz/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// TreeDepth is the fixed depth of both the Sapling and Orchard commitment
// trees.
const TreeDepth = 32

// PoolHasher combines two sibling hashes at a given tree level. Sapling and
// Orchard use different native combiners; the rest of the engine is
// pool-agnostic and goes through this interface.
type PoolHasher interface {
	Combine(level int, left, right types.Hash) types.Hash
	EmptyLeaf() types.Hash
}

// saplingHasher stands in for Zcash's Pedersen-hash tree combiner. The
// bn254 Pedersen commitment scheme in internal/commitment is used
// elsewhere for value commitments; the tree combiner here only needs a
// collision-resistant combiner (sha256 of the concatenation), not a
// hiding one, so it skips the curve arithmetic.
type saplingHasher struct{}

func (saplingHasher) Combine(level int, left, right types.Hash) types.Hash {
	return hashPairDomain("WARPZ_SAPLING_MERKLE", level, left, right)
}

func (saplingHasher) EmptyLeaf() types.Hash { return types.EmptyHash }

// orchardHasher stands in for Zcash's Sinsemilla tree combiner, using
// blake2b (already a warpz dependency via golang.org/x/crypto, used
// identically for the Orchard note-decryption KDF in internal/decrypt) as
// the domain-separated combiner instead of sha256.
type orchardHasher struct{}

func (orchardHasher) Combine(level int, left, right types.Hash) types.Hash {
	h, _ := blake2b.New256([]byte("WARPZ_ORCHARD_MERKLE"))
	h.Write([]byte{byte(level)})
	h.Write(left[:])
	h.Write(right[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (orchardHasher) EmptyLeaf() types.Hash { return types.EmptyHash }

func hashPairDomain(domain string, level int, left, right types.Hash) types.Hash {
	hasher := sha256.New()
	hasher.Write([]byte(domain))
	hasher.Write([]byte{byte(level)})
	hasher.Write(left[:])
	hasher.Write(right[:])
	var out types.Hash
	copy(out[:], hasher.Sum(nil))
	return out
}

// HasherFor returns the native combiner for pool.
func HasherFor(pool types.Pool) PoolHasher {
	switch pool {
	case types.PoolSapling:
		return saplingHasher{}
	case types.PoolOrchard:
		return orchardHasher{}
	default:
		panic("witness: HasherFor called with non-shielded pool")
	}
}
