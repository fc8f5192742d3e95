package witness

import "github.com/ccoin/warpz/pkg/types"

// Frontier is the current rightmost path of a commitment tree: one
// optional hash per level, present when that level holds a completed left
// subtree still waiting for its right sibling (bit `level` of Size is set).
// It is the in-memory counterpart of types.TreeState.
type Frontier struct {
	Size  uint64
	Level [TreeDepth]types.OptLevel
}

// Bridge summarizes the frontier delta across a contiguous leaf range,
// letting AppendLeaves fold the whole range in O(log n) combiner calls
// instead of hashing every individual leaf — the "warp" optimization that
// lets a light client skip ranges it owns nothing in. A bridge supplied
// by the BlockSource for a leaf range containing no leaves relevant to
// any owned position can be applied
// directly to the frontier; for ranges that do contain an owned leaf the
// engine ignores the bridge and appends every leaf individually (see
// Engine.AppendLeaves), since an owned leaf's sibling history must be
// retained exactly.
type Bridge = types.Bridge

// frontierFromWire converts a wire-level edge (one entry per level, leaf
// level first, as sent by the server) into a Frontier.
func frontierFromWire(size uint64, edge []types.OptLevel) Frontier {
	var f Frontier
	f.Size = size
	for i := 0; i < TreeDepth && i < len(edge); i++ {
		f.Level[i] = edge[i]
	}
	return f
}

// toWire serializes a Frontier back into the wire edge representation.
func (f Frontier) toWire() []types.OptLevel {
	edge := make([]types.OptLevel, TreeDepth)
	copy(edge, f.Level[:])
	return edge
}

// applyBridge folds a bridge onto the current frontier in O(log n): the
// bridge's StartEdge must match the current frontier's size and shape, and
// its EndEdge becomes the new frontier. This is valid only when the bridge
// spans leaves the caller has verified contain no owned positions —
// Engine enforces that precondition before calling applyBridge.
func applyBridge(current Frontier, b *Bridge) (Frontier, bool) {
	if b == nil {
		return current, false
	}
	if current.Size != 0 {
		start := frontierFromWire(current.Size, b.StartEdge)
		if start != current {
			return current, false
		}
	}
	next := frontierFromWire(current.Size+b.Len, b.EndEdge)
	return next, true
}

// appendLeaf folds a single leaf into the frontier using hasher, updating
// every level the new leaf's position touches. It returns the updated
// frontier and the position the leaf was assigned.
func appendLeaf(hasher PoolHasher, f Frontier, leaf types.Hash) (Frontier, uint64) {
	position := f.Size
	index := position
	current := leaf
	for level := 0; level < TreeDepth; level++ {
		if index%2 == 0 {
			// Current is a left child: its sibling does not exist yet, so
			// this level's slot becomes "present" holding the leaf-side
			// hash, and combination is deferred until a right sibling
			// arrives.
			f.Level[level] = types.OptLevel{Present: true, Hash: current}
			break
		}
		sibling := f.Level[level]
		var siblingHash types.Hash
		if sibling.Present {
			siblingHash = sibling.Hash
		} else {
			siblingHash = hasher.EmptyLeaf()
		}
		current = hasher.Combine(level, siblingHash, current)
		f.Level[level] = types.OptLevel{}
		index /= 2
	}
	f.Size++
	return f, position
}
