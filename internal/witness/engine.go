package witness

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// ErrNoCheckpoint is returned by AnchorAt/AuthPath when no checkpoint at or
// above the requested height (plus confirmations) exists yet.
var ErrNoCheckpoint = errors.New("witness: no checkpoint at requested height")

// CheckpointStore is the slice of Store the engine needs: it never talks
// to the database directly, keeping the Synchronizer as the single writer
// of tree and note state, with every other consumer a reader.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp types.Checkpoint) error
	CheckpointAt(ctx context.Context, height uint32) (*types.Checkpoint, error)
	NearestCheckpointAtOrBelow(ctx context.Context, height uint32) (*types.Checkpoint, error)
	OldestCheckpointHeight(ctx context.Context) (uint32, bool, error)
	DeleteCheckpointsAbove(ctx context.Context, height uint32) error
}

// Engine maintains the Sapling and Orchard commitment trees and their
// checkpoint history. Every mutation must preserve auth-path soundness
// for every owned, unspent note across arbitrary rewinds.
type Engine struct {
	sapling *CommitmentTree
	orchard *CommitmentTree

	checkpoints CheckpointStore

	mu     sync.RWMutex
	owned  map[types.Pool]map[uint64]struct{} // marked positions per pool
	minConfirmations uint32
}

// NewEngine constructs an Engine over the given per-pool tree stores and
// checkpoint store.
func NewEngine(saplingStore, orchardStore TreeStore, checkpoints CheckpointStore, minConfirmations uint32) *Engine {
	return &Engine{
		sapling: NewCommitmentTree(types.PoolSapling, saplingStore),
		orchard: NewCommitmentTree(types.PoolOrchard, orchardStore),
		checkpoints: checkpoints,
		owned: map[types.Pool]map[uint64]struct{}{
			types.PoolSapling: {},
			types.PoolOrchard: {},
		},
		minConfirmations: minConfirmations,
	}
}

// Initialize loads both trees' persisted state.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.sapling.Initialize(ctx); err != nil {
		return err
	}
	return e.orchard.Initialize(ctx)
}

func (e *Engine) treeFor(pool types.Pool) *CommitmentTree {
	switch pool {
	case types.PoolSapling:
		return e.sapling
	case types.PoolOrchard:
		return e.orchard
	default:
		panic("witness: treeFor called with non-shielded pool")
	}
}

// AppendLeaves appends leaves to pool's tree in order, honoring a supplied
// bridge when present and safe (see CommitmentTree.AppendBridge); it
// returns the position assigned to each leaf. ownedIndices names the
// positions (relative to the start of this batch) that TrialDecryptor
// matched for some account — these are always appended individually so
// their node path is materialized, even if the caller also supplied a
// bridge spanning the rest of the batch.
func (e *Engine) AppendLeaves(ctx context.Context, pool types.Pool, leaves []types.Hash, bridge *types.Bridge, ownedIndices map[int]struct{}) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree := e.treeFor(pool)

	if bridge != nil && len(ownedIndices) == 0 && uint64(len(leaves)) == bridge.Len {
		if err := tree.AppendBridge(ctx, bridge); err != nil {
			return nil, err
		}
		positions := make([]uint64, len(leaves))
		start := tree.GetSize() - uint64(len(leaves))
		for i := range leaves {
			positions[i] = start + uint64(i)
		}
		return positions, nil
	}

	positions := make([]uint64, len(leaves))
	for i, leaf := range leaves {
		pos, err := tree.AppendLeaf(ctx, leaf)
		if err != nil {
			return nil, err
		}
		positions[i] = pos
	}
	return positions, nil
}

// Mark records position as owned: its authentication path is maintained
// going forward. Idempotent.
func (e *Engine) Mark(pool types.Pool, position uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.owned[pool][position] = struct{}{}
}

// Unmark removes a position from the owned set (used when a note is
// rewound away entirely).
func (e *Engine) Unmark(pool types.Pool, position uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.owned[pool], position)
}

// IsMarked reports whether position is currently tracked as owned.
func (e *Engine) IsMarked(pool types.Pool, position uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.owned[pool][position]
	return ok
}

// Checkpoint snapshots both trees' current state under height/hash/time
// and persists it. Called by the Synchronizer at each checkpoint interval
// and at the terminal block of a chunk.
func (e *Engine) Checkpoint(ctx context.Context, height uint32, blockHash types.Hash, timestamp uint64) error {
	e.mu.RLock()
	cp := types.Checkpoint{
		Height:      height,
		BlockHash:   blockHash,
		Timestamp:   timestamp,
		SaplingTree: e.sapling.Snapshot(),
		OrchardTree: e.orchard.Snapshot(),
	}
	e.mu.RUnlock()
	return e.checkpoints.SaveCheckpoint(ctx, cp)
}

// AnchorAt returns pool's tree root at height, requiring a checkpoint to
// exist at exactly that height.
func (e *Engine) AnchorAt(ctx context.Context, pool types.Pool, height uint32) (types.Hash, error) {
	cp, err := e.checkpoints.CheckpointAt(ctx, height)
	if err != nil {
		return types.Hash{}, err
	}
	if cp == nil {
		return types.Hash{}, ErrNoCheckpoint
	}
	return e.anchorFromCheckpoint(pool, cp), nil
}

func (e *Engine) anchorFromCheckpoint(pool types.Pool, cp *types.Checkpoint) types.Hash {
	tree := e.treeFor(pool)
	var state types.TreeState
	if pool == types.PoolSapling {
		state = cp.SaplingTree
	} else {
		state = cp.OrchardTree
	}
	return tree.rootFromFrontier(frontierFromWire(state.Size, state.Frontier))
}

// AuthPath returns the authentication path for position under the anchor
// at height, failing unless a checkpoint exists at exactly height and some
// checkpoint at or above height+minConfirmations exists too. position must
// have been Marked before or at that height;
// otherwise its node path was never materialized. The path is
// reconstructed against the size the tree had at that checkpoint, not
// against whatever it holds now, so it verifies against anchor_at(height)
// even though sync keeps appending leaves (and filling in what were empty
// sibling subtrees along position's path) after the checkpoint is taken.
func (e *Engine) AuthPath(ctx context.Context, pool types.Pool, position uint64, height uint32) (*MerklePath, error) {
	required := height + e.minConfirmations
	latest, err := e.checkpoints.NearestCheckpointAtOrBelow(ctx, ^uint32(0))
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Height < required {
		return nil, ErrNoCheckpoint
	}
	cp, err := e.checkpoints.CheckpointAt(ctx, height)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrNoCheckpoint
	}

	tree := e.treeFor(pool)
	var asOfSize uint64
	if pool == types.PoolSapling {
		asOfSize = cp.SaplingTree.Size
	} else {
		asOfSize = cp.OrchardTree.Size
	}
	return tree.GetPathAt(ctx, position, asOfSize)
}

// RewindTo discards all appends and marks made after height, restoring
// both trees from the nearest checkpoint at or below height and deleting
// checkpoints above it. Idempotent and strictly shrinking. Fails with
// errs.ErrTooDeepReorg if height precedes the oldest retained checkpoint.
func (e *Engine) RewindTo(ctx context.Context, height uint32) error {
	oldest, ok, err := e.checkpoints.OldestCheckpointHeight(ctx)
	if err != nil {
		return err
	}
	if ok && height < oldest {
		return errs.ErrTooDeepReorg
	}

	target, err := e.checkpoints.NearestCheckpointAtOrBelow(ctx, height)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if target == nil {
		if err := e.sapling.Restore(ctx, types.TreeState{}); err != nil {
			return err
		}
		if err := e.orchard.Restore(ctx, types.TreeState{}); err != nil {
			return err
		}
	} else {
		if err := e.sapling.Restore(ctx, target.SaplingTree); err != nil {
			return err
		}
		if err := e.orchard.Restore(ctx, target.OrchardTree); err != nil {
			return err
		}
	}

	if err := e.checkpoints.DeleteCheckpointsAbove(ctx, height); err != nil {
		return err
	}

	for pool, positions := range e.owned {
		size := e.treeFor(pool).GetSize()
		for pos := range positions {
			if pos >= size {
				delete(positions, pos)
			}
		}
	}
	return nil
}

// MarkedPositions returns a sorted snapshot of pool's owned positions, for
// diagnostics and tests.
func (e *Engine) MarkedPositions(pool types.Pool) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]uint64, 0, len(e.owned[pool]))
	for pos := range e.owned[pool] {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
