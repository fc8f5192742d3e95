package witness

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

type fakeCheckpointStore struct {
	checkpoints []types.Checkpoint
}

func (f *fakeCheckpointStore) SaveCheckpoint(ctx context.Context, cp types.Checkpoint) error {
	f.checkpoints = append(f.checkpoints, cp)
	sort.Slice(f.checkpoints, func(i, j int) bool { return f.checkpoints[i].Height < f.checkpoints[j].Height })
	return nil
}

func (f *fakeCheckpointStore) CheckpointAt(ctx context.Context, height uint32) (*types.Checkpoint, error) {
	for i := range f.checkpoints {
		if f.checkpoints[i].Height == height {
			return &f.checkpoints[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCheckpointStore) NearestCheckpointAtOrBelow(ctx context.Context, height uint32) (*types.Checkpoint, error) {
	var best *types.Checkpoint
	for i := range f.checkpoints {
		if f.checkpoints[i].Height <= height {
			best = &f.checkpoints[i]
		}
	}
	return best, nil
}

func (f *fakeCheckpointStore) OldestCheckpointHeight(ctx context.Context) (uint32, bool, error) {
	if len(f.checkpoints) == 0 {
		return 0, false, nil
	}
	return f.checkpoints[0].Height, true, nil
}

func (f *fakeCheckpointStore) DeleteCheckpointsAbove(ctx context.Context, height uint32) error {
	var kept []types.Checkpoint
	for _, cp := range f.checkpoints {
		if cp.Height <= height {
			kept = append(kept, cp)
		}
	}
	f.checkpoints = kept
	return nil
}

func newTestEngine(t *testing.T, minConfirmations uint32) (*Engine, *fakeCheckpointStore) {
	t.Helper()
	store := &fakeCheckpointStore{}
	e := NewEngine(NewInMemoryTreeStore(), NewInMemoryTreeStore(), store, minConfirmations)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return e, store
}

func TestEngineAppendLeavesAndMark(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 0)

	leaves := []types.Hash{leafHash(1), leafHash(2), leafHash(3)}
	positions, err := e.AppendLeaves(ctx, types.PoolSapling, leaves, nil, nil)
	if err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	if len(positions) != 3 || positions[0] != 0 || positions[2] != 2 {
		t.Fatalf("positions = %v, want [0 1 2]", positions)
	}

	e.Mark(types.PoolSapling, 1)
	if !e.IsMarked(types.PoolSapling, 1) {
		t.Error("position 1 should be marked")
	}
	if e.IsMarked(types.PoolSapling, 0) {
		t.Error("position 0 should not be marked")
	}

	e.Unmark(types.PoolSapling, 1)
	if e.IsMarked(types.PoolSapling, 1) {
		t.Error("position 1 should be unmarked")
	}
}

func TestEngineCheckpointAndAnchorAt(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 0)

	if _, err := e.AppendLeaves(ctx, types.PoolSapling, []types.Hash{leafHash(1)}, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	if err := e.Checkpoint(ctx, 100, leafHash(0xAA), 123); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	anchor, err := e.AnchorAt(ctx, types.PoolSapling, 100)
	if err != nil {
		t.Fatalf("AnchorAt() error = %v", err)
	}
	if anchor != e.sapling.GetRoot() {
		t.Error("AnchorAt() should match the tree's current root right after checkpointing it")
	}

	if _, err := e.AnchorAt(ctx, types.PoolSapling, 200); err != ErrNoCheckpoint {
		t.Fatalf("AnchorAt() error = %v, want ErrNoCheckpoint", err)
	}
}

func TestEngineAuthPathRequiresConfirmations(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 3)

	if _, err := e.AppendLeaves(ctx, types.PoolOrchard, []types.Hash{leafHash(1)}, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	e.Mark(types.PoolOrchard, 0)

	if err := e.Checkpoint(ctx, 10, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	if _, err := e.AuthPath(ctx, types.PoolOrchard, 0, 10); err != ErrNoCheckpoint {
		t.Fatalf("AuthPath() at insufficient confirmations error = %v, want ErrNoCheckpoint", err)
	}

	if err := e.Checkpoint(ctx, 13, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}
	path, err := e.AuthPath(ctx, types.PoolOrchard, 0, 10)
	if err != nil {
		t.Fatalf("AuthPath() error = %v", err)
	}
	if path.LeafPosition != 0 {
		t.Errorf("LeafPosition = %d, want 0", path.LeafPosition)
	}
}

func TestEngineAuthPathVerifiesAgainstCheckpointNotLiveRoot(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 0)

	if _, err := e.AppendLeaves(ctx, types.PoolSapling, []types.Hash{leafHash(1)}, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	e.Mark(types.PoolSapling, 0)
	if err := e.Checkpoint(ctx, 10, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}
	anchor, err := e.AnchorAt(ctx, types.PoolSapling, 10)
	if err != nil {
		t.Fatalf("AnchorAt() error = %v", err)
	}

	// Sync keeps running after the checkpoint: three more leaves arrive,
	// filling in what were empty sibling slots along position 0's path.
	more := []types.Hash{leafHash(2), leafHash(3), leafHash(4)}
	if _, err := e.AppendLeaves(ctx, types.PoolSapling, more, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	liveRoot := e.sapling.GetRoot()
	if liveRoot == anchor {
		t.Fatal("test setup invalid: live root should differ from the checkpointed anchor")
	}

	path, err := e.AuthPath(ctx, types.PoolSapling, 0, 10)
	if err != nil {
		t.Fatalf("AuthPath() error = %v", err)
	}
	if !e.sapling.VerifyPath(leafHash(1), path, anchor) {
		t.Error("AuthPath() path should verify against anchor_at(10), the checkpointed root")
	}
	if e.sapling.VerifyPath(leafHash(1), path, liveRoot) {
		t.Error("AuthPath() path should not verify against the live root appended to after the checkpoint")
	}
}

func TestEngineRewindToRestoresCheckpointAndPrunesMarks(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 0)

	if _, err := e.AppendLeaves(ctx, types.PoolSapling, []types.Hash{leafHash(1)}, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	e.Mark(types.PoolSapling, 0)
	if err := e.Checkpoint(ctx, 10, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}
	rootAtCheckpoint := e.sapling.GetRoot()

	if _, err := e.AppendLeaves(ctx, types.PoolSapling, []types.Hash{leafHash(2)}, nil, nil); err != nil {
		t.Fatalf("AppendLeaves() error = %v", err)
	}
	e.Mark(types.PoolSapling, 1)
	if err := e.Checkpoint(ctx, 20, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	if err := e.RewindTo(ctx, 10); err != nil {
		t.Fatalf("RewindTo() error = %v", err)
	}

	if e.sapling.GetRoot() != rootAtCheckpoint {
		t.Error("RewindTo() should restore the tree to its checkpointed root")
	}
	if !e.IsMarked(types.PoolSapling, 0) {
		t.Error("position 0 should still be marked after rewind")
	}
	if e.IsMarked(types.PoolSapling, 1) {
		t.Error("position 1 should be pruned after rewind shrinks the tree below it")
	}
}

func TestEngineRewindToTooDeepReorg(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 0)

	if err := e.Checkpoint(ctx, 100, leafHash(0), 0); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	err := e.RewindTo(ctx, 10)
	if !errors.Is(err, errs.ErrTooDeepReorg) {
		t.Fatalf("RewindTo() error = %v, want wrapping ErrTooDeepReorg", err)
	}
}

func TestEngineMarkedPositionsSorted(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	e.Mark(types.PoolSapling, 5)
	e.Mark(types.PoolSapling, 1)
	e.Mark(types.PoolSapling, 3)

	got := e.MarkedPositions(types.PoolSapling)
	want := []uint64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("MarkedPositions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MarkedPositions() = %v, want %v", got, want)
		}
	}
}
