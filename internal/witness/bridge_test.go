package witness

import (
	"context"
	"testing"

	"github.com/ccoin/warpz/pkg/types"
)

// TestAppendBridgeMatchesPerLeafAppend builds the same four leaves two ways:
// one tree appends them one at a time, the other captures a bridge spanning
// them (computed with the same per-leaf folding) and applies it in one call.
// Both must reach the same root, since a bridge is only a shortcut for
// exactly this fold.
func TestAppendBridgeMatchesPerLeafAppend(t *testing.T) {
	ctx := context.Background()
	hasher := HasherFor(types.PoolSapling)

	leaves := []types.Hash{leafHash(1), leafHash(2), leafHash(3), leafHash(4)}

	direct := newTestTree(t, types.PoolSapling)
	for _, l := range leaves {
		if _, err := direct.AppendLeaf(ctx, l); err != nil {
			t.Fatalf("AppendLeaf() error = %v", err)
		}
	}

	var frontier Frontier
	startEdge := frontier.toWire()
	for _, l := range leaves {
		frontier, _ = appendLeaf(hasher, frontier, l)
	}
	endEdge := frontier.toWire()

	bridge := &Bridge{Len: uint64(len(leaves)), StartEdge: startEdge, EndEdge: endEdge}

	bridged := newTestTree(t, types.PoolSapling)
	if err := bridged.AppendBridge(ctx, bridge); err != nil {
		t.Fatalf("AppendBridge() error = %v", err)
	}

	if bridged.GetRoot() != direct.GetRoot() {
		t.Error("bridged root should match the root reached by appending every leaf directly")
	}
	if bridged.GetSize() != direct.GetSize() {
		t.Errorf("bridged size = %d, want %d", bridged.GetSize(), direct.GetSize())
	}
}

func TestAppendBridgeRejectsMismatchedStart(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t, types.PoolOrchard)
	if _, err := tree.AppendLeaf(ctx, leafHash(1)); err != nil {
		t.Fatalf("AppendLeaf() error = %v", err)
	}

	bogusBridge := &Bridge{Len: 1, StartEdge: make([]types.OptLevel, TreeDepth), EndEdge: make([]types.OptLevel, TreeDepth)}
	err := tree.AppendBridge(ctx, bogusBridge)
	if err != ErrBridgeMismatch {
		t.Fatalf("AppendBridge() error = %v, want ErrBridgeMismatch", err)
	}
}

func TestAppendBridgeOnEmptyTree(t *testing.T) {
	ctx := context.Background()
	hasher := HasherFor(types.PoolOrchard)

	var frontier Frontier
	leaves := []types.Hash{leafHash(5), leafHash(6)}
	for _, l := range leaves {
		frontier, _ = appendLeaf(hasher, frontier, l)
	}

	bridge := &Bridge{Len: 2, StartEdge: (Frontier{}).toWire(), EndEdge: frontier.toWire()}

	tree := newTestTree(t, types.PoolOrchard)
	if err := tree.AppendBridge(ctx, bridge); err != nil {
		t.Fatalf("AppendBridge() error = %v", err)
	}
	if tree.GetSize() != 2 {
		t.Errorf("GetSize() = %d, want 2", tree.GetSize())
	}
}
