package nullifier

import (
	"context"
	"errors"
	"testing"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

type fakeStore struct {
	spent map[types.Pool]map[types.Hash]uint32
}

func newFakeStore() *fakeStore {
	return &fakeStore{spent: map[types.Pool]map[types.Hash]uint32{
		types.PoolSapling: {},
		types.PoolOrchard: {},
	}}
}

func (f *fakeStore) HasNullifier(ctx context.Context, pool types.Pool, n types.Hash) (bool, error) {
	_, ok := f.spent[pool][n]
	return ok, nil
}

func (f *fakeStore) AddNullifier(ctx context.Context, pool types.Pool, n types.Hash, txID types.Hash, height uint32) error {
	f.spent[pool][n] = height
	return nil
}

func (f *fakeStore) RemoveAbove(ctx context.Context, pool types.Pool, height uint32) error {
	for n, h := range f.spent[pool] {
		if h > height {
			delete(f.spent[pool], n)
		}
	}
	return nil
}

func hashFrom(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestSetMarkSpentAndIsSpent(t *testing.T) {
	store := newFakeStore()
	set := NewSet(store)
	ctx := context.Background()
	n := hashFrom(1)

	spent, err := set.IsSpent(ctx, types.PoolSapling, n)
	if err != nil {
		t.Fatalf("IsSpent() error = %v", err)
	}
	if spent {
		t.Fatal("fresh nullifier should not be spent")
	}

	if err := set.MarkSpent(ctx, types.PoolSapling, n, hashFrom(2), 10); err != nil {
		t.Fatalf("MarkSpent() error = %v", err)
	}

	spent, err = set.IsSpent(ctx, types.PoolSapling, n)
	if err != nil {
		t.Fatalf("IsSpent() error = %v", err)
	}
	if !spent {
		t.Fatal("nullifier should be spent after MarkSpent")
	}
}

func TestSetMarkSpentTwiceFails(t *testing.T) {
	store := newFakeStore()
	set := NewSet(store)
	ctx := context.Background()
	n := hashFrom(3)

	if err := set.MarkSpent(ctx, types.PoolOrchard, n, hashFrom(4), 10); err != nil {
		t.Fatalf("first MarkSpent() error = %v", err)
	}
	err := set.MarkSpent(ctx, types.PoolOrchard, n, hashFrom(4), 11)
	if !errors.Is(err, errs.ErrBug) {
		t.Fatalf("second MarkSpent() error = %v, want ErrBug", err)
	}
}

func TestSetPoolsAreIndependent(t *testing.T) {
	store := newFakeStore()
	set := NewSet(store)
	ctx := context.Background()
	n := hashFrom(5)

	if err := set.MarkSpent(ctx, types.PoolSapling, n, hashFrom(6), 10); err != nil {
		t.Fatalf("MarkSpent() error = %v", err)
	}
	spent, err := set.IsSpent(ctx, types.PoolOrchard, n)
	if err != nil {
		t.Fatalf("IsSpent() error = %v", err)
	}
	if spent {
		t.Error("the same hash spent in one pool should not appear spent in another")
	}
}

func TestSetBatchCheck(t *testing.T) {
	store := newFakeStore()
	set := NewSet(store)
	ctx := context.Background()

	spentN, unspentN := hashFrom(7), hashFrom(8)
	if err := set.MarkSpent(ctx, types.PoolSapling, spentN, hashFrom(9), 10); err != nil {
		t.Fatalf("MarkSpent() error = %v", err)
	}

	results, err := set.BatchCheck(ctx, types.PoolSapling, []types.Hash{spentN, unspentN})
	if err != nil {
		t.Fatalf("BatchCheck() error = %v", err)
	}
	if !results[0] || results[1] {
		t.Errorf("BatchCheck() = %v, want [true false]", results)
	}
}

func TestSetRewindAbove(t *testing.T) {
	store := newFakeStore()
	set := NewSet(store)
	ctx := context.Background()

	low, high := hashFrom(10), hashFrom(11)
	if err := set.MarkSpent(ctx, types.PoolSapling, low, hashFrom(1), 5); err != nil {
		t.Fatalf("MarkSpent() error = %v", err)
	}
	if err := set.MarkSpent(ctx, types.PoolSapling, high, hashFrom(2), 15); err != nil {
		t.Fatalf("MarkSpent() error = %v", err)
	}

	if err := set.RewindAbove(ctx, 10); err != nil {
		t.Fatalf("RewindAbove() error = %v", err)
	}

	lowSpent, _ := set.IsSpent(ctx, types.PoolSapling, low)
	highSpent, _ := set.IsSpent(ctx, types.PoolSapling, high)
	if !lowSpent {
		t.Error("nullifier spent at or below the rewind height should remain spent")
	}
	if highSpent {
		t.Error("nullifier spent above the rewind height should be un-spent")
	}
}

func TestDeriveIsDeterministicAndPositionSensitive(t *testing.T) {
	key := []byte("spending-key-material")
	commitment := hashFrom(42)

	a := Derive(key, commitment, 7)
	b := Derive(key, commitment, 7)
	if a != b {
		t.Error("Derive() should be deterministic for identical inputs")
	}

	c := Derive(key, commitment, 8)
	if a == c {
		t.Error("Derive() should differ across positions")
	}
}

func TestDerivationKeyDependsOnInput(t *testing.T) {
	k1 := DerivationKey([]byte("key-one"))
	k2 := DerivationKey([]byte("key-two"))
	if string(k1) == string(k2) {
		t.Error("DerivationKey() should differ for different spending keys")
	}
}
