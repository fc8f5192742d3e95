// Package nullifier tracks spent nullifiers to prevent double-spending: a
// cache plus persistent-store split, with BatchCheck and Derive/
// DerivationKey helpers, forming the per-pool spend tracker the
// Synchronizer consults while processing Sapling spends and Orchard
// actions.
package nullifier

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/common"
	"github.com/ccoin/warpz/pkg/types"
)

// Store is the persistent half of a Set; Storage's postgres-backed
// implementation satisfies it per pool.
type Store interface {
	HasNullifier(ctx context.Context, pool types.Pool, n types.Hash) (bool, error)
	AddNullifier(ctx context.Context, pool types.Pool, n types.Hash, txID types.Hash, height uint32) error
	RemoveAbove(ctx context.Context, pool types.Pool, height uint32) error
}

// Set is an in-memory cache in front of Store.
type Set struct {
	mu           sync.RWMutex
	store        Store
	cache        map[types.Pool]map[types.Hash]struct{}
	maxCacheSize int
}

// DefaultMaxCacheSize is a conservative per-pool in-memory cache bound.
const DefaultMaxCacheSize = 100_000

// NewSet creates a Set backed by store.
func NewSet(store Store) *Set {
	return &Set{
		store: store,
		cache: map[types.Pool]map[types.Hash]struct{}{
			types.PoolSapling: {},
			types.PoolOrchard: {},
		},
		maxCacheSize: DefaultMaxCacheSize,
	}
}

// IsSpent checks the cache, then the store.
func (s *Set) IsSpent(ctx context.Context, pool types.Pool, n types.Hash) (bool, error) {
	s.mu.RLock()
	_, inCache := s.cache[pool][n]
	s.mu.RUnlock()
	if inCache {
		return true, nil
	}
	return s.store.HasNullifier(ctx, pool, n)
}

// MarkSpent records n as spent at height in txID. Returns errs.ErrBug if n
// was already spent — the Synchronizer must check IsSpent first, as part
// of its atomic nullifier-processing-and-leaf-append step per block.
func (s *Set) MarkSpent(ctx context.Context, pool types.Pool, n types.Hash, txID types.Hash, height uint32) error {
	spent, err := s.IsSpent(ctx, pool, n)
	if err != nil {
		return err
	}
	if spent {
		return errs.ErrBug
	}
	if err := s.store.AddNullifier(ctx, pool, n, txID, height); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.cache[pool]
	bucket[n] = struct{}{}
	if len(bucket) > s.maxCacheSize {
		for k := range bucket {
			delete(bucket, k)
			break
		}
	}
	return nil
}

// BatchCheck checks many nullifiers in one call.
func (s *Set) BatchCheck(ctx context.Context, pool types.Pool, ns []types.Hash) ([]bool, error) {
	out := make([]bool, len(ns))
	for i, n := range ns {
		spent, err := s.IsSpent(ctx, pool, n)
		if err != nil {
			return nil, err
		}
		out[i] = spent
	}
	return out, nil
}

// RewindAbove discards nullifier records above height and clears the
// in-memory cache, which is rebuilt lazily from the store on next lookup.
// Note records are not touched here.
func (s *Set) RewindAbove(ctx context.Context, height uint32) error {
	for _, pool := range []types.Pool{types.PoolSapling, types.PoolOrchard} {
		if err := s.store.RemoveAbove(ctx, pool, height); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.cache[types.PoolSapling] = map[types.Hash]struct{}{}
	s.cache[types.PoolOrchard] = map[types.Hash]struct{}{}
	s.mu.Unlock()
	return nil
}

// Derive computes nullifier = H(spendingKey || commitment || position).
func Derive(spendingKey []byte, commitment types.Hash, position uint64) types.Hash {
	h := sha256.New()
	h.Write(spendingKey)
	h.Write(commitment[:])
	h.Write(common.Uint64ToBytes(position))
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// DerivationKey derives the nullifier-deriving key from a spending key.
func DerivationKey(spendingKey []byte) []byte {
	h := sha256.New()
	h.Write([]byte("WARPZ_NULLIFIER_KEY"))
	h.Write(spendingKey)
	return h.Sum(nil)
}
