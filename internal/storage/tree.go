package storage

import (
	"context"

	"github.com/ccoin/warpz/pkg/types"
)

// PoolTreeStore adapts PostgresStore to witness.TreeStore, scoped to one
// pool's tree_nodes/tree_meta rows. PostgresStore.TreeStoreFor constructs
// one per pool.
type PoolTreeStore struct {
	store *PostgresStore
	pool  types.Pool
}

// TreeStoreFor returns a witness.TreeStore scoped to pool.
func (s *PostgresStore) TreeStoreFor(pool types.Pool) *PoolTreeStore {
	return &PoolTreeStore{store: s, pool: pool}
}

func (t *PoolTreeStore) GetNode(ctx context.Context, level, index uint64) (types.Hash, error) {
	var h []byte
	err := t.store.pool.QueryRow(ctx,
		`SELECT hash FROM tree_nodes WHERE pool = $1 AND level = $2 AND index = $3`,
		t.pool, level, index,
	).Scan(&h)
	if err != nil {
		return types.Hash{}, mapNoRows(err)
	}
	var out types.Hash
	copy(out[:], h)
	return out, nil
}

func (t *PoolTreeStore) SetNode(ctx context.Context, level, index uint64, hash types.Hash) error {
	_, err := t.store.pool.Exec(ctx, `
		INSERT INTO tree_nodes (pool, level, index, hash) VALUES ($1, $2, $3, $4)
		ON CONFLICT (pool, level, index) DO UPDATE SET hash = $4
	`, t.pool, level, index, hash[:])
	return err
}

func (t *PoolTreeStore) GetRoot(ctx context.Context) (types.Hash, error) {
	var h []byte
	err := t.store.pool.QueryRow(ctx,
		`SELECT root FROM tree_meta WHERE pool = $1`, t.pool,
	).Scan(&h)
	if err != nil {
		return types.Hash{}, mapNoRows(err)
	}
	var out types.Hash
	copy(out[:], h)
	return out, nil
}

func (t *PoolTreeStore) SetRoot(ctx context.Context, root types.Hash) error {
	_, err := t.store.pool.Exec(ctx, `
		INSERT INTO tree_meta (pool, root, size) VALUES ($1, $2, 0)
		ON CONFLICT (pool) DO UPDATE SET root = $2
	`, t.pool, root[:])
	return err
}

func (t *PoolTreeStore) GetSize(ctx context.Context) (uint64, error) {
	var size uint64
	err := t.store.pool.QueryRow(ctx,
		`SELECT size FROM tree_meta WHERE pool = $1`, t.pool,
	).Scan(&size)
	if err != nil {
		return 0, mapNoRows(err)
	}
	return size, nil
}

func (t *PoolTreeStore) SetSize(ctx context.Context, size uint64) error {
	_, err := t.store.pool.Exec(ctx, `
		INSERT INTO tree_meta (pool, root, size) VALUES ($1, NULL, $2)
		ON CONFLICT (pool) DO UPDATE SET size = $2
	`, t.pool, size)
	return err
}

// DeleteAbove removes every node whose leaf-relative position is
// fromPosition or greater, at every level (level l covers positions
// [index*2^l, (index+1)*2^l)), used by witness.CommitmentTree.Restore
// during RewindTo.
func (t *PoolTreeStore) DeleteAbove(ctx context.Context, fromPosition uint64) error {
	_, err := t.store.pool.Exec(ctx, `
		DELETE FROM tree_nodes
		WHERE pool = $1 AND (index << level) >= $2
	`, t.pool, fromPosition)
	return err
}
