package storage

import (
	"context"

	"github.com/ccoin/warpz/pkg/types"
)

// HasNullifier implements nullifier.Store.
func (s *PostgresStore) HasNullifier(ctx context.Context, pool types.Pool, n types.Hash) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE pool = $1 AND nullifier = $2)`,
		pool, n[:],
	).Scan(&exists)
	return exists, err
}

// AddNullifier implements nullifier.Store.
func (s *PostgresStore) AddNullifier(ctx context.Context, pool types.Pool, n types.Hash, txID types.Hash, height uint32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nullifiers (pool, nullifier, tx_id, height) VALUES ($1, $2, $3, $4)
		ON CONFLICT (pool, nullifier) DO NOTHING
	`, pool, n[:], txID[:], height)
	return err
}

// RemoveAbove implements nullifier.Store, used on rewind.
func (s *PostgresStore) RemoveAbove(ctx context.Context, pool types.Pool, height uint32) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM nullifiers WHERE pool = $1 AND height > $2`, pool, height)
	return err
}
