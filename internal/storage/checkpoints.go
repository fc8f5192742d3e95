package storage

import (
	"context"
	"encoding/json"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// SaveCheckpoint persists a checkpoint. Tree states are stored as JSON —
// small, infrequent writes (one per checkpoint interval), so the pack's
// general binary-blob-for-chain-data preference does not apply here the way
// it does for hot-path witness nodes.
func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp types.Checkpoint) error {
	saplingJSON, err := json.Marshal(cp.SaplingTree)
	if err != nil {
		return err
	}
	orchardJSON, err := json.Marshal(cp.OrchardTree)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkpoints (height, block_hash, timestamp, sapling_tree, orchard_tree)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (height) DO UPDATE SET block_hash = $2, timestamp = $3, sapling_tree = $4, orchard_tree = $5
	`, cp.Height, cp.BlockHash[:], cp.Timestamp, saplingJSON, orchardJSON)
	return err
}

// CheckpointAt returns the checkpoint at exactly height, or nil if none.
func (s *PostgresStore) CheckpointAt(ctx context.Context, height uint32) (*types.Checkpoint, error) {
	return s.queryCheckpoint(ctx, `
		SELECT height, block_hash, timestamp, sapling_tree, orchard_tree
		FROM checkpoints WHERE height = $1
	`, height)
}

// NearestCheckpointAtOrBelow returns the highest checkpoint at or below
// height, or nil if none exists.
func (s *PostgresStore) NearestCheckpointAtOrBelow(ctx context.Context, height uint32) (*types.Checkpoint, error) {
	return s.queryCheckpoint(ctx, `
		SELECT height, block_hash, timestamp, sapling_tree, orchard_tree
		FROM checkpoints WHERE height <= $1 ORDER BY height DESC LIMIT 1
	`, height)
}

func (s *PostgresStore) queryCheckpoint(ctx context.Context, query string, height uint32) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	var blockHash []byte
	var saplingJSON, orchardJSON []byte

	err := s.pool.QueryRow(ctx, query, height).Scan(&cp.Height, &blockHash, &cp.Timestamp, &saplingJSON, &orchardJSON)
	if err != nil {
		if mapNoRows(err) == errs.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	copy(cp.BlockHash[:], blockHash)
	if err := json.Unmarshal(saplingJSON, &cp.SaplingTree); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(orchardJSON, &cp.OrchardTree); err != nil {
		return nil, err
	}
	return &cp, nil
}

// OldestCheckpointHeight reports the lowest retained checkpoint height.
func (s *PostgresStore) OldestCheckpointHeight(ctx context.Context) (uint32, bool, error) {
	var height uint32
	err := s.pool.QueryRow(ctx, `SELECT height FROM checkpoints ORDER BY height ASC LIMIT 1`).Scan(&height)
	if err != nil {
		if mapNoRows(err) == errs.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return height, true, nil
}

// DeleteCheckpointsAbove removes every checkpoint above height, used by
// WitnessEngine.RewindTo.
func (s *PostgresStore) DeleteCheckpointsAbove(ctx context.Context, height uint32) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE height > $1`, height)
	return err
}

// PurgeCheckpoints thins the checkpoints below minHeight to at most one per
// DefaultRetentionBlocks-sized interval, keeping the highest checkpoint of
// each interval. Checkpoints at or above minHeight are untouched.
const DefaultRetentionBlocks = 100

func (s *PostgresStore) PurgeCheckpoints(ctx context.Context, minHeight uint32) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM checkpoints c
		WHERE c.height < $1 AND c.height < (
			SELECT MAX(k.height) FROM checkpoints k
			WHERE k.height < $1 AND k.height / $2 = c.height / $2
		)
	`, minHeight, DefaultRetentionBlocks)
	return err
}
