// Package sync implements the Synchronizer: the fetch -> decrypt ->
// tree-update -> persist pipeline that drives BlockSource, TrialDecryptor,
// WitnessEngine and Store, with chunked fetching, Progress()/IsSyncing()
// accessors, ctx.Done() cancellation, and a reorg-retry path.
package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ccoin/warpz/internal/chainsource"
	"github.com/ccoin/warpz/internal/decrypt"
	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/internal/logging"
	"github.com/ccoin/warpz/internal/nullifier"
	"github.com/ccoin/warpz/internal/witness"
	"github.com/ccoin/warpz/pkg/types"
)

// Store is the slice of internal/storage.PostgresStore the Synchronizer
// writes through.
type Store interface {
	SaveNote(ctx context.Context, n *types.Note) error
	MarkNoteSpent(ctx context.Context, pool types.Pool, nullifier types.Hash, height uint32) error
	SaveMessage(ctx context.Context, m *types.Message) error
	SaveUTXO(ctx context.Context, u *types.UTXO) error
	RewindNotes(ctx context.Context, height uint32) error
}

// Config tunes chunk size and checkpoint cadence.
type Config struct {
	ChunkSize         uint64
	CheckpointEvery   uint32
	MinConfirmations  uint32
}

// DefaultConfig is a conservative chunk size and checkpoint cadence.
func DefaultConfig() *Config {
	return &Config{ChunkSize: 100, CheckpointEvery: 100, MinConfirmations: 10}
}

// Synchronizer orchestrates the sync pipeline. One instance drives both
// shielded pools; the mempool submode is handled by MempoolSubmode, which
// never touches the witness trees.
type Synchronizer struct {
	mu sync.RWMutex

	source     *chainsource.BlockSource
	decryptor  *decrypt.Decryptor
	witness    *witness.Engine
	nullifiers *nullifier.Set
	store      Store
	cfg        *Config
	log        *logrus.Entry

	syncing  bool
	progress uint64
	target   uint64
}

// New constructs a Synchronizer.
func New(source *chainsource.BlockSource, decryptor *decrypt.Decryptor, engine *witness.Engine, nullifiers *nullifier.Set, store Store, cfg *Config) *Synchronizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Synchronizer{
		source:     source,
		decryptor:  decryptor,
		witness:    engine,
		nullifiers: nullifiers,
		store:      store,
		cfg:        cfg,
		log:        logging.New("sync"),
	}
}

// Progress reports (current, target) height, for status display.
func (s *Synchronizer) Progress() (current, target uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress, s.target
}

// IsSyncing reports whether a Run call is in flight.
func (s *Synchronizer) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// Run drives the sync pipeline from fromHeight to the remote tip, in
// chunks of cfg.ChunkSize. It retries from the last good checkpoint when
// the BlockSource reports a reorg (errs.ErrReorgDetected), and returns
// errs.ErrTooDeepReorg unmodified if the rewind exceeds retained
// checkpoints.
func (s *Synchronizer) Run(ctx context.Context, fromHeight uint64) error {
	target, err := s.source.LatestHeight(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.syncing = true
	s.progress = fromHeight
	s.target = target
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	current := fromHeight
	for current < target {
		select {
		case <-ctx.Done():
			return errs.ErrCanceled
		default:
		}

		end := current + s.cfg.ChunkSize
		if end > target {
			end = target
		}

		nextHeight, err := s.runChunk(ctx, current, end)
		if errors.Is(err, errs.ErrReorgDetected) {
			rewindTo, rerr := s.handleReorg(ctx, current)
			if rerr != nil {
				return rerr
			}
			current = rewindTo
			continue
		}
		if err != nil {
			return err
		}

		current = nextHeight
		s.mu.Lock()
		s.progress = current
		s.mu.Unlock()
	}
	return nil
}

// handleReorg rewinds the witness engine, nullifier set, and note store to
// the last checkpoint at or below height, returning the height sync should
// resume from.
func (s *Synchronizer) handleReorg(ctx context.Context, height uint64) (uint64, error) {
	target := uint32(0)
	if height > 0 {
		target = uint32(height - 1)
	}
	s.log.WithField("height", target).Warn("rewinding due to detected reorg")

	if err := s.witness.RewindTo(ctx, target); err != nil {
		return 0, err
	}
	if err := s.nullifiers.RewindAbove(ctx, target); err != nil {
		return 0, err
	}
	if err := s.store.RewindNotes(ctx, target); err != nil {
		return 0, err
	}
	return uint64(target), nil
}

// runChunk fetches and applies the blocks the source streams for [from, to],
// checkpoints the last block applied unless the cadence already did, and
// returns the height after that block (from itself if no block arrived).
func (s *Synchronizer) runChunk(ctx context.Context, from, to uint64) (uint64, error) {
	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks, errCh := s.source.Stream(chunkCtx, from, to)

	var lastHeight uint64 = from
	var last *types.CompactBlock
	for block := range blocks {
		if err := s.applyBlock(ctx, block); err != nil {
			return 0, err
		}
		lastHeight = block.Height + 1
		b := block
		last = &b
	}

	if err := <-errCh; err != nil {
		return 0, err
	}
	if last != nil && last.Height%uint64(s.cfg.CheckpointEvery) != 0 {
		if err := s.witness.Checkpoint(ctx, uint32(last.Height), last.Hash, uint64(last.Time)); err != nil {
			return 0, err
		}
	}
	return lastHeight, nil
}

// applyBlock runs the 5-step per-block pipeline: decrypt candidate
// outputs, append leaves to both trees (using any supplied bridge),
// process nullifiers to mark spends, persist matched notes, and
// checkpoint every cfg.CheckpointEvery blocks.
func (s *Synchronizer) applyBlock(ctx context.Context, block types.CompactBlock) error {
	jobs, index, poolIndex := buildJobs(block)

	matches, err := s.decryptor.TrialDecrypt(ctx, jobs)
	if err != nil {
		return err
	}

	ownedSapling := map[int]struct{}{}
	ownedOrchard := map[int]struct{}{}
	for _, m := range matches {
		idx := index[jobKey{pool: m.Pool, txIndex: m.TxIndex, outputIndex: m.OutputIndex}]
		switch m.Pool {
		case types.PoolSapling:
			ownedSapling[idx] = struct{}{}
		case types.PoolOrchard:
			ownedOrchard[idx] = struct{}{}
		}
	}

	saplingLeaves, saplingBridge := collectLeaves(block, types.PoolSapling)
	orchardLeaves, orchardBridge := collectLeaves(block, types.PoolOrchard)

	saplingPositions, err := s.witness.AppendLeaves(ctx, types.PoolSapling, saplingLeaves, saplingBridge, ownedSapling)
	if err != nil {
		return err
	}
	orchardPositions, err := s.witness.AppendLeaves(ctx, types.PoolOrchard, orchardLeaves, orchardBridge, ownedOrchard)
	if err != nil {
		return err
	}

	if err := s.processSpends(ctx, block); err != nil {
		return err
	}

	if err := s.persistMatches(ctx, block, matches, poolIndex, saplingPositions, orchardPositions); err != nil {
		return err
	}

	if block.Height%uint64(s.cfg.CheckpointEvery) == 0 {
		if err := s.witness.Checkpoint(ctx, uint32(block.Height), block.Hash, uint64(block.Time)); err != nil {
			return err
		}
	}
	return nil
}

type jobKey struct {
	pool        types.Pool
	txIndex     int
	outputIndex int
}

// buildJobs flattens a compact block's spends/outputs/actions into a flat
// decrypt.Job slice, a lookup from (pool, tx, output) back to that slice
// index, and a second lookup from (pool, tx, output) to the index the same
// leaf will occupy within collectLeaves' per-pool leaf slice — the latter
// is how persistMatches re-joins a match back to the tree position
// AppendLeaves assigned it, since a given leaf can produce more than one
// Match (cross-account funding) and matches arrive in no fixed order.
func buildJobs(block types.CompactBlock) ([]decrypt.Job, map[jobKey]int, map[jobKey]int) {
	var jobs []decrypt.Job
	index := make(map[jobKey]int)
	poolIndex := make(map[jobKey]int)
	var saplingCount, orchardCount int

	for _, tx := range block.Txs {
		for i, out := range tx.SaplingOutputs {
			k := jobKey{types.PoolSapling, int(tx.Index), i}
			index[k] = len(jobs)
			poolIndex[k] = saplingCount
			saplingCount++
			jobs = append(jobs, decrypt.Job{
				Pool:         types.PoolSapling,
				TxIndex:      int(tx.Index),
				OutputIndex:  i,
				Cmx:          out.Cmu,
				EphemeralKey: out.EphemeralKey[:],
				Ciphertext:   out.Ciphertext,
			})
		}
		for i, act := range tx.OrchardActions {
			k := jobKey{types.PoolOrchard, int(tx.Index), i}
			index[k] = len(jobs)
			poolIndex[k] = orchardCount
			orchardCount++
			jobs = append(jobs, decrypt.Job{
				Pool:         types.PoolOrchard,
				TxIndex:      int(tx.Index),
				OutputIndex:  i,
				Cmx:          act.Cmx,
				EphemeralKey: act.EphemeralKey[:],
				Ciphertext:   act.Ciphertext,
			})
		}
	}
	return jobs, index, poolIndex
}

// collectLeaves gathers pool's leaves from block in wire order, along with
// whichever bridge the server supplied for that pool (nil if none).
func collectLeaves(block types.CompactBlock, pool types.Pool) ([]types.Hash, *types.Bridge) {
	var leaves []types.Hash
	for _, tx := range block.Txs {
		switch pool {
		case types.PoolSapling:
			for _, out := range tx.SaplingOutputs {
				leaves = append(leaves, out.Cmu)
			}
		case types.PoolOrchard:
			for _, act := range tx.OrchardActions {
				leaves = append(leaves, act.Cmx)
			}
		}
	}
	var bridge *types.Bridge
	if pool == types.PoolSapling {
		bridge = block.SaplingBridge
	} else {
		bridge = block.OrchardBridge
	}
	return leaves, bridge
}

// processSpends checks every revealed nullifier against the set and marks
// owned notes spent.
func (s *Synchronizer) processSpends(ctx context.Context, block types.CompactBlock) error {
	for _, tx := range block.Txs {
		for _, sp := range tx.SaplingSpends {
			spent, err := s.nullifiers.IsSpent(ctx, types.PoolSapling, sp.Nullifier)
			if err != nil {
				return err
			}
			if !spent {
				if err := s.nullifiers.MarkSpent(ctx, types.PoolSapling, sp.Nullifier, tx.Hash, uint32(block.Height)); err != nil {
					return err
				}
			}
			if err := s.store.MarkNoteSpent(ctx, types.PoolSapling, sp.Nullifier, uint32(block.Height)); err != nil {
				return err
			}
		}
		for _, act := range tx.OrchardActions {
			spent, err := s.nullifiers.IsSpent(ctx, types.PoolOrchard, act.Nullifier)
			if err != nil {
				return err
			}
			if !spent {
				if err := s.nullifiers.MarkSpent(ctx, types.PoolOrchard, act.Nullifier, tx.Hash, uint32(block.Height)); err != nil {
					return err
				}
			}
			if err := s.store.MarkNoteSpent(ctx, types.PoolOrchard, act.Nullifier, uint32(block.Height)); err != nil {
				return err
			}
		}
	}
	return nil
}

// persistMatches marks each matched leaf owned in the WitnessEngine and
// writes its Note row. An output decryptable under more than one account's
// viewing key yields multiple matches sharing the same (pool, tx, output)
// key and therefore the same tree position; poolIndex resolves each match
// back to that position directly, rather than assuming matches arrive one
// per leaf in leaf order.
func (s *Synchronizer) persistMatches(ctx context.Context, block types.CompactBlock, matches []decrypt.Match, poolIndex map[jobKey]int, saplingPositions, orchardPositions []uint64) error {
	for _, m := range matches {
		localIdx := poolIndex[jobKey{pool: m.Pool, txIndex: m.TxIndex, outputIndex: m.OutputIndex}]
		var position uint64
		switch m.Pool {
		case types.PoolSapling:
			position = saplingPositions[localIdx]
		case types.PoolOrchard:
			position = orchardPositions[localIdx]
		}
		s.witness.Mark(m.Pool, position)

		note := &types.Note{
			Account:     uint32(m.Account),
			Pool:        m.Pool,
			Value:       m.Value,
			Diversifier: m.Diversifier,
			Rseed:       m.Rseed[:],
			Position:    position,
			Cmx:         m.Cmx,
			Height:      uint32(block.Height),
			OutputIndex: uint16(m.OutputIndex),
		}
		if err := s.store.SaveNote(ctx, note); err != nil {
			return err
		}
	}
	return nil
}
