package sync

import (
	"sync"

	"github.com/ccoin/warpz/pkg/types"
)

// MempoolSubmode tracks unconfirmed transactions relevant to tracked
// accounts without touching the witness trees: no proof verification, no
// fee-priority ordering (a light wallet does not build blocks), just
// recording that a matched output has been seen unconfirmed.
type MempoolSubmode struct {
	mu  sync.RWMutex
	txs map[types.Hash]*types.UnconfirmedTx
}

// NewMempoolSubmode creates an empty submode tracker.
func NewMempoolSubmode() *MempoolSubmode {
	return &MempoolSubmode{txs: make(map[types.Hash]*types.UnconfirmedTx)}
}

// Observe records (or refreshes) an unconfirmed transaction's value delta
// for account, as produced by running TrialDecryptor against the server's
// mempool stream.
func (m *MempoolSubmode) Observe(account uint32, txID types.Hash, valueDelta int64, seenAt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[txID] = &types.UnconfirmedTx{Account: account, TxID: txID, ValueDelta: valueDelta, SeenAt: seenAt}
}

// Forget drops a transaction once it confirms (the Synchronizer's main
// pipeline will have already written its confirmed Note/UTXO rows) or
// expires from the server's mempool.
func (m *MempoolSubmode) Forget(txID types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, txID)
}

// Has reports whether txID is currently tracked as unconfirmed.
func (m *MempoolSubmode) Has(txID types.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[txID]
	return ok
}

// ForAccount returns every unconfirmed transaction tracked for account.
func (m *MempoolSubmode) ForAccount(account uint32) []*types.UnconfirmedTx {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.UnconfirmedTx
	for _, tx := range m.txs {
		if tx.Account == account {
			out = append(out, tx)
		}
	}
	return out
}

// Size returns the number of tracked unconfirmed transactions.
func (m *MempoolSubmode) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
