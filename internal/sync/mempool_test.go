package sync

import (
	"testing"

	"github.com/ccoin/warpz/pkg/types"
)

func TestMempoolSubmodeObserveAndHas(t *testing.T) {
	m := NewMempoolSubmode()
	txID := types.Hash{0x01}

	if m.Has(txID) {
		t.Fatal("fresh submode should not track any transaction")
	}

	m.Observe(1, txID, 5000, 1700000000)
	if !m.Has(txID) {
		t.Error("Has() should report the observed transaction")
	}
	if m.Size() != 1 {
		t.Errorf("Size() = %d, want 1", m.Size())
	}
}

func TestMempoolSubmodeObserveRefreshesExisting(t *testing.T) {
	m := NewMempoolSubmode()
	txID := types.Hash{0x01}

	m.Observe(1, txID, 100, 1000)
	m.Observe(1, txID, 200, 2000)

	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 (refresh, not duplicate)", m.Size())
	}
	txs := m.ForAccount(1)
	if len(txs) != 1 || txs[0].ValueDelta != 200 {
		t.Errorf("ForAccount() = %+v, want a single entry with ValueDelta 200", txs)
	}
}

func TestMempoolSubmodeForget(t *testing.T) {
	m := NewMempoolSubmode()
	txID := types.Hash{0x02}
	m.Observe(1, txID, 100, 1000)

	m.Forget(txID)
	if m.Has(txID) {
		t.Error("Forget() should remove the transaction")
	}
	if m.Size() != 0 {
		t.Errorf("Size() = %d, want 0", m.Size())
	}
}

func TestMempoolSubmodeForAccountFiltersByAccount(t *testing.T) {
	m := NewMempoolSubmode()
	m.Observe(1, types.Hash{0x01}, 100, 1000)
	m.Observe(2, types.Hash{0x02}, 200, 1000)
	m.Observe(1, types.Hash{0x03}, 300, 1000)

	txs := m.ForAccount(1)
	if len(txs) != 2 {
		t.Fatalf("ForAccount(1) returned %d entries, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.Account != 1 {
			t.Errorf("ForAccount(1) returned entry for account %d", tx.Account)
		}
	}
}
