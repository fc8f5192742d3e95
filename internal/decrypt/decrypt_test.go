package decrypt

import (
	"context"
	"testing"

	"github.com/ccoin/warpz/pkg/types"
	"golang.org/x/crypto/chacha20poly1305"
)

// sealNotePlaintext builds a valid encrypted compact output for the given
// symmetric key, matching parseSaplingPlaintext's fixed layout (1 version
// byte, 11-byte diversifier, 8-byte little-endian value, 32-byte rseed).
func sealNotePlaintext(t *testing.T, symKey []byte, value uint64, diversifier []byte, rseed types.Hash) []byte {
	t.Helper()
	plain := make([]byte, 1+11+8+32)
	copy(plain[1:12], diversifier)
	for i := 0; i < 8; i++ {
		plain[12+i] = byte(value >> (8 * i))
	}
	copy(plain[20:52], rseed[:])

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		t.Fatalf("chacha20poly1305.New() error = %v", err)
	}
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Seal(nil, nonce[:], plain, nil)
}

func TestTrialDecryptMatchesSaplingOutput(t *testing.T) {
	ivk := []byte("sapling-incoming-viewing-key-32")
	ephemeral := []byte("ephemeral-key")
	symKey := saplingSymmetricKey(ivk, ephemeral)

	diversifier := []byte("diversifier")
	var rseed types.Hash
	rseed[0] = 0x42
	ciphertext := sealNotePlaintext(t, symKey, 50000, diversifier, rseed)

	d := NewDecryptor([]ViewingKeySet{{Account: 1, SaplingIVK: ivk}}, nil)
	jobs := []Job{{
		Pool:         types.PoolSapling,
		TxIndex:      0,
		OutputIndex:  0,
		Cmx:          types.Hash{0x01},
		EphemeralKey: ephemeral,
		Ciphertext:   ciphertext,
	}}

	matches, err := d.TrialDecrypt(context.Background(), jobs)
	if err != nil {
		t.Fatalf("TrialDecrypt() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Account != 1 || m.Pool != types.PoolSapling || m.Value != 50000 {
		t.Errorf("match = %+v, want account 1, sapling pool, value 50000", m)
	}
}

func TestTrialDecryptFansOutCrossAccountMatch(t *testing.T) {
	ivk := []byte("sapling-incoming-viewing-key-32")
	ephemeral := []byte("ephemeral-key")
	symKey := saplingSymmetricKey(ivk, ephemeral)

	diversifier := []byte("diversifier")
	var rseed types.Hash
	rseed[0] = 0x7

	// Two accounts happen to share the same viewing key material, so an
	// output funding that address decrypts under both: cross-account
	// funding. Both accounts must get their own Match for the output.
	ciphertext := sealNotePlaintext(t, symKey, 25000, diversifier, rseed)
	d := NewDecryptor([]ViewingKeySet{
		{Account: 1, SaplingIVK: ivk},
		{Account: 2, SaplingIVK: ivk},
	}, nil)
	jobs := []Job{{
		Pool:         types.PoolSapling,
		TxIndex:      0,
		OutputIndex:  0,
		Cmx:          types.Hash{0x01},
		EphemeralKey: ephemeral,
		Ciphertext:   ciphertext,
	}}

	matches, err := d.TrialDecrypt(context.Background(), jobs)
	if err != nil {
		t.Fatalf("TrialDecrypt() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (one per matching account)", len(matches))
	}
	seen := map[uint64]bool{}
	for _, m := range matches {
		seen[m.Account] = true
		if m.Value != 25000 || m.Pool != types.PoolSapling {
			t.Errorf("match = %+v, want value 25000, sapling pool", m)
		}
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("matches = %+v, want one for account 1 and one for account 2", matches)
	}
}

func TestTrialDecryptSkipsNonMatchingJobs(t *testing.T) {
	d := NewDecryptor([]ViewingKeySet{{Account: 1, SaplingIVK: []byte("some-ivk-material-000000000000")}}, nil)
	jobs := []Job{
		{Pool: types.PoolSapling, Cmx: types.Hash{0x01}, EphemeralKey: []byte("e1"), Ciphertext: []byte("not valid ciphertext at all!!!!")},
		{Pool: types.PoolOrchard, Cmx: types.Hash{0x02}, EphemeralKey: []byte("e2"), Ciphertext: []byte("also not valid ciphertext data!")},
	}

	matches, err := d.TrialDecrypt(context.Background(), jobs)
	if err != nil {
		t.Fatalf("TrialDecrypt() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("got %d matches, want 0 for undecryptable jobs", len(matches))
	}
}

func TestTrialDecryptPreservesJobOrder(t *testing.T) {
	ivk := []byte("sapling-incoming-viewing-key-32")
	d := NewDecryptor([]ViewingKeySet{{Account: 1, SaplingIVK: ivk}}, &Config{Workers: 4})

	var jobs []Job
	for i := 0; i < 10; i++ {
		ephemeral := []byte{byte(i)}
		symKey := saplingSymmetricKey(ivk, ephemeral)
		var rseed types.Hash
		rseed[0] = byte(i)
		ciphertext := sealNotePlaintext(t, symKey, uint64(i+1)*1000, []byte("diversifier"), rseed)
		jobs = append(jobs, Job{
			Pool:         types.PoolSapling,
			TxIndex:      i,
			OutputIndex:  0,
			Cmx:          types.Hash{byte(i)},
			EphemeralKey: ephemeral,
			Ciphertext:   ciphertext,
		})
	}

	matches, err := d.TrialDecrypt(context.Background(), jobs)
	if err != nil {
		t.Fatalf("TrialDecrypt() error = %v", err)
	}
	if len(matches) != 10 {
		t.Fatalf("got %d matches, want 10", len(matches))
	}
	for i, m := range matches {
		if m.TxIndex != i {
			t.Fatalf("matches out of order: matches[%d].TxIndex = %d", i, m.TxIndex)
		}
		if m.Value != uint64(i+1)*1000 {
			t.Errorf("matches[%d].Value = %d, want %d", i, m.Value, uint64(i+1)*1000)
		}
	}
}

func TestFetchMemo(t *testing.T) {
	ivk := []byte("sapling-incoming-viewing-key-32")
	symKey := saplingSymmetricKey(ivk, nil)

	plain := make([]byte, 1+11+8+32+512)
	copy(plain[1:12], []byte("diversifier"))
	copy(plain[1+11+8+32:], []byte("hello from the memo field"))

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		t.Fatalf("chacha20poly1305.New() error = %v", err)
	}
	var nonce [chacha20poly1305.NonceSize]byte
	full := aead.Seal(nil, nonce[:], plain, nil)

	m := &Match{Account: 7, Pool: types.PoolSapling}
	keys := []ViewingKeySet{{Account: 7, SaplingIVK: ivk}}

	if err := FetchMemo(m, full, keys); err != nil {
		t.Fatalf("FetchMemo() error = %v", err)
	}
	if len(m.Memo) != 512 {
		t.Fatalf("len(Memo) = %d, want 512", len(m.Memo))
	}
	if string(m.Memo[:25]) != "hello from the memo field" {
		t.Errorf("Memo = %q", m.Memo[:25])
	}
}

func TestSetKeysReplacesActiveKeys(t *testing.T) {
	d := NewDecryptor(nil, nil)
	ivk := []byte("sapling-incoming-viewing-key-32")
	d.SetKeys([]ViewingKeySet{{Account: 3, SaplingIVK: ivk}})

	symKey := saplingSymmetricKey(ivk, []byte("e"))
	var rseed types.Hash
	ciphertext := sealNotePlaintext(t, symKey, 100, []byte("diversifier"), rseed)

	matches, err := d.TrialDecrypt(context.Background(), []Job{{
		Pool: types.PoolSapling, EphemeralKey: []byte("e"), Ciphertext: ciphertext,
	}})
	if err != nil {
		t.Fatalf("TrialDecrypt() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Account != 3 {
		t.Fatalf("matches = %+v, want a single match for account 3", matches)
	}
}
