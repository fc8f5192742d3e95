// Package decrypt trial-decrypts Sapling outputs and Orchard actions
// against a set of viewing keys, fanning the work out over a bounded
// worker pool in a sync.WaitGroup-plus-buffered-channel shape: the
// parallel note-recovery pipeline a light wallet runs on every block.
package decrypt

import (
	"context"
	"sync"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// ViewingKeySet is the decryption material for one account, scoped to the
// pools it can view.
type ViewingKeySet struct {
	Account    uint64
	SaplingIVK []byte // 32-byte incoming viewing key
	OrchardFVK []byte // full viewing key; OVK/IVK derived internally
}

// Match is a successfully trial-decrypted output, ready for the
// Synchronizer to turn into a Note.
type Match struct {
	Account     uint64
	Pool        types.Pool
	TxIndex     int
	OutputIndex int
	Value       uint64
	Diversifier []byte
	Rseed       types.Hash
	Memo        []byte // nil until FetchMemo is called, per the lazy memo-tail edge case
	Cmx         types.Hash
}

// Job is one compact output or action to attempt against every key.
type Job struct {
	Pool            types.Pool
	TxIndex         int
	OutputIndex     int
	Cmx             types.Hash
	EphemeralKey    []byte
	Ciphertext      []byte
}

// Config bounds the worker pool width.
type Config struct {
	Workers int
}

// DefaultConfig matches a conservative default for a light-client process.
func DefaultConfig() *Config {
	return &Config{Workers: 8}
}

// Decryptor runs trial decryption jobs against a fixed set of viewing keys.
type Decryptor struct {
	keys   []ViewingKeySet
	cfg    *Config
	mu     sync.RWMutex
}

// NewDecryptor creates a Decryptor over keys, using cfg (or DefaultConfig
// if nil).
func NewDecryptor(keys []ViewingKeySet, cfg *Config) *Decryptor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Decryptor{keys: keys, cfg: cfg}
}

// SetKeys replaces the active viewing key set, e.g. after an account is
// added mid-session.
func (d *Decryptor) SetKeys(keys []ViewingKeySet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = keys
}

// TrialDecrypt fans jobs out across a bounded worker pool and returns every
// match, preserving the order jobs were submitted in (tests rely on this
// for deterministic fixtures) even though workers run concurrently.
func (d *Decryptor) TrialDecrypt(ctx context.Context, jobs []Job) ([]Match, error) {
	d.mu.RLock()
	keys := d.keys
	d.mu.RUnlock()

	results := make([][]Match, len(jobs))
	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	workers := d.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				select {
				case <-ctx.Done():
					errMu.Lock()
					if firstErr == nil {
						firstErr = errs.ErrCanceled
					}
					errMu.Unlock()
					return
				default:
				}

				job := jobs[idx]
				results[idx] = tryJob(job, keys)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var matches []Match
	for _, r := range results {
		matches = append(matches, r...)
	}
	return matches, nil
}

func tryJob(job Job, keys []ViewingKeySet) []Match {
	switch job.Pool {
	case types.PoolSapling:
		return trySapling(job, keys)
	case types.PoolOrchard:
		return tryOrchard(job, keys)
	default:
		return nil
	}
}

// trySapling attempts ChaCha20-Poly1305 decryption of job's ciphertext
// under every account's Sapling IVK-derived symmetric key, since a single
// output can be decryptable under more than one account's key at once
// (cross-account funding) and every matching account must get its own Note.
func trySapling(job Job, keys []ViewingKeySet) []Match {
	var matches []Match
	for _, k := range keys {
		if len(k.SaplingIVK) == 0 {
			continue
		}
		symKey := saplingSymmetricKey(k.SaplingIVK, job.EphemeralKey)
		aead, err := chacha20poly1305.New(symKey)
		if err != nil {
			continue
		}
		plain, err := openCompact(aead, job.Ciphertext)
		if err != nil {
			continue
		}
		note, ok := parseSaplingPlaintext(plain)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Account:     k.Account,
			Pool:        types.PoolSapling,
			TxIndex:     job.TxIndex,
			OutputIndex: job.OutputIndex,
			Value:       note.value,
			Diversifier: note.diversifier,
			Rseed:       note.rseed,
			Cmx:         job.Cmx,
		})
	}
	return matches
}

// tryOrchard mirrors trySapling with a blake2b-based KDF standing in for
// Orchard's Sinsemilla-derived key agreement, and the same every-matching-
// account fan-out for cross-account funding.
func tryOrchard(job Job, keys []ViewingKeySet) []Match {
	var matches []Match
	for _, k := range keys {
		if len(k.OrchardFVK) == 0 {
			continue
		}
		symKey := orchardSymmetricKey(k.OrchardFVK, job.EphemeralKey)
		aead, err := chacha20poly1305.New(symKey)
		if err != nil {
			continue
		}
		plain, err := openCompact(aead, job.Ciphertext)
		if err != nil {
			continue
		}
		note, ok := parseSaplingPlaintext(plain)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Account:     k.Account,
			Pool:        types.PoolOrchard,
			TxIndex:     job.TxIndex,
			OutputIndex: job.OutputIndex,
			Value:       note.value,
			Diversifier: note.diversifier,
			Rseed:       note.rseed,
			Cmx:         job.Cmx,
		})
	}
	return matches
}

func saplingSymmetricKey(ivk, ephemeralKey []byte) []byte {
	h, _ := blake2b.New256([]byte("WARPZ_SAPLING_KDF"))
	h.Write(ivk)
	h.Write(ephemeralKey)
	return h.Sum(nil)[:chacha20poly1305.KeySize]
}

func orchardSymmetricKey(fvk, ephemeralKey []byte) []byte {
	h, _ := blake2b.New256([]byte("WARPZ_ORCHARD_KDF"))
	h.Write(fvk)
	h.Write(ephemeralKey)
	return h.Sum(nil)[:chacha20poly1305.KeySize]
}

// openCompact decrypts a compact-output ciphertext: the nonce is fixed to
// all-zero per output, since the ephemeral key already guarantees key
// uniqueness, matching the compact-block format's fixed-nonce convention.
func openCompact(aead interface{ Open([]byte, []byte, []byte, []byte) ([]byte, error) }, ciphertext []byte) ([]byte, error) {
	var nonce [chacha20poly1305.NonceSize]byte
	return aead.Open(nil, nonce[:], ciphertext, nil)
}

type saplingNotePlaintext struct {
	value       uint64
	diversifier []byte
	rseed       types.Hash
}

// parseSaplingPlaintext decodes the fixed-layout note plaintext: 1 leading
// version byte, 11-byte diversifier, 8-byte little-endian value, 32-byte
// rseed, memo tail (fetched lazily, see FetchMemo).
func parseSaplingPlaintext(plain []byte) (saplingNotePlaintext, bool) {
	const headerLen = 1 + 11 + 8 + 32
	if len(plain) < headerLen {
		return saplingNotePlaintext{}, false
	}
	diversifier := append([]byte(nil), plain[1:12]...)
	value := uint64(0)
	for i := 0; i < 8; i++ {
		value |= uint64(plain[12+i]) << (8 * i)
	}
	var rseed types.Hash
	copy(rseed[:], plain[20:52])
	return saplingNotePlaintext{value: value, diversifier: diversifier, rseed: rseed}, true
}

// FetchMemo lazily decrypts the 512-byte memo tail for a match that the
// caller has decided to display, keeping the hot sync path from paying for
// memo decryption on notes the user never views.
func FetchMemo(m *Match, fullCiphertext []byte, keys []ViewingKeySet) error {
	for _, k := range keys {
		if k.Account != m.Account {
			continue
		}
		var symKey []byte
		switch m.Pool {
		case types.PoolSapling:
			symKey = saplingSymmetricKey(k.SaplingIVK, nil)
		case types.PoolOrchard:
			symKey = orchardSymmetricKey(k.OrchardFVK, nil)
		default:
			return errs.ErrBug
		}
		aead, err := chacha20poly1305.New(symKey)
		if err != nil {
			return err
		}
		plain, err := openCompact(aead, fullCiphertext)
		if err != nil {
			return errs.ErrDecryptionFailed
		}
		const headerLen = 1 + 11 + 8 + 32
		if len(plain) < headerLen+512 {
			return errs.ErrDecryptionFailed
		}
		m.Memo = plain[headerLen : headerLen+512]
		return nil
	}
	return errs.ErrNotFound
}
