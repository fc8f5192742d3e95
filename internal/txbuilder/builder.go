package txbuilder

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/ccoin/warpz/internal/commitment"
	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/internal/nullifier"
	"github.com/ccoin/warpz/internal/witness"
	"github.com/ccoin/warpz/pkg/common"
	"github.com/ccoin/warpz/pkg/types"
)

// NoteSource resolves the concrete note/UTXO material a TransactionSummary
// references by id; auth paths come from WitnessSource. Implemented by
// internal/storage's PostgresStore.
type NoteSource interface {
	Note(ctx context.Context, pool types.Pool, id uint64) (*types.Note, error)
	UTXO(ctx context.Context, id uint64) (*types.UTXO, error)
}

// WitnessSource is the slice of witness.Engine the builder needs.
type WitnessSource interface {
	AuthPath(ctx context.Context, pool types.Pool, position uint64, height uint32) (*witness.MerklePath, error)
}

// SignedTransaction is the builder's output: raw bytes ready to broadcast,
// plus the input refs so the caller can mark them locally-spent.
type SignedTransaction struct {
	Raw          []byte
	SpentInputs  []types.NoteRef
	Fee          uint64
	AnchorHeight uint32
}

// bundleInput is one resolved, auth-pathed spend.
type bundleInput struct {
	ref        types.NoteRef
	note       *types.Note // nil for transparent
	utxo       *types.UTXO // nil for shielded
	path       *witness.MerklePath
	commitment *commitment.Commitment
	blinder    *big.Int
}

// TxBuilder assembles, proves, and signs a bundle from a planner.TransactionSummary:
// resolve inputs, check value conservation, generate proofs, sign every leg,
// and serialize, across transparent, Sapling, and Orchard inputs/outputs in
// one bundle.
type TxBuilder struct {
	notes    NoteSource
	wit      WitnessSource
	circuits *CircuitManager
	signer   *Signer
}

// New creates a TxBuilder over the given note source, witness engine, and
// circuit manager. A nil circuits creates a fresh, empty CircuitManager
// (circuits compile lazily on first use).
func New(notes NoteSource, wit WitnessSource, circuits *CircuitManager) *TxBuilder {
	if circuits == nil {
		circuits = NewCircuitManager()
	}
	return &TxBuilder{notes: notes, wit: wit, circuits: circuits, signer: NewSigner()}
}

// CanSign reports whether account holds the spending capability for every
// pool the summary's inputs touch.
func CanSign(account *types.Account, summary *types.TransactionSummary) bool {
	touched := make(map[types.Pool]bool)
	for _, in := range summary.Inputs {
		touched[in.Pool] = true
	}
	for pool := range touched {
		if !account.CanSpend(pool) {
			return false
		}
	}
	return true
}

// Build resolves inputs and auth paths at summary.AnchorHeight, checks
// value conservation, generates the Sapling and Orchard proofs, signs
// every leg, and emits the final transaction bytes.
func (b *TxBuilder) Build(ctx context.Context, account *types.Account, summary *types.TransactionSummary) (*SignedTransaction, error) {
	if !CanSign(account, summary) {
		return nil, errs.ErrWrongCapabilities
	}

	inputs, err := b.resolveInputs(ctx, summary)
	if err != nil {
		return nil, err
	}

	inputCommits := make([]*commitment.Commitment, 0, len(inputs))
	for _, in := range inputs {
		if in.commitment != nil {
			inputCommits = append(inputCommits, in.commitment)
		}
	}

	outputCommits := make([]*commitment.Commitment, 0, len(summary.Outputs))
	outputBlinders := make([]*big.Int, len(summary.Outputs))
	for i, out := range summary.Outputs {
		if out.Pool == types.PoolTransparent {
			continue
		}
		c, blinder, err := commitment.NewRandom(new(big.Int).SetUint64(out.Value))
		if err != nil {
			return nil, fmt.Errorf("%w: output commitment: %v", errs.ErrProofFailed, err)
		}
		outputCommits = append(outputCommits, c)
		outputBlinders[i] = blinder
	}

	if ok, err := commitment.PoolBalance(inputCommits, outputCommits, summary.Fee); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProofFailed, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: value does not conserve across shielded pools", errs.ErrProofFailed)
	}

	sighash := computeSighash(summary)

	proofs, err := b.generateProofs(account, inputs, summary, outputBlinders, sighash)
	if err != nil {
		return nil, err
	}

	sigs, err := b.signBundle(account, inputs, sighash)
	if err != nil {
		return nil, err
	}

	raw := serializeBundle(summary, proofs, sigs)

	spent := make([]types.NoteRef, len(inputs))
	for i, in := range inputs {
		spent[i] = in.ref
	}

	return &SignedTransaction{
		Raw:          raw,
		SpentInputs:  spent,
		Fee:          summary.Fee,
		AnchorHeight: summary.AnchorHeight,
	}, nil
}

func (b *TxBuilder) resolveInputs(ctx context.Context, summary *types.TransactionSummary) ([]bundleInput, error) {
	out := make([]bundleInput, 0, len(summary.Inputs))
	for _, ref := range summary.Inputs {
		bi := bundleInput{ref: ref}
		if ref.Pool == types.PoolTransparent {
			utxo, err := b.notes.UTXO(ctx, ref.NoteID)
			if err != nil {
				return nil, fmt.Errorf("%w: transparent input %d: %v", errs.ErrStaleSummary, ref.NoteID, err)
			}
			bi.utxo = utxo
		} else {
			note, err := b.notes.Note(ctx, ref.Pool, ref.NoteID)
			if err != nil {
				return nil, fmt.Errorf("%w: shielded input %d: %v", errs.ErrStaleSummary, ref.NoteID, err)
			}
			path, err := b.wit.AuthPath(ctx, ref.Pool, note.Position, summary.AnchorHeight)
			if err != nil {
				return nil, fmt.Errorf("%w: auth path for input %d: %v", errs.ErrStaleSummary, ref.NoteID, err)
			}
			value := new(big.Int).SetUint64(note.Value)
			blinder := new(big.Int).SetBytes(note.Rseed)
			c, err := commitment.New(value, blinder)
			if err != nil {
				return nil, fmt.Errorf("%w: input commitment: %v", errs.ErrProofFailed, err)
			}
			bi.note = note
			bi.path = path
			bi.commitment = c
			bi.blinder = blinder
		}
		out = append(out, bi)
	}
	return out, nil
}

// generateProofs produces one proof per shielded input (the Sapling spend
// circuit, or the Orchard action circuit for an Orchard note) and one per
// shielded output (the Sapling output circuit, whichever pool the output is
// in). Inputs and outputs are never combined into a single proof.
func (b *TxBuilder) generateProofs(account *types.Account, inputs []bundleInput, summary *types.TransactionSummary, outputBlinders []*big.Int, sighash [32]byte) ([][]byte, error) {
	var proofs [][]byte
	for _, in := range inputs {
		if in.note == nil {
			continue
		}
		kind := CircuitSaplingSpend
		if in.note.Pool == types.PoolOrchard {
			kind = CircuitOrchardAction
		}
		w := spendWitness(account, in, summary)
		proof, err := b.circuits.Prove(kind, w)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	for i, out := range summary.Outputs {
		if out.Pool == types.PoolTransparent {
			continue
		}
		w := &outputCircuit{
			Commitment:  sighash[:8],
			Value:       out.Value,
			Diversifier: 0,
			Rseed:       outputBlinders[i].Bytes(),
		}
		proof, err := b.circuits.Prove(CircuitSaplingOutput, w)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

func spendWitness(account *types.Account, in bundleInput, summary *types.TransactionSummary) frontend.Circuit {
	siblings := make([]interface{}, len(in.path.Siblings))
	bits := make([]interface{}, len(in.path.PathBits))
	for i, s := range in.path.Siblings {
		siblings[i] = s[:8]
	}
	for i, bit := range in.path.PathBits {
		if bit {
			bits[i] = 1
		} else {
			bits[i] = 0
		}
	}

	var spendKeyMaterial []byte
	if in.note.Pool == types.PoolOrchard {
		spendKeyMaterial = account.Spending.OrchardSK
	} else {
		spendKeyMaterial = account.Spending.SaplingExtSK
	}
	spendingKey := nullifier.DerivationKey(spendKeyMaterial)

	if in.note.Pool == types.PoolOrchard {
		c := newOrchardActionCircuit(len(siblings))
		c.Root = summary.Plan
		c.SpendValue = in.note.Value
		c.SpendDiversifier = in.note.Diversifier
		c.SpendRseed = in.note.Rseed
		c.SpendingKey = spendingKey
		c.Position = in.note.Position
		for i := range siblings {
			c.PathSiblings[i] = siblings[i]
			c.PathBits[i] = bits[i]
		}
		c.Nullifier = in.note.Nullifier[:8]
		c.Commitment = in.note.Cmx[:8]
		c.OutValue = in.note.Value
		c.OutDiversifier = in.note.Diversifier
		c.OutRseed = in.note.Rseed
		return c
	}
	c := newSpendCircuit(len(siblings))
	c.Root = summary.Plan
	c.Nullifier = in.note.Nullifier[:8]
	c.Value = in.note.Value
	c.Diversifier = in.note.Diversifier
	c.Rseed = in.note.Rseed
	c.SpendingKey = spendingKey
	c.Position = in.note.Position
	for i := range siblings {
		c.PathSiblings[i] = siblings[i]
		c.PathBits[i] = bits[i]
	}
	return c
}

func (b *TxBuilder) signBundle(account *types.Account, inputs []bundleInput, sighash [32]byte) ([][]byte, error) {
	var sigs [][]byte
	for _, in := range inputs {
		if in.utxo != nil {
			sk := account.Spending.TransparentSKs[fmt.Sprintf("%x", in.utxo.Address)]
			sig, err := b.signer.SignTransparent(sk, sighash)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
			continue
		}
		key := spendAuthKeyFor(account, in.note.Pool)
		sigs = append(sigs, b.signer.SignSpendAuth(key, sighash))
	}

	for _, pool := range []types.Pool{types.PoolSapling, types.PoolOrchard} {
		if !poolTouched(inputs, pool) {
			continue
		}
		bindingKey := bindingKeyFor(account, pool)
		sigs = append(sigs, b.signer.SignBinding(bindingKey, sighash))
	}
	return sigs, nil
}

func poolTouched(inputs []bundleInput, pool types.Pool) bool {
	for _, in := range inputs {
		if in.note != nil && in.note.Pool == pool {
			return true
		}
	}
	return false
}

// spendAuthKeyFor and bindingKeyFor derive deterministic ed25519 keys from
// the account's pool-specific spending key material, standing in for
// RedJubjub's ask/bsk derivation (see signer.go's doc comment).
func spendAuthKeyFor(account *types.Account, pool types.Pool) ed25519.PrivateKey {
	seed := poolSeed(account, pool, "spendauth")
	return ed25519.NewKeyFromSeed(seed)
}

func bindingKeyFor(account *types.Account, pool types.Pool) ed25519.PrivateKey {
	seed := poolSeed(account, pool, "binding")
	return ed25519.NewKeyFromSeed(seed)
}

func poolSeed(account *types.Account, pool types.Pool, domain string) []byte {
	var material []byte
	switch pool {
	case types.PoolSapling:
		material = account.Spending.SaplingExtSK
	case types.PoolOrchard:
		material = account.Spending.OrchardSK
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(material)
	return h.Sum(nil)
}

func computeSighash(summary *types.TransactionSummary) [32]byte {
	h := sha256.New()
	for _, in := range summary.Inputs {
		h.Write([]byte{byte(in.Pool)})
		binary.Write(h, binary.BigEndian, in.NoteID)
	}
	for _, out := range summary.Outputs {
		h.Write([]byte(out.Address))
		binary.Write(h, binary.BigEndian, out.Value)
	}
	binary.Write(h, binary.BigEndian, summary.Fee)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func serializeBundle(summary *types.TransactionSummary, proofs [][]byte, sigs [][]byte) []byte {
	var buf []byte
	for _, in := range summary.Inputs {
		buf = append(buf, byte(in.Pool))
		buf = append(buf, common.Uint64ToBytes(in.NoteID)...)
	}
	for _, p := range proofs {
		lenBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBytes, uint32(len(p)))
		buf = append(buf, lenBytes...)
		buf = append(buf, p...)
	}
	for _, s := range sigs {
		lenBytes := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBytes, uint32(len(s)))
		buf = append(buf, lenBytes...)
		buf = append(buf, s...)
	}
	return buf
}
