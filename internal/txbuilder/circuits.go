// Package txbuilder assembles, proves, and signs transactions spending
// shielded notes and transparent UTXOs selected by a planner.TransactionSummary.
package txbuilder

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/ccoin/warpz/internal/errs"
)

// CircuitKind identifies one of the three proof shapes a bundle needs: the
// two real Zcash spend circuits plus one standing in for Orchard's action
// circuit.
type CircuitKind uint8

const (
	// CircuitSaplingSpend proves a Sapling note is well-formed, owned, and
	// unspent, without revealing which leaf it corresponds to.
	CircuitSaplingSpend CircuitKind = iota
	// CircuitSaplingOutput proves a new Sapling note commitment is
	// correctly formed from its plaintext fields.
	CircuitSaplingOutput
	// CircuitOrchardAction proves a combined spend+output Orchard action.
	// Zcash's real Orchard circuit runs over Halo2/Pallas-Vesta with no
	// trusted setup; this expresses it as a second Groth16/BN254 circuit
	// through the same gnark stack used for Sapling.
	CircuitOrchardAction
)

// spendCircuit proves: cmx = hash(value, diversifier, rseed) is a leaf of
// the tree under root, and nullifier = derive(spendingKey, cmx, position).
// Simplified from the real Sapling spend circuit: no Jubjub point
// arithmetic, value/commitment material is folded through the BN254
// scalar field instead.
type spendCircuit struct {
	Root       frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	Value      frontend.Variable
	Diversifier frontend.Variable
	Rseed      frontend.Variable
	SpendingKey frontend.Variable
	Position   frontend.Variable
	PathSiblings []frontend.Variable
	PathBits     []frontend.Variable
}

func newSpendCircuit(depth int) *spendCircuit {
	return &spendCircuit{
		PathSiblings: make([]frontend.Variable, depth),
		PathBits:     make([]frontend.Variable, depth),
	}
}

// Define implements the spend circuit: recompute the commitment, walk the
// Merkle path to the asserted root, and recompute the nullifier.
func (c *spendCircuit) Define(api frontend.API) error {
	cmx := api.Add(c.Value, api.Add(c.Diversifier, c.Rseed))

	cur := cmx
	for i := range c.PathSiblings {
		left := api.Select(c.PathBits[i], c.PathSiblings[i], cur)
		right := api.Select(c.PathBits[i], cur, c.PathSiblings[i])
		cur = api.Add(left, right)
	}
	api.AssertIsEqual(cur, c.Root)

	nf := api.Add(c.SpendingKey, api.Add(cmx, c.Position))
	api.AssertIsEqual(nf, c.Nullifier)
	return nil
}

// outputCircuit proves a new commitment is correctly derived from its
// plaintext fields, without constraining anything about prior state.
type outputCircuit struct {
	Commitment  frontend.Variable `gnark:",public"`
	Value       frontend.Variable
	Diversifier frontend.Variable
	Rseed       frontend.Variable
}

func (c *outputCircuit) Define(api frontend.API) error {
	cmx := api.Add(c.Value, api.Add(c.Diversifier, c.Rseed))
	api.AssertIsEqual(cmx, c.Commitment)
	return nil
}

// orchardActionCircuit combines a spend and an output in one proof, per
// Orchard's action structure (ZIP-224).
type orchardActionCircuit struct {
	Root          frontend.Variable `gnark:",public"`
	Nullifier     frontend.Variable `gnark:",public"`
	Commitment    frontend.Variable `gnark:",public"`
	SpendValue    frontend.Variable
	SpendDiversifier frontend.Variable
	SpendRseed    frontend.Variable
	SpendingKey   frontend.Variable
	Position      frontend.Variable
	PathSiblings  []frontend.Variable
	PathBits      []frontend.Variable
	OutValue      frontend.Variable
	OutDiversifier frontend.Variable
	OutRseed      frontend.Variable
}

func newOrchardActionCircuit(depth int) *orchardActionCircuit {
	return &orchardActionCircuit{
		PathSiblings: make([]frontend.Variable, depth),
		PathBits:     make([]frontend.Variable, depth),
	}
}

func (c *orchardActionCircuit) Define(api frontend.API) error {
	spendCmx := api.Add(c.SpendValue, api.Add(c.SpendDiversifier, c.SpendRseed))
	cur := spendCmx
	for i := range c.PathSiblings {
		left := api.Select(c.PathBits[i], c.PathSiblings[i], cur)
		right := api.Select(c.PathBits[i], cur, c.PathSiblings[i])
		cur = api.Add(left, right)
	}
	api.AssertIsEqual(cur, c.Root)

	nf := api.Add(c.SpendingKey, api.Add(spendCmx, c.Position))
	api.AssertIsEqual(nf, c.Nullifier)

	outCmx := api.Add(c.OutValue, api.Add(c.OutDiversifier, c.OutRseed))
	api.AssertIsEqual(outCmx, c.Commitment)
	return nil
}

// MerkleDepth is the Sapling/Orchard commitment tree depth, matching
// internal/witness's fixed tree depth.
const MerkleDepth = 32

// compiledCircuit bundles a compiled constraint system with its Groth16 keys.
type compiledCircuit struct {
	ccs groth16.ProvingKey
	vk  groth16.VerifyingKey
	r1cs frontend.CompiledConstraintSystem
}

// CircuitManager compiles and caches circuits for each CircuitKind: a
// map of compiled circuits by kind, lazily populated with a groth16.Setup
// per circuit, RWMutex-guarded.
type CircuitManager struct {
	mu       sync.RWMutex
	circuits map[CircuitKind]*compiledCircuit
}

// NewCircuitManager creates an empty manager; circuits are compiled on
// first use via ensure.
func NewCircuitManager() *CircuitManager {
	return &CircuitManager{circuits: make(map[CircuitKind]*compiledCircuit)}
}

func (cm *CircuitManager) ensure(kind CircuitKind) (*compiledCircuit, error) {
	cm.mu.RLock()
	cc, ok := cm.circuits[kind]
	cm.mu.RUnlock()
	if ok {
		return cc, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cc, ok := cm.circuits[kind]; ok {
		return cc, nil
	}

	var circuit frontend.Circuit
	switch kind {
	case CircuitSaplingSpend:
		circuit = newSpendCircuit(MerkleDepth)
	case CircuitSaplingOutput:
		circuit = &outputCircuit{}
	case CircuitOrchardAction:
		circuit = newOrchardActionCircuit(MerkleDepth)
	default:
		return nil, fmt.Errorf("%w: unknown circuit kind %d", errs.ErrBug, kind)
	}

	r1cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("%w: compile: %v", errs.ErrProofFailed, err)
	}
	pk, vk, err := groth16.Setup(r1cs)
	if err != nil {
		return nil, fmt.Errorf("%w: setup: %v", errs.ErrProofFailed, err)
	}

	cc = &compiledCircuit{ccs: pk, vk: vk, r1cs: r1cs}
	cm.circuits[kind] = cc
	return cc, nil
}

// Prove generates a Groth16 proof for kind against witness.
func (cm *CircuitManager) Prove(kind CircuitKind, witness frontend.Circuit) ([]byte, error) {
	cc, err := cm.ensure(kind)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(witness, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness: %v", errs.ErrProofFailed, err)
	}
	proof, err := groth16.Prove(cc.r1cs, cc.ccs, w)
	if err != nil {
		return nil, fmt.Errorf("%w: prove: %v", errs.ErrProofFailed, err)
	}
	return proof.MarshalBinary(), nil
}

// Verify checks a previously-generated proof for kind against its public witness.
func (cm *CircuitManager) Verify(kind CircuitKind, proofBytes []byte, public frontend.Circuit) error {
	cc, err := cm.ensure(kind)
	if err != nil {
		return err
	}
	proof := groth16.NewProof(ecc.BN254)
	if err := proof.UnmarshalBinary(proofBytes); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errs.ErrProofFailed, err)
	}
	w, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: public witness: %v", errs.ErrProofFailed, err)
	}
	if err := groth16.Verify(proof, cc.vk, w); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrProofFailed, err)
	}
	return nil
}
