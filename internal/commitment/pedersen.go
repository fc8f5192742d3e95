// Package commitment implements Pedersen value commitments over BN254,
// used for the per-pool value-balance check TxBuilder runs before
// assembling a transaction: sum(inputs) = sum(outputs) + fee per pool.
package commitment

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Errors returned by this package.
var (
	ErrInvalidValue   = errors.New("commitment: invalid value")
	ErrInvalidBlinder = errors.New("commitment: invalid blinder")
)

var (
	generatorG bn254.G1Affine
	generatorH bn254.G1Affine
	initialized bool
)

// initGenerators sets up the commitment generators once, lazily.
func initGenerators() error {
	if initialized {
		return nil
	}
	_, _, g1Gen, _ := bn254.Generators()
	generatorG = g1Gen

	hSeed := domainSeed("WARPZ_PEDERSEN_H")
	generatorH.ScalarMultiplication(&generatorG, new(big.Int).SetBytes(hSeed))

	initialized = true
	return nil
}

// Commitment is a Pedersen commitment C = value*G + blinder*H.
type Commitment struct {
	Point bn254.G1Affine
}

// New creates a commitment to value using blinder.
func New(value, blinder *big.Int) (*Commitment, error) {
	if err := initGenerators(); err != nil {
		return nil, err
	}
	if value == nil || blinder == nil {
		return nil, ErrInvalidValue
	}

	var valueG bn254.G1Affine
	valueG.ScalarMultiplication(&generatorG, value)

	var blinderH bn254.G1Affine
	blinderH.ScalarMultiplication(&generatorH, blinder)

	var out bn254.G1Affine
	out.Add(&valueG, &blinderH)
	return &Commitment{Point: out}, nil
}

// NewRandom creates a commitment to value with a freshly generated blinder,
// returning the blinder so the caller can retain it for later value-balance
// proofs.
func NewRandom(value *big.Int) (*Commitment, *big.Int, error) {
	blinder, err := RandomScalar()
	if err != nil {
		return nil, nil, err
	}
	c, err := New(value, blinder)
	if err != nil {
		return nil, nil, err
	}
	return c, blinder, nil
}

// Verify reports whether the commitment opens to value/blinder.
func (c *Commitment) Verify(value, blinder *big.Int) bool {
	expected, err := New(value, blinder)
	if err != nil {
		return false
	}
	return c.Point.Equal(&expected.Point)
}

// Add combines two commitments homomorphically.
func (c *Commitment) Add(other *Commitment) *Commitment {
	var out bn254.G1Affine
	out.Add(&c.Point, &other.Point)
	return &Commitment{Point: out}
}

// Sub subtracts other from c homomorphically.
func (c *Commitment) Sub(other *Commitment) *Commitment {
	var neg bn254.G1Affine
	neg.Neg(&other.Point)
	var out bn254.G1Affine
	out.Add(&c.Point, &neg)
	return &Commitment{Point: out}
}

// Bytes returns the uncompressed point encoding.
func (c *Commitment) Bytes() []byte {
	return c.Point.Marshal()
}

// FromBytes reconstructs a commitment from its Bytes encoding.
func (c *Commitment) FromBytes(data []byte) error {
	return c.Point.Unmarshal(data)
}

// RandomScalar returns a uniformly random scalar in the BN254 scalar field.
func RandomScalar() (*big.Int, error) {
	var s fr.Element
	if _, err := s.SetRandom(); err != nil {
		return nil, err
	}
	return s.BigInt(new(big.Int)), nil
}

// RandomBytes returns n cryptographically random bytes, used for Sapling/
// Orchard rseed generation alongside blinder material.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func domainSeed(label string) []byte {
	out := make([]byte, 32)
	data := []byte(label)
	for i := range out {
		if i < len(data) {
			out[i] = data[i] ^ byte(i*17)
		} else {
			out[i] = byte(i * 31)
		}
	}
	return out
}

// PoolBalance checks per-pool value conservation: sum(inputs) must equal
// sum(outputs) plus a plaintext fee commitment (fee carries no blinder,
// since ZIP-317 fees are public). Used by TxBuilder.Build before it asks
// the circuit manager for a proof, so an unbalanced plan never reaches the
// expensive Groth16 path.
func PoolBalance(inputs, outputs []*Commitment, fee uint64) (bool, error) {
	if err := initGenerators(); err != nil {
		return false, err
	}

	var inSum bn254.G1Affine
	inSum.SetInfinity()
	for _, c := range inputs {
		inSum.Add(&inSum, &c.Point)
	}

	var outSum bn254.G1Affine
	outSum.SetInfinity()
	for _, c := range outputs {
		outSum.Add(&outSum, &c.Point)
	}

	var feePoint bn254.G1Affine
	feePoint.ScalarMultiplication(&generatorG, new(big.Int).SetUint64(fee))
	outSum.Add(&outSum, &feePoint)

	return inSum.Equal(&outSum), nil
}
