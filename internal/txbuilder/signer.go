package txbuilder

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/ccoin/warpz/internal/errs"
)

// Signer produces the signatures a bundle needs once its proofs exist:
// transparent ECDSA over secp256k1, and Sapling/Orchard spend-authorizing
// and binding signatures. Zcash's real spend-authorizing signatures are
// RedJubjub (Schnorr over Jubjub); this uses ed25519 as the nearest
// available Schnorr-family signature scheme in place of it.
type Signer struct{}

// NewSigner creates a Signer. Stateless: all key material is passed per call.
func NewSigner() *Signer { return &Signer{} }

// SignTransparent produces a DER-encoded secp256k1 ECDSA signature over sighash.
func (s *Signer) SignTransparent(privKey []byte, sighash [32]byte) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(privKey)
	defer priv.Zero()
	sig := ecdsa.Sign(priv, sighash[:])
	return sig.Serialize(), nil
}

// VerifyTransparent checks a transparent signature against a public key.
func (s *Signer) VerifyTransparent(pubKey []byte, sighash [32]byte, sig []byte) (bool, error) {
	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errs.ErrSignatureFailed, err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errs.ErrSignatureFailed, err)
	}
	return parsed.Verify(sighash[:], pk), nil
}

// SpendAuthKeyPair generates a fresh spend-authorizing keypair for a
// shielded pool, standing in for RedJubjub key generation.
func SpendAuthKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrSignatureFailed, err)
	}
	return pub, priv, nil
}

// SignSpendAuth produces a shielded spend-authorizing signature over sighash.
func (s *Signer) SignSpendAuth(spendAuthKey ed25519.PrivateKey, sighash [32]byte) []byte {
	return ed25519.Sign(spendAuthKey, sighash[:])
}

// VerifySpendAuth checks a shielded spend-authorizing signature.
func (s *Signer) VerifySpendAuth(spendAuthPub ed25519.PublicKey, sighash [32]byte, sig []byte) bool {
	return ed25519.Verify(spendAuthPub, sighash[:], sig)
}

// SignBinding produces the binding signature over sighash for a pool with
// the given ed25519 key. TxBuilder derives that key from the pool's
// spending key material (bindingKeyFor), not from the value commitments'
// blinding factors, so the signature does not attest to value balance.
func (s *Signer) SignBinding(bindingKey ed25519.PrivateKey, sighash [32]byte) []byte {
	return ed25519.Sign(bindingKey, sighash[:])
}

// VerifyBinding checks a pool's binding signature.
func (s *Signer) VerifyBinding(bindingPub ed25519.PublicKey, sighash [32]byte, sig []byte) bool {
	return ed25519.Verify(bindingPub, sighash[:], sig)
}
