// Package address parses and emits address formats: transparent
// base58check, Sapling/Orchard bech32/bech32m, and Unified Address
// envelopes, plus ZIP-321 payment URIs. Freestanding pure functions,
// package-level sentinel errors, no receiver type holding state.
package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// Human-readable prefixes, mainnet. Grounded on ZIP-173/ZIP-316's HRP table.
const (
	hrpSapling   = "zs"
	hrpOrchard   = "zo" // stand-in HRP: Orchard has no standalone address in real Zcash (always via UA), kept for single-receiver round-tripping in this wallet's internal APIs.
	hrpUnified   = "u"
	p2pkhVersion = 0x1c
	p2shVersion  = 0x1d
)

// Kind identifies an address's encoding family.
type Kind uint8

const (
	KindTransparentP2PKH Kind = iota
	KindTransparentP2SH
	KindSapling
	KindOrchard
	KindUnified
)

// Receiver is one receiver inside a Unified Address.
type Receiver struct {
	Pool    types.Pool
	Payload []byte
}

// Parsed is a fully-decoded address of any kind.
type Parsed struct {
	Kind        Kind
	Transparent types.Address
	Sapling     []byte // diversifier(11) || pk_d(32)
	Orchard     []byte // diversifier(11) || pk_d(32), Orchard encoding
	Receivers   []Receiver
}

// Pools reports which value pools this address can receive funds into.
func (p *Parsed) Pools() []types.Pool {
	switch p.Kind {
	case KindTransparentP2PKH, KindTransparentP2SH:
		return []types.Pool{types.PoolTransparent}
	case KindSapling:
		return []types.Pool{types.PoolSapling}
	case KindOrchard:
		return []types.Pool{types.PoolOrchard}
	case KindUnified:
		out := make([]types.Pool, 0, len(p.Receivers))
		for _, r := range p.Receivers {
			out = append(out, r.Pool)
		}
		return out
	default:
		return nil
	}
}

// Parse decodes any supported address string.
func Parse(s string) (*Parsed, error) {
	if p, err := parseTransparent(s); err == nil {
		return p, nil
	}
	if p, err := parseSapling(s); err == nil {
		return p, nil
	}
	if p, err := parseOrchard(s); err == nil {
		return p, nil
	}
	if p, err := parseUnified(s); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", errs.ErrBadAddress, s)
}

func parseTransparent(s string) (*Parsed, error) {
	decoded, version, err := base58.CheckDecode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadAddress, err)
	}
	if len(decoded) != types.AddressSize {
		return nil, fmt.Errorf("%w: transparent payload wrong size", errs.ErrBadAddress)
	}
	p := &Parsed{Transparent: types.Address(decoded)}
	switch version {
	case p2pkhVersion:
		p.Kind = KindTransparentP2PKH
	case p2shVersion:
		p.Kind = KindTransparentP2SH
	default:
		return nil, fmt.Errorf("%w: unknown transparent version %d", errs.ErrBadAddress, version)
	}
	return p, nil
}

func parseSapling(s string) (*Parsed, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil || hrp != hrpSapling {
		return nil, fmt.Errorf("%w: not a sapling address", errs.ErrBadAddress)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(payload) != 43 {
		return nil, fmt.Errorf("%w: malformed sapling payload", errs.ErrBadAddress)
	}
	return &Parsed{Kind: KindSapling, Sapling: payload}, nil
}

func parseOrchard(s string) (*Parsed, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil || hrp != hrpOrchard {
		return nil, fmt.Errorf("%w: not an orchard address", errs.ErrBadAddress)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(payload) != 43 {
		return nil, fmt.Errorf("%w: malformed orchard payload", errs.ErrBadAddress)
	}
	return &Parsed{Kind: KindOrchard, Orchard: payload}, nil
}

// parseUnified decodes a ZIP-316 style Unified Address: bech32m envelope
// of concatenated (pool-tag byte, length byte, payload) receiver items.
func parseUnified(s string) (*Parsed, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil || hrp != hrpUnified {
		return nil, fmt.Errorf("%w: not a unified address", errs.ErrBadAddress)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed unified payload", errs.ErrBadAddress)
	}

	var receivers []Receiver
	for i := 0; i < len(payload); {
		if i+2 > len(payload) {
			return nil, fmt.Errorf("%w: truncated unified receiver header", errs.ErrBadAddress)
		}
		tag := payload[i]
		length := int(payload[i+1])
		i += 2
		if i+length > len(payload) {
			return nil, fmt.Errorf("%w: truncated unified receiver body", errs.ErrBadAddress)
		}
		pool, err := poolForTag(tag)
		if err != nil {
			return nil, err
		}
		receivers = append(receivers, Receiver{Pool: pool, Payload: payload[i : i+length]})
		i += length
	}
	if len(receivers) == 0 {
		return nil, fmt.Errorf("%w: unified address has no receivers", errs.ErrBadAddress)
	}
	return &Parsed{Kind: KindUnified, Receivers: receivers}, nil
}

func poolForTag(tag byte) (types.Pool, error) {
	switch tag {
	case 0x00:
		return types.PoolTransparent, nil
	case 0x02:
		return types.PoolSapling, nil
	case 0x03:
		return types.PoolOrchard, nil
	default:
		return 0, fmt.Errorf("%w: unknown unified receiver tag %d", errs.ErrBadAddress, tag)
	}
}

func tagForPool(pool types.Pool) byte {
	switch pool {
	case types.PoolTransparent:
		return 0x00
	case types.PoolSapling:
		return 0x02
	case types.PoolOrchard:
		return 0x03
	default:
		return 0xff
	}
}

// EncodeTransparent base58check-encodes a 20-byte transparent payload.
func EncodeTransparent(addr types.Address, isP2SH bool) string {
	version := byte(p2pkhVersion)
	if isP2SH {
		version = p2shVersion
	}
	return base58.CheckEncode(addr[:], version)
}

// EncodeSapling bech32-encodes an 11-byte diversifier + 32-byte pk_d.
func EncodeSapling(diversifier, pkd []byte) (string, error) {
	return encodeBech32(hrpSapling, append(append([]byte{}, diversifier...), pkd...), false)
}

// EncodeOrchard bech32m-encodes an 11-byte diversifier + 32-byte pk_d,
// for this wallet's internal single-receiver use (real Orchard funds
// always flow through a Unified Address per ZIP-316).
func EncodeOrchard(diversifier, pkd []byte) (string, error) {
	return encodeBech32(hrpOrchard, append(append([]byte{}, diversifier...), pkd...), true)
}

// EncodeUnified bech32m-encodes a set of receivers into one Unified
// Address, per ZIP-316's tag-length-value envelope.
func EncodeUnified(receivers []Receiver) (string, error) {
	if len(receivers) == 0 {
		return "", fmt.Errorf("%w: no receivers to encode", errs.ErrBadAddress)
	}
	var payload []byte
	for _, r := range receivers {
		tag := tagForPool(r.Pool)
		if tag == 0xff {
			return "", fmt.Errorf("%w: unencodable pool %v", errs.ErrBadAddress, r.Pool)
		}
		payload = append(payload, tag, byte(len(r.Payload)))
		payload = append(payload, r.Payload...)
	}
	return encodeBech32(hrpUnified, payload, true)
}

func encodeBech32(hrp string, payload []byte, m bool) (string, error) {
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrBadAddress, err)
	}
	if m {
		return bech32.EncodeM(hrp, converted)
	}
	return bech32.Encode(hrp, converted)
}

// FilterAddress extracts the subset of receivers allowed by mask and
// returns the narrowest valid encoding (a single-receiver address when
// only one pool survives, a Unified Address otherwise).
func FilterAddress(p *Parsed, mask []types.Pool) (string, error) {
	allowed := make(map[types.Pool]bool, len(mask))
	for _, pool := range mask {
		allowed[pool] = true
	}

	var kept []Receiver
	switch p.Kind {
	case KindUnified:
		for _, r := range p.Receivers {
			if allowed[r.Pool] {
				kept = append(kept, r)
			}
		}
	case KindTransparentP2PKH, KindTransparentP2SH:
		if allowed[types.PoolTransparent] {
			return EncodeTransparent(p.Transparent, p.Kind == KindTransparentP2SH), nil
		}
	case KindSapling:
		if allowed[types.PoolSapling] {
			return EncodeSapling(p.Sapling[:11], p.Sapling[11:])
		}
	case KindOrchard:
		if allowed[types.PoolOrchard] {
			return EncodeOrchard(p.Orchard[:11], p.Orchard[11:])
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: no receiver survives the requested pool mask", errs.ErrUnroutableRecipient)
	}
	if len(kept) == 1 {
		switch kept[0].Pool {
		case types.PoolTransparent:
			var addr types.Address
			copy(addr[:], kept[0].Payload)
			return EncodeTransparent(addr, false), nil
		case types.PoolSapling:
			return EncodeSapling(kept[0].Payload[:11], kept[0].Payload[11:])
		case types.PoolOrchard:
			return EncodeOrchard(kept[0].Payload[:11], kept[0].Payload[11:])
		}
	}
	return EncodeUnified(kept)
}
