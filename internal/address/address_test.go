package address

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

func TestTransparentRoundTrip(t *testing.T) {
	var addr types.Address
	for i := range addr {
		addr[i] = byte(i + 1)
	}

	encoded := EncodeTransparent(addr, false)
	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Kind != KindTransparentP2PKH {
		t.Errorf("Kind = %v, want KindTransparentP2PKH", parsed.Kind)
	}
	if parsed.Transparent != addr {
		t.Errorf("Transparent = %x, want %x", parsed.Transparent, addr)
	}

	p2sh := EncodeTransparent(addr, true)
	parsedSH, err := Parse(p2sh)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsedSH.Kind != KindTransparentP2SH {
		t.Errorf("Kind = %v, want KindTransparentP2SH", parsedSH.Kind)
	}
}

func TestSaplingRoundTrip(t *testing.T) {
	diversifier := bytes.Repeat([]byte{0xAB}, DiversifierSize)
	pkd := bytes.Repeat([]byte{0xCD}, 32)

	encoded, err := EncodeSapling(diversifier, pkd)
	if err != nil {
		t.Fatalf("EncodeSapling() error = %v", err)
	}

	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Kind != KindSapling {
		t.Fatalf("Kind = %v, want KindSapling", parsed.Kind)
	}
	if !bytes.Equal(parsed.Sapling[:11], diversifier) || !bytes.Equal(parsed.Sapling[11:], pkd) {
		t.Error("sapling payload did not round-trip")
	}
}

func TestUnifiedRoundTrip(t *testing.T) {
	receivers := []Receiver{
		{Pool: types.PoolOrchard, Payload: bytes.Repeat([]byte{0x01}, 43)},
		{Pool: types.PoolSapling, Payload: bytes.Repeat([]byte{0x02}, 43)},
		{Pool: types.PoolTransparent, Payload: bytes.Repeat([]byte{0x03}, 20)},
	}

	encoded, err := EncodeUnified(receivers)
	if err != nil {
		t.Fatalf("EncodeUnified() error = %v", err)
	}

	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Kind != KindUnified {
		t.Fatalf("Kind = %v, want KindUnified", parsed.Kind)
	}
	if len(parsed.Receivers) != 3 {
		t.Fatalf("got %d receivers, want 3", len(parsed.Receivers))
	}

	pools := parsed.Pools()
	want := map[types.Pool]bool{types.PoolOrchard: true, types.PoolSapling: true, types.PoolTransparent: true}
	for _, p := range pools {
		if !want[p] {
			t.Errorf("unexpected pool %v in Pools()", p)
		}
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing pools in Pools(): %v", want)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-real-address")
	if !errors.Is(err, errs.ErrBadAddress) {
		t.Fatalf("Parse() error = %v, want wrapping ErrBadAddress", err)
	}
}

func TestFilterAddressNarrowsToSingleReceiver(t *testing.T) {
	receivers := []Receiver{
		{Pool: types.PoolOrchard, Payload: bytes.Repeat([]byte{0x01}, 43)},
		{Pool: types.PoolSapling, Payload: bytes.Repeat([]byte{0x02}, 43)},
	}
	encoded, err := EncodeUnified(receivers)
	if err != nil {
		t.Fatalf("EncodeUnified() error = %v", err)
	}
	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	narrowed, err := FilterAddress(parsed, []types.Pool{types.PoolSapling})
	if err != nil {
		t.Fatalf("FilterAddress() error = %v", err)
	}
	reparsed, err := Parse(narrowed)
	if err != nil {
		t.Fatalf("Parse(narrowed) error = %v", err)
	}
	if reparsed.Kind != KindSapling {
		t.Errorf("narrowed Kind = %v, want KindSapling", reparsed.Kind)
	}
}

func TestFilterAddressNoSurvivingPool(t *testing.T) {
	receivers := []Receiver{{Pool: types.PoolOrchard, Payload: bytes.Repeat([]byte{0x01}, 43)}}
	encoded, err := EncodeUnified(receivers)
	if err != nil {
		t.Fatalf("EncodeUnified() error = %v", err)
	}
	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	_, err = FilterAddress(parsed, []types.Pool{types.PoolTransparent})
	if !errors.Is(err, errs.ErrUnroutableRecipient) {
		t.Fatalf("FilterAddress() error = %v, want wrapping ErrUnroutableRecipient", err)
	}
}
