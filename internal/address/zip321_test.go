package address

import (
	"strings"
	"testing"

	"github.com/ccoin/warpz/pkg/types"
)

func TestBuildAndParsePaymentURISingleRecipient(t *testing.T) {
	recipients := []types.Recipient{
		{Address: "zs1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq", Amount: 123400000, Memo: []byte("hello")},
	}

	uri, err := BuildPaymentURI(recipients)
	if err != nil {
		t.Fatalf("BuildPaymentURI() error = %v", err)
	}
	if !strings.HasPrefix(uri, "zcash:") {
		t.Fatalf("URI = %q, want zcash: prefix", uri)
	}

	req, err := ParsePaymentURI(uri)
	if err != nil {
		t.Fatalf("ParsePaymentURI() error = %v", err)
	}
	if len(req.Recipients) != 1 {
		t.Fatalf("got %d recipients, want 1", len(req.Recipients))
	}
	got := req.Recipients[0]
	if got.Address != recipients[0].Address {
		t.Errorf("Address = %q, want %q", got.Address, recipients[0].Address)
	}
	if got.Amount != recipients[0].Amount {
		t.Errorf("Amount = %d, want %d", got.Amount, recipients[0].Amount)
	}
	if string(got.Memo) != "hello" {
		t.Errorf("Memo = %q, want %q", got.Memo, "hello")
	}
}

func TestBuildAndParsePaymentURIMultipleRecipients(t *testing.T) {
	recipients := []types.Recipient{
		{Address: "addr0", Amount: 100000000},
		{Address: "addr1", Amount: 50000000},
		{Address: "addr2", Amount: 25000000},
	}

	uri, err := BuildPaymentURI(recipients)
	if err != nil {
		t.Fatalf("BuildPaymentURI() error = %v", err)
	}

	req, err := ParsePaymentURI(uri)
	if err != nil {
		t.Fatalf("ParsePaymentURI() error = %v", err)
	}
	if len(req.Recipients) != 3 {
		t.Fatalf("got %d recipients, want 3", len(req.Recipients))
	}
	for i, r := range req.Recipients {
		if r.Address != recipients[i].Address {
			t.Errorf("recipient %d Address = %q, want %q", i, r.Address, recipients[i].Address)
		}
		if r.Amount != recipients[i].Amount {
			t.Errorf("recipient %d Amount = %d, want %d", i, r.Amount, recipients[i].Amount)
		}
	}
}

func TestFormatAndParseZec(t *testing.T) {
	testCases := []struct {
		zatoshi uint64
		decimal string
	}{
		{100000000, "1"},
		{150000000, "1.5"},
		{1, "0.00000001"},
		{0, "0"},
	}

	for _, tc := range testCases {
		if got := formatZec(tc.zatoshi); got != tc.decimal {
			t.Errorf("formatZec(%d) = %q, want %q", tc.zatoshi, got, tc.decimal)
		}
		parsed, err := parseZec(tc.decimal)
		if err != nil {
			t.Fatalf("parseZec(%q) error = %v", tc.decimal, err)
		}
		if parsed != tc.zatoshi {
			t.Errorf("parseZec(%q) = %d, want %d", tc.decimal, parsed, tc.zatoshi)
		}
	}
}

func TestParsePaymentURIRejectsMissingScheme(t *testing.T) {
	if _, err := ParsePaymentURI("not-a-uri"); err == nil {
		t.Error("ParsePaymentURI() should reject a URI without the zcash: scheme")
	}
}
