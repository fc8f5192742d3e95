package address

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

const uriScheme = "zcash"

// BuildPaymentURI encodes recipients as a ZIP-321 payment URI:
// zcash:<addr>?amount=<amt>&memo=<base64url>&...&address.1=<addr>&amount.1=<amt>...
// The first recipient is unindexed per ZIP-321; subsequent recipients use
// the .N suffix form.
func BuildPaymentURI(recipients []types.Recipient) (string, error) {
	if len(recipients) == 0 {
		return "", fmt.Errorf("%w: no recipients", errs.ErrBadURI)
	}

	var b strings.Builder
	b.WriteString(uriScheme + ":")
	b.WriteString(url.PathEscape(recipients[0].Address))

	query := url.Values{}
	writeRecipientParams(query, "", recipients[0])
	for i, r := range recipients[1:] {
		suffix := "." + strconv.Itoa(i+1)
		query.Set("address"+suffix, r.Address)
		writeRecipientParams(query, suffix, r)
	}

	if encoded := query.Encode(); encoded != "" {
		b.WriteString("?")
		b.WriteString(encoded)
	}
	return b.String(), nil
}

func writeRecipientParams(query url.Values, suffix string, r types.Recipient) {
	if r.Amount > 0 {
		query.Set("amount"+suffix, formatZec(r.Amount))
	}
	if len(r.Memo) > 0 {
		query.Set("memo"+suffix, encodeMemo(r.Memo))
	}
}

// formatZec renders a zatoshi amount as a decimal ZEC string, ZIP-321's
// required amount format (up to 8 fractional digits, no trailing zeros
// beyond what's needed).
func formatZec(zatoshi uint64) string {
	whole := zatoshi / 1e8
	frac := zatoshi % 1e8
	s := fmt.Sprintf("%d.%08d", whole, frac)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

func parseZec(s string) (uint64, error) {
	parts := strings.SplitN(s, ".", 2)
	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	total := whole * 1e8
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > 8 {
			return 0, fmt.Errorf("%w: too many fractional digits", errs.ErrBadURI)
		}
		for len(fracStr) < 8 {
			fracStr += "0"
		}
		frac, err := strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, err
		}
		total += frac
	}
	return total, nil
}

func encodeMemo(memo []byte) string {
	return base64.RawURLEncoding.EncodeToString(memo)
}

func decodeMemo(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadMemo, err)
	}
	return b, nil
}

// ParsePaymentURI decodes a ZIP-321 URI back into a PaymentRequest. The
// caller fills in SrcPools/Confirmations/SenderPaysFees afterward, since
// those are wallet policy, not URI content.
func ParsePaymentURI(uri string) (*types.PaymentRequest, error) {
	if !strings.HasPrefix(uri, uriScheme+":") {
		return nil, fmt.Errorf("%w: missing zcash: scheme", errs.ErrBadURI)
	}
	rest := strings.TrimPrefix(uri, uriScheme+":")

	addrPart := rest
	var rawQuery string
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		addrPart = rest[:idx]
		rawQuery = rest[idx+1:]
	}

	firstAddr, err := url.PathUnescape(addrPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadURI, err)
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBadURI, err)
	}

	recipients := map[string]*types.Recipient{"": {Address: firstAddr}}
	for key, vals := range query {
		if len(vals) == 0 {
			continue
		}
		name, suffix := splitParamKey(key)
		r, ok := recipients[suffix]
		if !ok {
			r = &types.Recipient{}
			recipients[suffix] = r
		}
		switch name {
		case "address":
			r.Address = vals[0]
		case "amount":
			amt, err := parseZec(vals[0])
			if err != nil {
				return nil, fmt.Errorf("%w: amount%s: %v", errs.ErrBadURI, suffix, err)
			}
			r.Amount = amt
		case "memo":
			memo, err := decodeMemo(vals[0])
			if err != nil {
				return nil, err
			}
			r.Memo = memo
		}
	}

	ordered := orderRecipients(recipients)
	for i := range ordered {
		if ordered[i].Address == "" {
			return nil, fmt.Errorf("%w: recipient missing address", errs.ErrBadURI)
		}
	}

	return &types.PaymentRequest{Recipients: ordered}, nil
}

func splitParamKey(key string) (name, suffix string) {
	if idx := strings.LastIndexByte(key, '.'); idx >= 0 {
		if _, err := strconv.Atoi(key[idx+1:]); err == nil {
			return key[:idx], key[idx:]
		}
	}
	return key, ""
}

func orderRecipients(recipients map[string]*types.Recipient) []types.Recipient {
	out := make([]types.Recipient, 0, len(recipients))
	if r, ok := recipients[""]; ok {
		out = append(out, *r)
	}
	for i := 1; ; i++ {
		suffix := "." + strconv.Itoa(i)
		r, ok := recipients[suffix]
		if !ok {
			break
		}
		out = append(out, *r)
	}
	return out
}
