package planner

import (
	"fmt"
	"sort"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// SpendableBalance is the per-pool spendable balance, as computed from the
// wallet's notes and UTXOs at a given tip and minimum confirmation count.
type SpendableBalance map[types.Pool]uint64

// Total sums balance across every pool.
func (b SpendableBalance) Total() uint64 {
	var total uint64
	for _, v := range b {
		total += v
	}
	return total
}

// candidate is one spendable input, pool-tagged so the selector can sort
// and escalate across pools uniformly.
type candidate struct {
	pool  types.Pool
	value uint64
	note  *types.Note // nil for a transparent candidate
	utxo  *types.UTXO // nil for a shielded candidate
}

func (c candidate) ref() types.NoteRef {
	if c.note != nil {
		return types.NoteRef{Pool: c.pool, NoteID: c.note.ID}
	}
	return types.NoteRef{Pool: c.pool, NoteID: c.utxo.ID}
}

// ComputeSpendableBalance computes per-pool spendable balance from notes
// and UTXOs meeting confirmations ≥ min, not excluded, not spent.
func ComputeSpendableBalance(notes []*types.Note, utxos []*types.UTXO, tipHeight uint32, minConf uint32) SpendableBalance {
	bal := make(SpendableBalance)
	for _, n := range notes {
		if n.Spendable(tipHeight, minConf) {
			bal[n.Pool] += n.Value
		}
	}
	for _, u := range utxos {
		if u.Spent() {
			continue
		}
		if tipHeight < u.Height || tipHeight-u.Height+1 < minConf {
			continue
		}
		bal[types.PoolTransparent] += u.Value
	}
	return bal
}

// RecipientPrivacyLevel reports the maximum privacy level achievable for
// a recipient given the pools its address can receive
// into (AllowedPools, already resolved by the AddressService). Funding from
// a higher-privacy pool than the recipient can receive into still leaks the
// recipient's pool membership, so the achievable level is capped by the
// narrowest receiver the address exposes.
func RecipientPrivacyLevel(allowed []types.Pool) types.PrivacyLevel {
	hasOrchard, hasSapling, hasTransparent := false, false, false
	for _, p := range allowed {
		switch p {
		case types.PoolOrchard:
			hasOrchard = true
		case types.PoolSapling:
			hasSapling = true
		case types.PoolTransparent:
			hasTransparent = true
		}
	}
	switch {
	case hasOrchard && !hasSapling && !hasTransparent:
		return types.PrivacyOrchardOnly
	case (hasOrchard || hasSapling) && !hasTransparent:
		return types.PrivacyShielded
	case hasOrchard || hasSapling:
		return types.PrivacySaplingMixed
	default:
		return types.PrivacyTransparent
	}
}

// preferredPoolOrder ranks pools from most- to least-private among those a
// recipient can accept, so the selector tries to fund from the most private
// pool first, preferring pools that increase overall privacy level.
func preferredPoolOrder(allowed []types.Pool) []types.Pool {
	rank := map[types.Pool]int{types.PoolOrchard: 0, types.PoolSapling: 1, types.PoolTransparent: 2}
	out := append([]types.Pool(nil), allowed...)
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

// NoteSelector implements greedy least-notes selection over a
// caller-supplied view of spendable notes and UTXOs.
type NoteSelector struct {
	notes []*types.Note
	utxos []*types.UTXO
}

// NewNoteSelector builds a selector over the given spendable note/UTXO set.
func NewNoteSelector(notes []*types.Note, utxos []*types.UTXO) *NoteSelector {
	return &NoteSelector{notes: notes, utxos: utxos}
}

// candidatesFor returns every spendable candidate in pool, largest value
// first — largest-first minimizes the note count for a given target, which
// is the selector's "least-notes" objective.
func (s *NoteSelector) candidatesFor(pool types.Pool, tipHeight uint32, minConf uint32) []candidate {
	var out []candidate
	if pool == types.PoolTransparent {
		for _, u := range s.utxos {
			if u.Spent() || tipHeight < u.Height || tipHeight-u.Height+1 < minConf {
				continue
			}
			out = append(out, candidate{pool: pool, value: u.Value, utxo: u})
		}
	} else {
		for _, n := range s.notes {
			if n.Pool != pool || !n.Spendable(tipHeight, minConf) {
				continue
			}
			out = append(out, candidate{pool: pool, value: n.Value, note: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].value > out[j].value })
	return out
}

// Select picks inputs across allowedPools (in preference order, most
// private first) to cover at least target, escalating to additional pools
// only when the preferred pool is exhausted. Returns the chosen candidates
// and the total value selected.
func (s *NoteSelector) Select(allowedPools []types.Pool, target uint64, tipHeight uint32, minConf uint32) ([]candidate, uint64, error) {
	order := preferredPoolOrder(allowedPools)
	var chosen []candidate
	var sum uint64
	for _, pool := range order {
		if sum >= target {
			break
		}
		for _, c := range s.candidatesFor(pool, tipHeight, minConf) {
			if sum >= target {
				break
			}
			chosen = append(chosen, c)
			sum += c.value
		}
	}
	if sum < target {
		available := ComputeSpendableBalance(s.notes, s.utxos, tipHeight, minConf)
		return nil, 0, fmt.Errorf("%w: need %d, have %d across allowed pools (%v)", errs.ErrInsufficientFunds, target, available.Total(), available)
	}
	return chosen, sum, nil
}
