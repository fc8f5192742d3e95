package planner

import (
	"fmt"
	"sort"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

// maxFeeIterations bounds the fee/selection fixed-point loop below: each
// iteration can only ever add a pool to the input set (never remove one),
// and there are at most 3 pools, so convergence is guaranteed well before this.
const maxFeeIterations = 4

// Config holds planner-wide parameters. Kept separate from FeeConfig since
// a future version may add selection-policy knobs beyond the fee schedule.
type Config struct {
	Fee *FeeConfig
}

// DefaultConfig returns the standard ZIP-317 planner configuration.
func DefaultConfig() *Config {
	return &Config{Fee: DefaultFeeConfig()}
}

// Planner turns a PaymentRequest plus the wallet's current spendable set
// into a TransactionSummary: route recipients to pools, select inputs,
// converge fee and pool set to a fixed point, and build the final output
// set.
type Planner struct {
	cfg *Config
}

// New creates a Planner. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Planner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Planner{cfg: cfg}
}

type routedRecipient struct {
	types.Recipient
	pool types.Pool
}

// route implements step 2: classify each recipient by the intersection of
// its AllowedPools and the request's SrcPools, then pick the most private
// pool in that intersection as the funding/output pool.
func route(req *types.PaymentRequest) ([]routedRecipient, error) {
	srcSet := make(map[types.Pool]bool, len(req.SrcPools))
	for _, p := range req.SrcPools {
		srcSet[p] = true
	}

	out := make([]routedRecipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		var intersect []types.Pool
		for _, p := range r.AllowedPools {
			if srcSet[p] {
				intersect = append(intersect, p)
			}
		}
		if len(intersect) == 0 {
			return nil, fmt.Errorf("%w: %s", errs.ErrUnroutableRecipient, r.Address)
		}
		order := preferredPoolOrder(intersect)
		out = append(out, routedRecipient{Recipient: r, pool: order[0]})
	}
	return out, nil
}

// Plan runs the full selection algorithm against the given spendable
// notes/UTXOs at tipHeight, producing a TransactionSummary.
func (p *Planner) Plan(req *types.PaymentRequest, notes []*types.Note, utxos []*types.UTXO, tipHeight uint32) (*types.TransactionSummary, error) {
	routed, err := route(req)
	if err != nil {
		return nil, err
	}

	var recipientTotal uint64
	for _, r := range routed {
		recipientTotal += r.Amount
	}

	selector := NewNoteSelector(notes, utxos)

	// Fixed point over (selected input pools) <-> (fee), since the fee
	// depends on the logical action count, which depends on which pools the
	// selected inputs ultimately touch.
	outputPools := make(map[types.Pool]bool)
	for _, r := range routed {
		outputPools[r.pool] = true
	}

	var chosen []candidate
	var fee uint64
	for i := 0; i < maxFeeIterations; i++ {
		actions := actionsFor(outputPools)
		fee = p.cfg.Fee.Fee(actions)

		target := recipientTotal
		if req.SenderPaysFees {
			target += fee
		}
		c, _, err := selector.Select(req.SrcPools, target, tipHeight, req.Confirmations)
		if err != nil {
			return nil, err
		}
		chosen = c

		grew := false
		for _, cand := range chosen {
			if !outputPools[cand.pool] {
				outputPools[cand.pool] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	inputs := make([]types.NoteRef, len(chosen))
	for i, c := range chosen {
		inputs[i] = c.ref()
	}
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Pool != inputs[j].Pool {
			return inputs[i].Pool < inputs[j].Pool
		}
		return positionOf(chosen, inputs[i]) < positionOf(chosen, inputs[j])
	})

	outputs, netPerPool := buildOutputs(routed, recipientTotal, fee, req.SenderPaysFees, chosen)

	privacy := overallPrivacy(routed)

	var anchorHeight uint32
	if tipHeight >= req.Confirmations {
		anchorHeight = tipHeight - req.Confirmations
	}

	return &types.TransactionSummary{
		Inputs:       inputs,
		Outputs:      outputs,
		NetPerPool:   netPerPool,
		Fee:          fee,
		PrivacyLevel: privacy,
		AnchorHeight: anchorHeight,
	}, nil
}

func positionOf(chosen []candidate, ref types.NoteRef) uint64 {
	for _, c := range chosen {
		if c.ref() == ref {
			if c.note != nil {
				return c.note.Position
			}
			return uint64(c.utxo.Vout)
		}
	}
	return 0
}

func poolSlice(set map[types.Pool]bool) []types.Pool {
	out := make([]types.Pool, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// actionsFor estimates the logical-action shape from the set of pools in
// play, one action per pool touched (refined by the real TxBuilder once the
// concrete bundle is assembled; the planner only needs the fee estimate).
func actionsFor(pools map[types.Pool]bool) LogicalActions {
	var a LogicalActions
	if pools[types.PoolTransparent] {
		a.TransparentIn = 1
		a.TransparentOut = 1
	}
	if pools[types.PoolSapling] {
		a.SaplingSpends = 1
		a.SaplingOutputs = 1
	}
	if pools[types.PoolOrchard] {
		a.OrchardActions = 2
	}
	return a
}

// buildOutputs applies proportional fee deduction (when the sender does
// not pay fees) and deterministic
// recipient-then-change ordering, plus the per-pool net inflow/outflow map
// the TxBuilder uses to balance the transaction.
func buildOutputs(routed []routedRecipient, recipientTotal, fee uint64, senderPaysFees bool, chosen []candidate) ([]types.PlannedOutput, map[types.Pool]int64) {
	net := make(map[types.Pool]int64)
	for _, c := range chosen {
		net[c.pool] += int64(c.value)
	}

	outputs := make([]types.PlannedOutput, 0, len(routed)+1)
	for _, r := range routed {
		value := r.Amount
		if !senderPaysFees && recipientTotal > 0 {
			value -= (r.Amount * fee) / recipientTotal
		}
		outputs = append(outputs, types.PlannedOutput{
			Pool:    r.pool,
			Address: r.Address,
			Value:   value,
			Memo:    r.Memo,
		})
		net[r.pool] -= int64(value)
	}

	spent := recipientTotal
	if senderPaysFees {
		spent += fee
	}
	inputTotal := int64(0)
	for _, c := range chosen {
		inputTotal += int64(c.value)
	}
	change := inputTotal - int64(spent)
	if change > 0 {
		changePool := changePoolFor(chosen)
		outputs = append(outputs, types.PlannedOutput{
			Pool:     changePool,
			Value:    uint64(change),
			IsChange: true,
		})
		net[changePool] -= change
	}

	return outputs, net
}

// changePoolFor sends change to the most private pool among the selected
// inputs, preferring pools that increase the transaction's overall
// privacy level.
func changePoolFor(chosen []candidate) types.Pool {
	seen := make(map[types.Pool]bool)
	for _, c := range chosen {
		seen[c.pool] = true
	}
	order := preferredPoolOrder(poolSlice(seen))
	if len(order) == 0 {
		return types.PoolTransparent
	}
	return order[0]
}

// overallPrivacy reports the weakest privacy level among routed recipients,
// since a transaction's observable privacy is bounded by its least private leg.
func overallPrivacy(routed []routedRecipient) types.PrivacyLevel {
	level := types.PrivacyOrchardOnly
	for _, r := range routed {
		l := RecipientPrivacyLevel([]types.Pool{r.pool})
		if l < level {
			level = l
		}
	}
	return level
}
