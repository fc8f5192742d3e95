package planner

import (
	"errors"
	"testing"

	"github.com/ccoin/warpz/internal/errs"
	"github.com/ccoin/warpz/pkg/types"
)

func TestPlannerPlanSingleSaplingRecipient(t *testing.T) {
	p := New(nil)
	notes := []*types.Note{note(1, types.PoolSapling, 100000, 10)}

	req := &types.PaymentRequest{
		Recipients: []types.Recipient{
			{Address: "zs1recipient", Amount: 50000, AllowedPools: []types.Pool{types.PoolSapling}},
		},
		SrcPools:      []types.Pool{types.PoolSapling},
		Confirmations: 1,
	}

	summary, err := p.Plan(req, notes, nil, 20)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(summary.Inputs) != 1 || summary.Inputs[0].NoteID != 1 {
		t.Fatalf("unexpected inputs: %+v", summary.Inputs)
	}
	if summary.Fee == 0 {
		t.Error("expected a nonzero fee")
	}

	var recipientOut *types.PlannedOutput
	var changeOut *types.PlannedOutput
	for i := range summary.Outputs {
		o := &summary.Outputs[i]
		if o.IsChange {
			changeOut = o
		} else {
			recipientOut = o
		}
	}
	if recipientOut == nil {
		t.Fatal("expected a recipient output")
	}
	if recipientOut.Value != 50000-((50000*summary.Fee)/50000) {
		t.Errorf("recipient output value = %d", recipientOut.Value)
	}
	if changeOut == nil {
		t.Fatal("expected a change output")
	}
	if changeOut.Pool != types.PoolSapling {
		t.Errorf("change pool = %v, want sapling", changeOut.Pool)
	}

	total := recipientOut.Value
	for _, o := range summary.Outputs {
		if o.IsChange {
			total += o.Value
		}
	}
	if total+summary.Fee != 100000 {
		t.Errorf("outputs + fee = %d, want input total 100000", total+summary.Fee)
	}
}

func TestPlannerPlanSenderPaysFees(t *testing.T) {
	p := New(nil)
	notes := []*types.Note{note(1, types.PoolOrchard, 100000, 10)}

	req := &types.PaymentRequest{
		Recipients: []types.Recipient{
			{Address: "u1recipient", Amount: 50000, AllowedPools: []types.Pool{types.PoolOrchard}},
		},
		SrcPools:       []types.Pool{types.PoolOrchard},
		SenderPaysFees: true,
		Confirmations:  1,
	}

	summary, err := p.Plan(req, notes, nil, 20)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	for _, o := range summary.Outputs {
		if !o.IsChange && o.Value != 50000 {
			t.Errorf("recipient output should be untouched when sender pays fees, got %d", o.Value)
		}
	}
}

func TestPlannerPlanUnroutableRecipient(t *testing.T) {
	p := New(nil)
	req := &types.PaymentRequest{
		Recipients: []types.Recipient{
			{Address: "t1recipient", Amount: 1000, AllowedPools: []types.Pool{types.PoolTransparent}},
		},
		SrcPools:      []types.Pool{types.PoolSapling},
		Confirmations: 1,
	}

	_, err := p.Plan(req, nil, nil, 20)
	if !errors.Is(err, errs.ErrUnroutableRecipient) {
		t.Fatalf("Plan() error = %v, want wrapping ErrUnroutableRecipient", err)
	}
}

func TestPlannerPlanEscalatesFeeAcrossPools(t *testing.T) {
	p := New(nil)
	notes := []*types.Note{
		note(1, types.PoolOrchard, 30000, 10),
		note(2, types.PoolSapling, 30000, 10),
	}

	req := &types.PaymentRequest{
		Recipients: []types.Recipient{
			{Address: "u1recipient", Amount: 50000, AllowedPools: []types.Pool{types.PoolOrchard, types.PoolSapling}},
		},
		SrcPools:      []types.Pool{types.PoolOrchard, types.PoolSapling},
		Confirmations: 1,
	}

	summary, err := p.Plan(req, notes, nil, 20)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(summary.Inputs) != 2 {
		t.Fatalf("expected both notes to be needed, got inputs %+v", summary.Inputs)
	}
}

func TestPlannerPlanAnchorHeight(t *testing.T) {
	p := New(nil)
	notes := []*types.Note{note(1, types.PoolSapling, 100000, 1)}
	req := &types.PaymentRequest{
		Recipients: []types.Recipient{
			{Address: "zs1recipient", Amount: 1000, AllowedPools: []types.Pool{types.PoolSapling}},
		},
		SrcPools:      []types.Pool{types.PoolSapling},
		Confirmations: 3,
	}

	summary, err := p.Plan(req, notes, nil, 100)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if summary.AnchorHeight != 97 {
		t.Errorf("AnchorHeight = %d, want 97", summary.AnchorHeight)
	}
}
