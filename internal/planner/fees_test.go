package planner

import "testing"

func TestLogicalActionsCount(t *testing.T) {
	testCases := []struct {
		name     string
		actions  LogicalActions
		expected uint64
	}{
		{"pure transparent takes the max of in/out", LogicalActions{TransparentIn: 1, TransparentOut: 2}, 2},
		{"single sapling spend padded to two", LogicalActions{SaplingSpends: 1}, 2},
		{"single sapling output padded to two", LogicalActions{SaplingOutputs: 1}, 2},
		{"sapling spend and output take the max", LogicalActions{SaplingSpends: 3, SaplingOutputs: 1}, 3},
		{"single orchard action padded to two", LogicalActions{OrchardActions: 1}, 2},
		{"two orchard actions unpadded", LogicalActions{OrchardActions: 2}, 2},
		{"mixed pools sum independently", LogicalActions{
			TransparentIn: 1, SaplingSpends: 1, SaplingOutputs: 1, OrchardActions: 1,
		}, 1 + 2 + 2},
		{"empty bundle", LogicalActions{}, 0},
	}

	for _, tc := range testCases {
		if got := tc.actions.Count(); got != tc.expected {
			t.Errorf("%s: Count() = %d, want %d", tc.name, got, tc.expected)
		}
	}
}

func TestFeeConfigFee(t *testing.T) {
	cfg := DefaultFeeConfig()

	testCases := []struct {
		name     string
		actions  LogicalActions
		expected uint64
	}{
		{"below grace actions uses the grace floor", LogicalActions{TransparentIn: 1}, cfg.GraceActions * cfg.MarginalFee},
		{"exactly at grace actions", LogicalActions{TransparentIn: 2, TransparentOut: 1}, 2 * cfg.MarginalFee},
		{"above grace actions scales linearly", LogicalActions{
			TransparentIn: 2, TransparentOut: 1, SaplingSpends: 3, SaplingOutputs: 3,
		}, 5 * cfg.MarginalFee},
	}

	for _, tc := range testCases {
		if got := cfg.Fee(tc.actions); got != tc.expected {
			t.Errorf("%s: Fee() = %d, want %d", tc.name, got, tc.expected)
		}
	}
}

func TestFeeConfigCustomGrace(t *testing.T) {
	cfg := &FeeConfig{MarginalFee: 100, GraceActions: 5}
	actions := LogicalActions{TransparentIn: 1}

	if got, want := cfg.Fee(actions), uint64(500); got != want {
		t.Errorf("Fee() = %d, want %d", got, want)
	}
}
