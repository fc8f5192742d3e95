package txbuilder

import "testing"

// TestCircuitManagerProveVerifyOutputCircuit exercises a full Groth16
// setup/prove/verify round trip against the simplest circuit (no Merkle
// path), since compiling and proving the deeper spend circuits is too slow
// to run on every test invocation.
func TestCircuitManagerProveVerifyOutputCircuit(t *testing.T) {
	cm := NewCircuitManager()

	witness := &outputCircuit{
		Commitment:  15,
		Value:       10,
		Diversifier: 2,
		Rseed:       3,
	}

	proof, err := cm.Prove(CircuitSaplingOutput, witness)
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}
	if len(proof) == 0 {
		t.Fatal("Prove() returned an empty proof")
	}

	public := &outputCircuit{Commitment: 15}
	if err := cm.Verify(CircuitSaplingOutput, proof, public); err != nil {
		t.Fatalf("Verify() error = %v, want a valid proof to verify", err)
	}
}

func TestCircuitManagerVerifyRejectsWrongPublicInput(t *testing.T) {
	cm := NewCircuitManager()

	witness := &outputCircuit{Commitment: 15, Value: 10, Diversifier: 2, Rseed: 3}
	proof, err := cm.Prove(CircuitSaplingOutput, witness)
	if err != nil {
		t.Fatalf("Prove() error = %v", err)
	}

	wrongPublic := &outputCircuit{Commitment: 99}
	if err := cm.Verify(CircuitSaplingOutput, proof, wrongPublic); err == nil {
		t.Error("Verify() should fail against a mismatched public commitment")
	}
}

func TestCircuitManagerCachesCompiledCircuits(t *testing.T) {
	cm := NewCircuitManager()
	first, err := cm.ensure(CircuitSaplingOutput)
	if err != nil {
		t.Fatalf("ensure() error = %v", err)
	}
	second, err := cm.ensure(CircuitSaplingOutput)
	if err != nil {
		t.Fatalf("ensure() error = %v", err)
	}
	if first != second {
		t.Error("ensure() should return the same compiled circuit on repeat calls")
	}
}
