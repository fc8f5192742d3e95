package types

// Note is a spendable shielded output tracked by the wallet. Position, once
// assigned by the WitnessEngine, never changes for the lifetime of the note.
type Note struct {
	ID         uint64
	Account    uint32
	Pool       Pool // PoolSapling or PoolOrchard
	Value      uint64
	Diversifier []byte
	Rseed      []byte // Sapling rcm or Orchard rho+rseed, pool-dependent encoding
	Position   uint64
	Cmx        Hash // note commitment (cmu for Sapling, cmx for Orchard)
	Nullifier  Hash
	Height     uint32
	TxID       Hash
	OutputIndex uint16
	Excluded   bool
	SpentHeight *uint32
}

// Spent reports whether the note has a confirmed spend.
func (n *Note) Spent() bool {
	return n.SpentHeight != nil
}

// Spendable reports whether the note can be selected by the planner: not
// excluded, not spent, and known with at least minConf confirmations at tip.
func (n *Note) Spendable(tipHeight uint32, minConf uint32) bool {
	if n.Excluded || n.Spent() {
		return false
	}
	if tipHeight < n.Height {
		return false
	}
	return tipHeight-n.Height+1 >= minConf
}

// UTXO is a spendable transparent output tracked by the wallet.
type UTXO struct {
	ID          uint64
	Account     uint32
	TxID        Hash
	Vout        uint32
	Address     Address
	Value       uint64
	Height      uint32
	SpentHeight *uint32
}

// Spent reports whether the UTXO has a confirmed spend.
func (u *UTXO) Spent() bool {
	return u.SpentHeight != nil
}
