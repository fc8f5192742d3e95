package types

// These mirror the lightwalletd compact_formats.proto wire schema (§6):
// CompactBlock, CompactTx, CompactSaplingSpend, CompactSaplingOutput,
// CompactOrchardAction, Bridge, OptLevel. They are the payload the
// BlockSource decodes off the gRPC stream; JSON tags back the codec
// registered in internal/rpc for this module's gRPC client.

// CompactBlock is the minimal per-block data a light wallet needs.
type CompactBlock struct {
	Height   uint64      `json:"height"`
	Hash     Hash        `json:"hash"`
	PrevHash Hash        `json:"prevHash"`
	Time     uint32      `json:"time"`
	Txs      []CompactTx `json:"txs"`

	// Bridges carry warp-sync hints: pre-computed frontier summaries for
	// leaf ranges with no outputs relevant to any requested viewing key.
	SaplingBridge *Bridge `json:"saplingBridge,omitempty"`
	OrchardBridge *Bridge `json:"orchardBridge,omitempty"`
}

// CompactTx carries the ordered shielded spends/outputs/actions of one
// transaction, in the order they must be applied to the commitment trees.
type CompactTx struct {
	Index          uint64                 `json:"index"`
	Hash           Hash                   `json:"hash"`
	SaplingSpends  []CompactSaplingSpend  `json:"saplingSpends"`
	SaplingOutputs []CompactSaplingOutput `json:"saplingOutputs"`
	OrchardActions []CompactOrchardAction `json:"orchardActions"`
}

// CompactSaplingSpend reveals a nullifier, nothing else.
type CompactSaplingSpend struct {
	Nullifier Hash `json:"nullifier"`
}

// CompactSaplingOutput carries a commitment and the encrypted-output prefix
// needed for trial decryption. Ciphertext is the 52-byte compact prefix;
// the memo tail is fetched lazily via a full-transaction lookup.
type CompactSaplingOutput struct {
	Cmu        Hash   `json:"cmu"`
	EphemeralKey Hash `json:"epk"`
	Ciphertext []byte `json:"ciphertext"` // 52 bytes
}

// CompactOrchardAction folds the spend and output halves of one Orchard
// action: it reveals a nullifier (spend half) and a commitment (output half)
// together, as Orchard actions are always paired.
type CompactOrchardAction struct {
	Nullifier    Hash   `json:"nullifier"`
	Cmx          Hash   `json:"cmx"`
	EphemeralKey Hash   `json:"ephemeralKey"`
	Ciphertext   []byte `json:"ciphertext"` // 52 bytes
}

// OptLevel is one level of a Merkle frontier: present while that level
// holds a completed left subtree awaiting its right sibling (bit `level` of
// the tree size set), absent (Present false) otherwise.
type OptLevel struct {
	Present bool `json:"present"`
	Hash    Hash `json:"hash"`
}

// Bridge summarizes the internal nodes spanning a contiguous leaf range,
// letting AppendLeaves fold many leaves in O(log n) instead of hashing each
// one. Two bridges over adjacent ranges compose associatively.
type Bridge struct {
	Len        uint64     `json:"len"`
	StartEdge  []OptLevel `json:"startEdge"`
	EndEdge    []OptLevel `json:"endEdge"`
}
