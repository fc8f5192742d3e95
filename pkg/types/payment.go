package types

// Recipient is one line item of a PaymentRequest.
type Recipient struct {
	Address      string
	Amount       uint64
	AllowedPools []Pool // narrows which pool(s) may fund this recipient
	Memo         []byte
}

// PaymentRequest describes a payment the planner should turn into a
// TransactionSummary.
type PaymentRequest struct {
	Recipients      []Recipient
	SrcPools        []Pool // pools the planner may draw inputs from
	SenderPaysFees  bool
	Confirmations   uint32
	ExpirationHeight uint32
}

// NoteRef identifies a chosen input by pool and note id.
type NoteRef struct {
	Pool   Pool
	NoteID uint64
}

// PlannedOutput is a planned transaction output, possibly change.
type PlannedOutput struct {
	Pool    Pool
	Address string
	Value   uint64
	Memo    []byte
	IsChange bool
}

// TransactionSummary is a fully-planned, not-yet-signed bundle.
type TransactionSummary struct {
	Inputs       []NoteRef
	Outputs      []PlannedOutput
	NetPerPool   map[Pool]int64 // signed: positive = net inflow to that pool's change
	Fee          uint64
	PrivacyLevel PrivacyLevel
	Plan         []byte // opaque serialized plan consumed by the signer
	AnchorHeight uint32
}

// TransactionRecord is a confirmed or unconfirmed transaction as seen by
// a given account.
type TransactionRecord struct {
	ID            uint64
	Account       uint32
	TxID          Hash
	Height        uint32 // 0 if unconfirmed
	Timestamp     uint64
	ValueDelta    int64
	AddressHint   string
	Memo          string
	Confirmations uint32
}

// UnconfirmedTx is a mempool-observed transaction affecting an account,
// produced by the Synchronizer's mempool submode. It never touches the
// witness trees.
type UnconfirmedTx struct {
	Account    uint32
	TxID       Hash
	ValueDelta int64
	SeenAt     uint64
}
