package types

// TreeState is a serialized snapshot of a shielded pool's commitment-tree
// frontier at a given checkpoint, sufficient to resume AppendLeaves without
// replaying every prior leaf.
type TreeState struct {
	Size     uint64
	Frontier []OptLevel // one entry per tree level, leaf level first; absent levels have Present false
}

// Checkpoint is a stored snapshot supporting rewind and anchor lookup.
// Checkpoints form a strictly increasing height sequence.
type Checkpoint struct {
	Height       uint32
	BlockHash    Hash
	Timestamp    uint64
	SaplingTree  TreeState
	OrchardTree  TreeState
}

// Message is a parsed shielded memo.
type Message struct {
	ID        uint64
	Account   uint32
	Height    uint32
	Position  uint64 // tree position of the note carrying this memo
	Subject   string
	Body      *string // nil until the memo tail is fetched (orphan memo)
	Sender    string
	Recipient string
	ReplyTo   *uint64
	Read      bool
}

// Contact is an address-book entry a wallet may attach to outgoing payments.
type Contact struct {
	ID      uint64
	Name    string
	Address string
}
