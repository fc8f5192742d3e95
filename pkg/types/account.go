package types

// SpendCapability describes how much spending authority an account carries.
// Capability only ever downgrades: Spending -> ViewOnly -> None.
type SpendCapability uint8

const (
	// CapabilitySpending holds spending keys for at least one pool.
	CapabilitySpending SpendCapability = iota
	// CapabilityViewOnly holds only viewing keys; can see funds but not spend.
	CapabilityViewOnly
	// CapabilityNone holds no keys at all (e.g. a watch-only shell awaiting import).
	CapabilityNone
)

// Downgrade reports whether moving from c to next is an allowed, monotonic
// downgrade (spending -> viewing -> none, never upgrade).
func (c SpendCapability) Downgrade(next SpendCapability) bool {
	return next >= c
}

// ViewingKeys holds the per-pool viewing keys an account uses for trial
// decryption. A nil key means the account does not participate in that pool.
type ViewingKeys struct {
	SaplingIVK []byte
	OrchardFVK []byte
	Transparent []byte // extended public key for transparent gap-limit scanning
}

// SpendingKeys holds the per-pool spending keys an account uses for signing.
// It lives on the Account (Account.Spending) for as long as the account does;
// Zero wipes it, and nothing in this module calls Zero automatically.
type SpendingKeys struct {
	Seed              []byte
	SaplingExtSK      []byte
	OrchardSK         []byte
	TransparentSKs    map[string][]byte // derivation path -> secret key
}

// Zero overwrites all key material in place. Callers must invoke this as
// soon as signing completes; it is not safe to retain a SpendingKeys value.
func (k *SpendingKeys) Zero() {
	if k == nil {
		return
	}
	zero(k.Seed)
	zero(k.SaplingExtSK)
	zero(k.OrchardSK)
	for _, sk := range k.TransparentSKs {
		zero(sk)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Account is a logical wallet account: a birth height, a capability set, and
// the keys needed to scan and optionally spend from it.
type Account struct {
	ID          uint32
	Name        string
	Icon        string
	Position    int
	Hidden      bool
	BirthHeight uint32

	Capability SpendCapability
	Spending   *SpendingKeys // nil unless Capability == CapabilitySpending
	Viewing    ViewingKeys
}

// CanSpend reports whether the account holds a spending key for pool.
func (a *Account) CanSpend(pool Pool) bool {
	if a.Capability != CapabilitySpending || a.Spending == nil {
		return false
	}
	switch pool {
	case PoolSapling:
		return len(a.Spending.SaplingExtSK) > 0
	case PoolOrchard:
		return len(a.Spending.OrchardSK) > 0
	case PoolTransparent:
		return len(a.Spending.TransparentSKs) > 0
	default:
		return false
	}
}

// CanView reports whether the account holds a viewing key for pool.
func (a *Account) CanView(pool Pool) bool {
	switch pool {
	case PoolSapling:
		return len(a.Viewing.SaplingIVK) > 0
	case PoolOrchard:
		return len(a.Viewing.OrchardFVK) > 0
	case PoolTransparent:
		return len(a.Viewing.Transparent) > 0
	default:
		return false
	}
}
