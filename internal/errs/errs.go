// Package errs defines the error kinds shared across warpz's components,
// following the sentinel-error convention used throughout the codebase:
// every package declares its own `var Err... = errors.New(...)` and wraps
// with `%w`; callers discriminate with errors.Is/errors.As.
package errs

import "errors"

// Transport/protocol errors (BlockSource). BlockSource.LatestHeight retries
// transport failures with backoff; the Synchronizer does not retry transport
// errors and returns them. It rewinds on ErrReorgDetected; ErrTooDeepReorg
// aborts sync.
var (
	ErrTransport     = errors.New("transport error")
	ErrProtocol      = errors.New("protocol error")
	ErrReorgDetected = errors.New("chain fork detected")
	ErrTooDeepReorg  = errors.New("rewind target precedes oldest checkpoint")
)

// Decryption.
var (
	ErrDecryptionFailed = errors.New("trial decryption failed for all keys")
)

// Store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrConstraint      = errors.New("store constraint violation")
	ErrCorrupt         = errors.New("store corrupt")
	ErrLocked          = errors.New("store locked")
	ErrMigrationDowngrade = errors.New("schema downgrade is not supported")
)

// Crypto errors. Fatal to the operation, never retried.
var (
	ErrProofFailed      = errors.New("zk proof generation or verification failed")
	ErrSignatureFailed  = errors.New("signature generation or verification failed")
)

// Policy errors (planner / txbuilder).
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnroutableRecipient = errors.New("recipient not representable in any allowed pool")
	ErrNotSpendable      = errors.New("note is not spendable")
	ErrStaleSummary      = errors.New("transaction summary references notes no longer owned")
)

// Auth errors.
var (
	ErrBadPassword        = errors.New("bad password")
	ErrWrongCapabilities  = errors.New("account lacks required spending capability")
)

// Format errors (address service).
var (
	ErrBadAddress = errors.New("malformed address")
	ErrBadURI     = errors.New("malformed payment URI")
	ErrBadMemo    = errors.New("malformed memo")
)

// Canceled is distinct from error: cooperative cancellation, never wrapped
// with retry/backoff semantics.
var ErrCanceled = errors.New("operation canceled")

// ErrBug marks an invariant violation that indicates a programming error
// rather than an environmental failure.
var ErrBug = errors.New("internal invariant violated")
