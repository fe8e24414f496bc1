package domain

import (
	"context"
	"time"
)

// Address identifies an account, vault, or mint on the external ledger. The
// core treats addresses as opaque, stable, collision-free identifiers.
type Address string

// ZeroAddress is the empty identity; positions and vaults bound to it are
// considered uninitialized.
const ZeroAddress Address = ""

// Ledger is the external value-movement and authorization collaborator. The
// core never moves value itself: every operation validates and computes
// first, then asks the ledger to execute the resulting transfers, mints, and
// burns. Atomicity across an operation's ledger calls is the ledger's
// concern, not the core's.
type Ledger interface {
	// CreateVault creates a vault controlled by the given authority. It is
	// idempotent for an existing vault with the same authority and fails
	// with ErrAlreadyExists for a conflicting one.
	CreateVault(ctx context.Context, vault, authority Address) error

	// CreateMint registers a mint whose supply only the given authority may
	// grow. Idempotent under the same rules as CreateVault.
	CreateMint(ctx context.Context, mint, authority Address) error

	// Transfer moves amount from one vault to another. It fails with
	// ErrUnauthorized if authority has no rights over the source vault and
	// with ErrInsufficientBalance if the source balance is too small.
	Transfer(ctx context.Context, from, to Address, authority Address, amount uint64) error

	// Mint creates amount new units of the given mint in the target vault.
	Mint(ctx context.Context, mint Address, authority Address, to Address, amount uint64) error

	// Burn destroys amount units of the given mint held in the source vault.
	Burn(ctx context.Context, mint Address, from Address, authority Address, amount uint64) error

	// Balance reports the current balance of a vault.
	Balance(ctx context.Context, vault Address) (uint64, error)

	// VerifySigner reports whether the identity has proven control of its
	// key for the current request.
	VerifySigner(ctx context.Context, identity Address) bool

	// DeriveAddress deterministically derives an address from seed material.
	// The same seeds always yield the same address.
	DeriveAddress(seeds ...[]byte) Address

	// Now returns the ledger's notion of current time, used for entity
	// timestamps so they stay consistent with the ledger's clock.
	Now() time.Time
}
