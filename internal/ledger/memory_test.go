package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hypelabs/hyperd/internal/domain"
)

func TestTransferAuthority(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	vault := domain.Address("vault-1")
	owner := domain.Address("owner")
	stranger := domain.Address("stranger")

	require.NoError(t, l.CreateVault(ctx, vault, owner))
	require.NoError(t, l.Fund(vault, 1_000))

	err := l.Transfer(ctx, vault, stranger, stranger, 100)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, l.Transfer(ctx, vault, stranger, owner, 100))

	bal, err := l.Balance(ctx, vault)
	require.NoError(t, err)
	require.Equal(t, uint64(900), bal)

	bal, err = l.Balance(ctx, stranger)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal)
}

func TestTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	from := domain.Address("from")
	require.NoError(t, l.Fund(from, 10))

	err := l.Transfer(ctx, from, "to", from, 11)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err := l.Balance(ctx, from)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal)
}

func TestTransferUnknownSource(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	err := l.Transfer(ctx, "ghost", "to", "ghost", 1)
	require.ErrorIs(t, err, domain.ErrUnknownVault)
}

func TestCreateVaultIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	require.NoError(t, l.CreateVault(ctx, "v", "auth"))
	require.NoError(t, l.CreateVault(ctx, "v", "auth"))
	require.ErrorIs(t, l.CreateVault(ctx, "v", "other"), domain.ErrAlreadyExists)
}

func TestMintAndBurn(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	mint := domain.Address("mint")
	auth := domain.Address("mint-auth")
	holder := domain.Address("holder")

	require.NoError(t, l.CreateMint(ctx, mint, auth))
	require.NoError(t, l.CreateVault(ctx, holder, holder))

	err := l.Mint(ctx, mint, "not-auth", holder, 5)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, l.Mint(ctx, mint, auth, holder, 5))

	supply, err := l.MintSupply(mint)
	require.NoError(t, err)
	require.Equal(t, uint64(5), supply)

	err = l.Burn(ctx, mint, holder, auth, 2)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, l.Burn(ctx, mint, holder, holder, 2))

	supply, err = l.MintSupply(mint)
	require.NoError(t, err)
	require.Equal(t, uint64(3), supply)

	bal, err := l.Balance(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, uint64(3), bal)
}

func TestDeriveAddressDeterministic(t *testing.T) {
	l := NewMemory()

	a := l.DeriveAddress([]byte("shares"), []byte("mkt-1"), []byte("alice"))
	b := l.DeriveAddress([]byte("shares"), []byte("mkt-1"), []byte("alice"))
	c := l.DeriveAddress([]byte("shares"), []byte("mkt-1"), []byte("bob"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, domain.ZeroAddress, a)
}

func TestDeriveAddressSeedBoundaries(t *testing.T) {
	l := NewMemory()

	// Seed vectors that concatenate to the same bytes must not derive the
	// same address.
	a := l.DeriveAddress([]byte("shares"), []byte("mkt-1alice"))
	b := l.DeriveAddress([]byte("sharesmkt-1"), []byte("alice"))
	c := l.DeriveAddress([]byte("shares"), []byte("mkt-1"), []byte("alice"))

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, b, c)

	// The empty seed still contributes its position.
	d := l.DeriveAddress([]byte("shares"), []byte(""))
	e := l.DeriveAddress([]byte("shares"))
	require.NotEqual(t, d, e)
}

func TestVerifySigner(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	id := domain.Address("resolver")
	require.False(t, l.VerifySigner(ctx, id))
	l.RegisterSigner(id)
	require.True(t, l.VerifySigner(ctx, id))
}

func TestClockOverride(t *testing.T) {
	l := NewMemory()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return fixed })
	require.Equal(t, fixed, l.Now())
}
