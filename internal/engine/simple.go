package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/hypelabs/hyperd/internal/cpmm"
	"github.com/hypelabs/hyperd/internal/domain"
)

// CreateSimpleMarket seeds a two-pool binary market with the fixed starting
// liquidity in each pool, funded from the creator's account.
func (e *Engine) CreateSimpleMarket(
	ctx context.Context,
	id string,
	creator domain.Address,
	resolver domain.Address,
) (*domain.SimpleMarket, error) {
	m := &domain.SimpleMarket{
		ID:        id,
		Creator:   creator,
		Resolver:  resolver,
		YesPool:   domain.SimpleSeedLiquidity,
		NoPool:    domain.SimpleSeedLiquidity,
		YesVault:  e.ledger.DeriveAddress([]byte("yes_vault"), []byte(id)),
		NoVault:   e.ledger.DeriveAddress([]byte("no_vault"), []byte(id)),
		Status:    domain.SimpleMarketUnbonded,
		CreatedAt: e.ledger.Now(),
	}

	marketAuthority := domain.Address(id)
	if err := e.ledger.CreateVault(ctx, m.YesVault, marketAuthority); err != nil {
		return nil, fmt.Errorf("engine: create yes vault: %w", err)
	}
	if err := e.ledger.CreateVault(ctx, m.NoVault, marketAuthority); err != nil {
		return nil, fmt.Errorf("engine: create no vault: %w", err)
	}
	if err := e.ledger.Transfer(ctx, creator, m.YesVault, creator, m.YesPool); err != nil {
		return nil, fmt.Errorf("engine: seed yes vault: %w", err)
	}
	if err := e.ledger.Transfer(ctx, creator, m.NoVault, creator, m.NoPool); err != nil {
		return nil, fmt.Errorf("engine: seed no vault: %w", err)
	}

	e.logger.InfoContext(ctx, "simple market created",
		slog.String("market_id", id),
		slog.String("resolver", string(resolver)),
	)
	return m, nil
}

// BuySide buys into one side of a simple market. A flat 2% fee comes off the
// top; shares are issued against the pre-credit pool balances and the
// purchased side's pool is credited with the net amount afterwards. The
// position is created lazily by the caller on first touch.
func (e *Engine) BuySide(
	ctx context.Context,
	m *domain.SimpleMarket,
	pos *domain.UserPosition,
	buyer domain.Address,
	treasury domain.Address,
	side domain.Side,
	amount uint64,
) (uint64, error) {
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if !side.Valid() {
		return 0, domain.ErrInvalidOutcome
	}

	fee := amount / domain.SimpleFeeDivisor
	net := amount - fee

	shares := cpmm.IssueShares(m.Pool(side.Opposite()), m.Pool(side), net)

	newPool, err := addU64(m.Pool(side), net)
	if err != nil {
		return 0, err
	}
	newShares, err := addU64(pos.Shares(side), shares)
	if err != nil {
		return 0, err
	}

	if err := e.ledger.Transfer(ctx, buyer, m.Vault(side), buyer, net); err != nil {
		return 0, fmt.Errorf("engine: buy side deposit: %w", err)
	}
	if fee > 0 {
		if err := e.ledger.Transfer(ctx, buyer, treasury, buyer, fee); err != nil {
			return 0, fmt.Errorf("engine: buy side fee: %w", err)
		}
	}

	if side == domain.SideYes {
		m.YesPool = newPool
		pos.YesShares = newShares
	} else {
		m.NoPool = newPool
		pos.NoShares = newShares
	}
	pos.UpdatedAt = e.ledger.Now()

	e.logger.DebugContext(ctx, "simple buy executed",
		slog.String("market_id", m.ID),
		slog.String("side", string(side)),
		slog.Uint64("net", net),
		slog.Uint64("shares", shares),
	)
	return shares, nil
}

// SellShares sells shares back into one side of a simple market. The payout
// comes from the constant-product redemption; a 2% fee is taken from the
// payout (not the input). The pool is decremented by the net payout while
// the vault pays out net to the seller and fee to the treasury — so pool
// accounting retains the fee the vault has already surrendered. That drift
// is deliberate inherited behavior, pinned by tests, not something to "fix"
// in passing.
func (e *Engine) SellShares(
	ctx context.Context,
	m *domain.SimpleMarket,
	pos *domain.UserPosition,
	seller domain.Address,
	treasury domain.Address,
	side domain.Side,
	shares uint64,
) (uint64, error) {
	if shares == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if !side.Valid() {
		return 0, domain.ErrInvalidOutcome
	}
	if pos.Shares(side) < shares {
		return 0, domain.ErrInsufficientShares
	}

	payout := cpmm.RedeemReturn(m.Pool(side.Opposite()), m.Pool(side), shares)
	fee := payout / domain.SimpleFeeDivisor
	netPayout := payout - fee

	// RedeemReturn saturates at the current pool so this cannot underflow,
	// but the subtraction stays checked regardless.
	newPool, err := subU64(m.Pool(side), netPayout)
	if err != nil {
		return 0, err
	}
	newShares, err := subU64(pos.Shares(side), shares)
	if err != nil {
		return 0, err
	}

	marketAuthority := domain.Address(m.ID)
	if netPayout > 0 {
		if err := e.ledger.Transfer(ctx, m.Vault(side), seller, marketAuthority, netPayout); err != nil {
			return 0, fmt.Errorf("engine: sell payout: %w", err)
		}
	}
	if fee > 0 {
		if err := e.ledger.Transfer(ctx, m.Vault(side), treasury, marketAuthority, fee); err != nil {
			return 0, fmt.Errorf("engine: sell fee: %w", err)
		}
	}

	if side == domain.SideYes {
		m.YesPool = newPool
		pos.YesShares = newShares
	} else {
		m.NoPool = newPool
		pos.NoShares = newShares
	}
	pos.UpdatedAt = e.ledger.Now()

	e.logger.DebugContext(ctx, "simple sell executed",
		slog.String("market_id", m.ID),
		slog.String("side", string(side)),
		slog.Uint64("shares", shares),
		slog.Uint64("net_payout", netPayout),
	)
	return netPayout, nil
}

// ResolveSimple records the winning side. One-shot: a resolved market fails
// with ErrAlreadyResolved, and only the designated resolver may call it.
func (e *Engine) ResolveSimple(
	ctx context.Context,
	m *domain.SimpleMarket,
	caller domain.Address,
	winning domain.Side,
) error {
	if m.Status == domain.SimpleMarketResolved {
		return domain.ErrAlreadyResolved
	}
	if caller != m.Resolver {
		return domain.ErrUnauthorized
	}
	if !winning.Valid() {
		return domain.ErrInvalidOutcome
	}

	w := winning
	m.WinningSide = &w
	m.Status = domain.SimpleMarketResolved

	e.logger.InfoContext(ctx, "simple market resolved",
		slog.String("market_id", m.ID),
		slog.String("winning_side", string(winning)),
	)
	return nil
}

// Claim pays a winning position its pro-rata cut of the losing pool:
// winning_shares * losing_pool / winning_pool, floored, funded from the
// losing side's vault. One-shot per position via the HasClaimed latch; a
// zero-share claim still latches.
func (e *Engine) Claim(
	ctx context.Context,
	m *domain.SimpleMarket,
	pos *domain.UserPosition,
	claimer domain.Address,
) (uint64, error) {
	if m.Status != domain.SimpleMarketResolved || m.WinningSide == nil {
		return 0, domain.ErrUnresolved
	}
	if pos.HasClaimed {
		return 0, domain.ErrAlreadyClaimed
	}

	winning := *m.WinningSide
	losing := winning.Opposite()
	payout := proRata(pos.Shares(winning), m.Pool(losing), m.Pool(winning))

	if payout > 0 {
		if err := e.ledger.Transfer(ctx, m.Vault(losing), claimer, domain.Address(m.ID), payout); err != nil {
			return 0, fmt.Errorf("engine: claim payout: %w", err)
		}
	}

	pos.HasClaimed = true
	pos.UpdatedAt = e.ledger.Now()

	e.logger.DebugContext(ctx, "position claimed",
		slog.String("market_id", m.ID),
		slog.String("user", string(pos.User)),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// proRata computes shares * losingPool / winningPool in a widened domain.
func proRata(shares, losingPool, winningPool uint64) uint64 {
	if winningPool == 0 {
		return 0
	}
	n := new(uint256.Int).Mul(uint256.NewInt(shares), uint256.NewInt(losingPool))
	n.Div(n, uint256.NewInt(winningPool))
	// shares <= winningPool's share issuance keeps this within uint64 for
	// any reachable state; saturate rather than wrap if it ever is not.
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}
