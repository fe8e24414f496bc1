package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/hypelabs/hyperd/internal/curve"
	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/fees"
)

// CreateMarket validates the creation parameters and returns a fresh
// Discovery-phase market with its companion curve at zero supply and volume.
// Vault and mint addresses are derived deterministically from the market ID.
func (e *Engine) CreateMarket(
	ctx context.Context,
	g *domain.GlobalState,
	id string,
	creator domain.Address,
	args domain.MarketCreationArgs,
) (*domain.Market, *domain.BondingCurve, error) {
	if err := args.Validate(); err != nil {
		return nil, nil, err
	}

	volumeTarget := g.BondVolumeTarget
	if args.BondVolumeOverride != nil {
		volumeTarget = *args.BondVolumeOverride
	}
	liquidityTarget := g.BondLiquidityTarget
	if args.BondLiquidityOverride != nil {
		liquidityTarget = *args.BondLiquidityOverride
	}

	now := e.ledger.Now()
	m := &domain.Market{
		ID:                  id,
		GlobalID:            g.ID,
		Creator:             creator,
		MarketMint:          e.ledger.DeriveAddress([]byte("mint"), []byte(id)),
		QuoteVault:          e.ledger.DeriveAddress([]byte("quote"), []byte(id)),
		AttentionVault:      e.ledger.DeriveAddress([]byte("attention"), []byte(id)),
		State:               domain.MarketStateDiscovery,
		Supply:              0,
		Volume:              new(big.Int),
		Trades:              0,
		HypeScore:           new(big.Int),
		BasePrice:           args.BasePrice,
		SlopeBps:            args.SlopeBps,
		CurvatureBps:        args.CurvatureBps,
		MaxSupply:           args.MaxSupply,
		BondVolumeTarget:    volumeTarget,
		BondLiquidityTarget: liquidityTarget,
		Metadata:            args.Metadata,
		CreatedAt:           now,
	}
	c := &domain.BondingCurve{
		MarketID:     id,
		BasePrice:    args.BasePrice,
		SlopeBps:     args.SlopeBps,
		CurvatureBps: args.CurvatureBps,
		Supply:       0,
		Volume:       new(big.Int),
	}

	marketAuthority := domain.Address(id)
	if err := e.ledger.CreateMint(ctx, m.MarketMint, marketAuthority); err != nil {
		return nil, nil, fmt.Errorf("engine: create market mint: %w", err)
	}
	if err := e.ledger.CreateVault(ctx, m.QuoteVault, marketAuthority); err != nil {
		return nil, nil, fmt.Errorf("engine: create quote vault: %w", err)
	}
	if err := e.ledger.CreateVault(ctx, m.AttentionVault, marketAuthority); err != nil {
		return nil, nil, fmt.Errorf("engine: create attention vault: %w", err)
	}

	e.logger.InfoContext(ctx, "market created",
		slog.String("market_id", id),
		slog.Uint64("base_price", args.BasePrice),
		slog.Uint64("max_supply", args.MaxSupply),
	)
	return m, c, nil
}

// Trade executes one buy or sell against the bonding curve. Only
// Discovery-phase markets trade; a bonded market fails with ErrMarketBonded.
func (e *Engine) Trade(
	ctx context.Context,
	g *domain.GlobalState,
	m *domain.Market,
	c *domain.BondingCurve,
	user domain.Address,
	args domain.TradeArgs,
) (domain.TradeReceipt, error) {
	if m.State != domain.MarketStateDiscovery {
		return domain.TradeReceipt{}, domain.ErrMarketBonded
	}

	switch args.Direction {
	case domain.TradeBuy:
		return e.buy(ctx, g, m, c, user, args)
	case domain.TradeSell:
		return e.sell(ctx, g, m, c, user, args)
	default:
		return domain.TradeReceipt{}, fmt.Errorf("engine: unknown trade direction %q: %w", args.Direction, domain.ErrInvalidAmount)
	}
}

func (e *Engine) buy(
	ctx context.Context,
	g *domain.GlobalState,
	m *domain.Market,
	c *domain.BondingCurve,
	user domain.Address,
	args domain.TradeArgs,
) (domain.TradeReceipt, error) {
	if args.Quantity == 0 {
		return domain.TradeReceipt{}, domain.ErrInvalidAmount
	}
	remaining, err := subU64(m.MaxSupply, c.Supply)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	if args.Quantity > remaining {
		return domain.TradeReceipt{}, domain.ErrSupplyCapExceeded
	}

	cost, err := curve.QuoteForPurchase(c.BasePrice, c.SlopeBps, c.CurvatureBps, c.Supply, args.Quantity)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	split, err := fees.New(cost, g.AttentionFeeBps, g.CreatorFeeBps, g.TreasuryFeeBps)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	totalCost, err := addU64(cost, split.Total())
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	if totalCost > args.MaxSpend {
		return domain.TradeReceipt{}, domain.ErrSlippageExceeded
	}

	// All arithmetic on the post-trade state happens before any value moves.
	newSupply, err := addU64(c.Supply, args.Quantity)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	newTrades, err := addU64(m.Trades, 1)
	if err != nil {
		return domain.TradeReceipt{}, err
	}

	if err := e.ledger.Transfer(ctx, user, m.QuoteVault, user, cost); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("engine: buy cost transfer: %w", err)
	}
	if split.AttentionFee > 0 {
		if err := e.ledger.Transfer(ctx, user, m.AttentionVault, user, split.AttentionFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: buy attention fee: %w", err)
		}
	}
	if split.CreatorFee > 0 {
		if err := e.ledger.Transfer(ctx, user, m.Creator, user, split.CreatorFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: buy creator fee: %w", err)
		}
	}
	if split.TreasuryFee > 0 {
		if err := e.ledger.Transfer(ctx, user, g.Treasury, user, split.TreasuryFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: buy treasury fee: %w", err)
		}
	}
	shareVault := e.shareAccount(m.ID, user)
	if err := e.ledger.CreateVault(ctx, shareVault, user); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("engine: create share account: %w", err)
	}
	if err := e.ledger.Mint(ctx, m.MarketMint, domain.Address(m.ID), shareVault, args.Quantity); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("engine: mint shares: %w", err)
	}

	costBig := new(big.Int).SetUint64(cost)
	c.Supply = newSupply
	c.Volume = new(big.Int).Add(c.Volume, costBig)
	m.Supply = c.Supply
	m.Volume = new(big.Int).Add(m.Volume, costBig)
	m.Trades = newTrades

	now := e.ledger.Now()
	e.logger.DebugContext(ctx, "curve buy executed",
		slog.String("market_id", m.ID),
		slog.Uint64("quantity", args.Quantity),
		slog.Uint64("cost", cost),
	)
	return domain.TradeReceipt{
		MarketID:     m.ID,
		User:         user,
		Direction:    domain.TradeBuy,
		Quantity:     args.Quantity,
		Gross:        cost,
		AttentionFee: split.AttentionFee,
		CreatorFee:   split.CreatorFee,
		TreasuryFee:  split.TreasuryFee,
		Net:          totalCost,
		SupplyAfter:  newSupply,
		ExecutedAt:   now,
	}, nil
}

func (e *Engine) sell(
	ctx context.Context,
	g *domain.GlobalState,
	m *domain.Market,
	c *domain.BondingCurve,
	user domain.Address,
	args domain.TradeArgs,
) (domain.TradeReceipt, error) {
	if args.Quantity == 0 {
		return domain.TradeReceipt{}, domain.ErrInvalidAmount
	}
	if c.Supply < args.Quantity {
		return domain.TradeReceipt{}, domain.ErrInsufficientLiquidity
	}

	payout, err := curve.QuoteForSale(c.BasePrice, c.SlopeBps, c.CurvatureBps, c.Supply, args.Quantity)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	split, err := fees.New(payout, g.AttentionFeeBps, g.CreatorFeeBps, g.TreasuryFeeBps)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	netPayout, err := subU64(payout, split.Total())
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	if netPayout < args.MinReceive {
		return domain.TradeReceipt{}, domain.ErrSlippageExceeded
	}

	newSupply, err := subU64(c.Supply, args.Quantity)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	newTrades, err := addU64(m.Trades, 1)
	if err != nil {
		return domain.TradeReceipt{}, err
	}

	if err := e.ledger.Burn(ctx, m.MarketMint, e.shareAccount(m.ID, user), user, args.Quantity); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("engine: burn shares: %w", err)
	}
	marketAuthority := domain.Address(m.ID)
	if netPayout > 0 {
		if err := e.ledger.Transfer(ctx, m.QuoteVault, user, marketAuthority, netPayout); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: sell payout: %w", err)
		}
	}
	if split.AttentionFee > 0 {
		if err := e.ledger.Transfer(ctx, m.QuoteVault, m.AttentionVault, marketAuthority, split.AttentionFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: sell attention fee: %w", err)
		}
	}
	if split.CreatorFee > 0 {
		if err := e.ledger.Transfer(ctx, m.QuoteVault, m.Creator, marketAuthority, split.CreatorFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: sell creator fee: %w", err)
		}
	}
	if split.TreasuryFee > 0 {
		if err := e.ledger.Transfer(ctx, m.QuoteVault, g.Treasury, marketAuthority, split.TreasuryFee); err != nil {
			return domain.TradeReceipt{}, fmt.Errorf("engine: sell treasury fee: %w", err)
		}
	}

	// Volume tracks turnover: sells accumulate the gross payout, they do not
	// net it out.
	payoutBig := new(big.Int).SetUint64(payout)
	c.Supply = newSupply
	c.Volume = new(big.Int).Add(c.Volume, payoutBig)
	m.Supply = c.Supply
	m.Volume = new(big.Int).Add(m.Volume, payoutBig)
	m.Trades = newTrades

	now := e.ledger.Now()
	e.logger.DebugContext(ctx, "curve sell executed",
		slog.String("market_id", m.ID),
		slog.Uint64("quantity", args.Quantity),
		slog.Uint64("payout", payout),
	)
	return domain.TradeReceipt{
		MarketID:     m.ID,
		User:         user,
		Direction:    domain.TradeSell,
		Quantity:     args.Quantity,
		Gross:        payout,
		AttentionFee: split.AttentionFee,
		CreatorFee:   split.CreatorFee,
		TreasuryFee:  split.TreasuryFee,
		Net:          netPayout,
		SupplyAfter:  newSupply,
		ExecutedAt:   now,
	}, nil
}

// Bond transitions a Discovery market to Bonded once both thresholds hold:
// cumulative volume must reach the volume target AND the quote vault must
// hold at least the liquidity target. Meeting only one is not enough. A
// pending resolution bound to the resolver is created as part of the same
// operation.
func (e *Engine) Bond(
	ctx context.Context,
	g *domain.GlobalState,
	m *domain.Market,
	resolver domain.Address,
) (*domain.Resolution, error) {
	if m.State != domain.MarketStateDiscovery {
		return nil, domain.ErrMarketBonded
	}
	if m.Volume.Cmp(new(big.Int).SetUint64(m.BondVolumeTarget)) < 0 {
		return nil, domain.ErrBondThresholdNotMet
	}
	balance, err := e.ledger.Balance(ctx, m.QuoteVault)
	if err != nil {
		return nil, fmt.Errorf("engine: bond vault balance: %w", err)
	}
	if balance < m.BondLiquidityTarget {
		return nil, domain.ErrBondThresholdNotMet
	}

	now := e.ledger.Now()
	m.State = domain.MarketStateBonded
	m.BondedAt = &now
	res := domain.NewResolution(m.ID, resolver, now)

	e.logger.InfoContext(ctx, "market bonded",
		slog.String("market_id", m.ID),
		slog.String("resolver", string(resolver)),
		slog.Uint64("vault_balance", balance),
	)
	return res, nil
}

// Resolve finalizes a bonded market's resolution. It is one-shot: a second
// call fails with ErrResolutionFinal and leaves the recorded outcome and
// settlement price untouched. Only the designated resolver may resolve;
// signature verification happens before this is reached.
func (e *Engine) Resolve(
	ctx context.Context,
	m *domain.Market,
	res *domain.Resolution,
	caller domain.Address,
	outcome domain.Outcome,
	settlementPrice uint64,
) error {
	if m.State != domain.MarketStateBonded {
		return domain.ErrMarketNotBonded
	}
	if caller != res.Resolver {
		return domain.ErrUnauthorized
	}
	if err := res.Finalize(outcome, settlementPrice, e.ledger.Now()); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", m.ID),
		slog.String("outcome", string(outcome)),
		slog.Uint64("settlement_price", settlementPrice),
	)
	return nil
}

// Redeem burns quantity shares against a finalized resolution. A Yes outcome
// pays settlement_price per share with no fee deduction; a No outcome burns
// the shares for nothing.
func (e *Engine) Redeem(
	ctx context.Context,
	m *domain.Market,
	res *domain.Resolution,
	user domain.Address,
	quantity uint64,
) (uint64, error) {
	if quantity == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if res.State != domain.ResolutionFinalized {
		return 0, domain.ErrResolutionPending
	}

	var payout uint64
	switch res.Outcome {
	case domain.OutcomeYes:
		p, err := mulU64(res.SettlementPrice, quantity)
		if err != nil {
			return 0, err
		}
		payout = p
	case domain.OutcomeNo:
		payout = 0
	default:
		// Unreachable after finalization; fail closed rather than pay out.
		return 0, domain.ErrInvalidOutcome
	}

	if err := e.ledger.Burn(ctx, m.MarketMint, e.shareAccount(m.ID, user), user, quantity); err != nil {
		return 0, fmt.Errorf("engine: redeem burn: %w", err)
	}
	if payout > 0 {
		if err := e.ledger.Transfer(ctx, m.QuoteVault, user, domain.Address(m.ID), payout); err != nil {
			return 0, fmt.Errorf("engine: redeem payout: %w", err)
		}
	}

	e.logger.DebugContext(ctx, "shares redeemed",
		slog.String("market_id", m.ID),
		slog.Uint64("quantity", quantity),
		slog.Uint64("payout", payout),
	)
	return payout, nil
}

// Harvest sweeps the market's entire attention-fee balance to the global
// attention vault and mints the caller a reward of AttnRewardRatio tokens
// per unit swept. It is deliberately permissionless: anyone may trigger it
// and collect the reward, which keeps attention fees flowing to the global
// vault. Returns the amount swept and the reward minted.
func (e *Engine) Harvest(
	ctx context.Context,
	g *domain.GlobalState,
	m *domain.Market,
	caller domain.Address,
) (uint64, uint64, error) {
	balance, err := e.ledger.Balance(ctx, m.AttentionVault)
	if err != nil {
		return 0, 0, fmt.Errorf("engine: attention vault balance: %w", err)
	}
	if balance == 0 {
		return 0, 0, domain.ErrNothingToHarvest
	}
	minted, err := mulU64(balance, AttnRewardRatio)
	if err != nil {
		return 0, 0, err
	}

	if err := e.ledger.Transfer(ctx, m.AttentionVault, g.AttentionVault, domain.Address(m.ID), balance); err != nil {
		return 0, 0, fmt.Errorf("engine: harvest sweep: %w", err)
	}
	if minted > 0 {
		attnDest := e.attnAccount(caller)
		if err := e.ledger.CreateVault(ctx, attnDest, caller); err != nil {
			return 0, 0, fmt.Errorf("engine: create reward account: %w", err)
		}
		if err := e.ledger.Mint(ctx, g.AttentionMint, domain.Address(g.ID), attnDest, minted); err != nil {
			return 0, 0, fmt.Errorf("engine: harvest reward mint: %w", err)
		}
	}

	m.HypeScore = new(big.Int).Add(m.HypeScore, new(big.Int).SetUint64(balance))

	e.logger.InfoContext(ctx, "attention harvested",
		slog.String("market_id", m.ID),
		slog.String("caller", string(caller)),
		slog.Uint64("amount", balance),
		slog.Uint64("reward", minted),
	)
	return balance, minted, nil
}
