package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/ledger"
)

// Buying 10 shares of a base=1000 slope=100bps curve at zero supply costs
// exactly 10000 gross; the 1/2/3% fee buckets come on top.
func TestBuyMovesCostAndFees(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)

	require.NoError(t, mem.Fund(testUser, 20_000))

	receipt, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  20_000,
	})
	require.NoError(t, err)

	require.Equal(t, uint64(10_000), receipt.Gross)
	require.Equal(t, uint64(100), receipt.AttentionFee)
	require.Equal(t, uint64(200), receipt.CreatorFee)
	require.Equal(t, uint64(300), receipt.TreasuryFee)
	require.Equal(t, uint64(10_600), receipt.Net)
	require.Equal(t, uint64(10), receipt.SupplyAfter)

	require.Equal(t, uint64(10), m.Supply)
	require.Equal(t, uint64(10), c.Supply)
	require.Equal(t, uint64(1), m.Trades)
	require.Equal(t, big.NewInt(10_000), m.Volume)
	require.Equal(t, big.NewInt(10_000), c.Volume)

	bal := func(a domain.Address) uint64 {
		b, err := mem.Balance(ctx, a)
		require.NoError(t, err)
		return b
	}
	require.Equal(t, uint64(10_000), bal(m.QuoteVault))
	require.Equal(t, uint64(100), bal(m.AttentionVault))
	require.Equal(t, uint64(200), bal(testCreator))
	require.Equal(t, uint64(300), bal(testTreasury))
	require.Equal(t, uint64(20_000-10_600), bal(testUser))

	shares, err := mem.Balance(ctx, e.shareAccount(m.ID, testUser))
	require.NoError(t, err)
	require.Equal(t, uint64(10), shares)
}

func TestBuySlippageGuard(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)
	require.NoError(t, mem.Fund(testUser, 20_000))

	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  10_599, // one under the all-in cost
	})
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)
	require.Equal(t, uint64(0), m.Supply)
	require.Equal(t, uint64(0), m.Trades)
}

func TestBuySupplyCap(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c, err := e.CreateMarket(ctx, g, "capped", testCreator, domain.MarketCreationArgs{
		BasePrice: 1000, SlopeBps: 100, MaxSupply: 5,
	})
	require.NoError(t, err)
	require.NoError(t, mem.Fund(testUser, 100_000))

	_, err = e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 6, MaxSpend: 100_000,
	})
	require.ErrorIs(t, err, domain.ErrSupplyCapExceeded)

	// The cap is on cumulative supply, not per trade.
	_, err = e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 5, MaxSpend: 100_000,
	})
	require.NoError(t, err)
	_, err = e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 1, MaxSpend: 100_000,
	})
	require.ErrorIs(t, err, domain.ErrSupplyCapExceeded)
}

func TestZeroQuantityTrade(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)

	for _, dir := range []domain.TradeDirection{domain.TradeBuy, domain.TradeSell} {
		_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{Direction: dir})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
}

// Selling straight back covers the same supply range, so the gross payout
// equals the gross cost; fees are charged on both legs and volume counts
// both legs' gross.
func TestSellRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)
	require.NoError(t, mem.Fund(testUser, 20_000))

	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
	})
	require.NoError(t, err)

	receipt, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeSell, Quantity: 10, MinReceive: 9_400,
	})
	require.NoError(t, err)

	require.Equal(t, uint64(10_000), receipt.Gross)
	require.Equal(t, uint64(9_400), receipt.Net)
	require.Equal(t, uint64(0), receipt.SupplyAfter)
	require.Equal(t, uint64(0), m.Supply)
	require.Equal(t, uint64(2), m.Trades)
	require.Equal(t, big.NewInt(20_000), m.Volume)

	bal, err := mem.Balance(ctx, m.QuoteVault)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bal)

	// creator and treasury collected fees on both legs
	creatorBal, err := mem.Balance(ctx, testCreator)
	require.NoError(t, err)
	require.Equal(t, uint64(400), creatorBal)

	userBal, err := mem.Balance(ctx, testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(20_000-10_600+9_400), userBal)

	supply, err := mem.MintSupply(m.MarketMint)
	require.NoError(t, err)
	require.Equal(t, uint64(0), supply)
}

func TestSellSlippageGuard(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)
	require.NoError(t, mem.Fund(testUser, 20_000))

	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
	})
	require.NoError(t, err)

	_, err = e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeSell, Quantity: 10, MinReceive: 9_401,
	})
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)
	require.Equal(t, uint64(10), m.Supply)
}

func TestSellMoreThanSupply(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)

	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeSell, Quantity: 1,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

// Bonding requires BOTH thresholds: cumulative volume and current vault
// liquidity. Meeting just one is not enough.
func TestBondThresholds(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)

	t.Run("volume short", func(t *testing.T) {
		g := newTestGlobal(t, e, 10_001, 10_000)
		m, c := newTestMarket(t, e, g)
		require.NoError(t, mem.Fund(testUser, 20_000))
		_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
			Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
		})
		require.NoError(t, err)

		_, err = e.Bond(ctx, g, m, testResolver)
		require.ErrorIs(t, err, domain.ErrBondThresholdNotMet)
		require.Equal(t, domain.MarketStateDiscovery, m.State)
	})

	t.Run("liquidity short", func(t *testing.T) {
		e2, mem2 := newTestEngine(t)
		g := newTestGlobal(t, e2, 10_000, 10_001)
		m, c := newTestMarket(t, e2, g)
		require.NoError(t, mem2.Fund(testUser, 20_000))
		_, err := e2.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
			Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
		})
		require.NoError(t, err)

		_, err = e2.Bond(ctx, g, m, testResolver)
		require.ErrorIs(t, err, domain.ErrBondThresholdNotMet)
	})
}

// bondedMarket drives a market through buy and bond, returning it together
// with its pending resolution.
func bondedMarket(t *testing.T, ctx context.Context, e *Engine, mem *ledger.Memory, g *domain.GlobalState) (*domain.Market, *domain.BondingCurve, *domain.Resolution) {
	t.Helper()
	m, c := newTestMarket(t, e, g)
	require.NoError(t, mem.Fund(testUser, 20_000))
	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
	})
	require.NoError(t, err)
	res, err := e.Bond(ctx, g, m, testResolver)
	require.NoError(t, err)
	return m, c, res
}

func TestBondTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c, res := bondedMarket(t, ctx, e, mem, g)

	require.Equal(t, domain.MarketStateBonded, m.State)
	require.NotNil(t, m.BondedAt)
	require.Equal(t, domain.ResolutionPending, res.State)
	require.Equal(t, domain.OutcomeUndecided, res.Outcome)
	require.Equal(t, testResolver, res.Resolver)

	// bonded markets no longer trade
	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 1, MaxSpend: 20_000,
	})
	require.ErrorIs(t, err, domain.ErrMarketBonded)

	// and cannot bond again
	_, err = e.Bond(ctx, g, m, testResolver)
	require.ErrorIs(t, err, domain.ErrMarketBonded)
}

func TestResolveAuthorizationAndFinality(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, _, res := bondedMarket(t, ctx, e, mem, g)

	err := e.Resolve(ctx, m, res, "impostor", domain.OutcomeYes, 1000)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, domain.ResolutionPending, res.State)

	err = e.Resolve(ctx, m, res, testResolver, domain.OutcomeUndecided, 1000)
	require.ErrorIs(t, err, domain.ErrInvalidOutcome)
	require.Equal(t, domain.ResolutionPending, res.State)

	require.NoError(t, e.Resolve(ctx, m, res, testResolver, domain.OutcomeYes, 1000))
	require.Equal(t, domain.ResolutionFinalized, res.State)
	require.Equal(t, domain.OutcomeYes, res.Outcome)
	require.Equal(t, uint64(1000), res.SettlementPrice)
	require.NotNil(t, res.ResolvedAt)

	// one-shot: the second attempt changes nothing
	err = e.Resolve(ctx, m, res, testResolver, domain.OutcomeNo, 5)
	require.ErrorIs(t, err, domain.ErrResolutionFinal)
	require.Equal(t, domain.OutcomeYes, res.Outcome)
	require.Equal(t, uint64(1000), res.SettlementPrice)
}

func TestResolveRequiresBondedMarket(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, _ := newTestMarket(t, e, g)
	res := domain.NewResolution(m.ID, testResolver, m.CreatedAt)

	err := e.Resolve(ctx, m, res, testResolver, domain.OutcomeYes, 1000)
	require.ErrorIs(t, err, domain.ErrMarketNotBonded)
}

func TestRedeemYesPaysSettlementPrice(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, _, res := bondedMarket(t, ctx, e, mem, g)
	require.NoError(t, e.Resolve(ctx, m, res, testResolver, domain.OutcomeYes, 1000))

	payout, err := e.Redeem(ctx, m, res, testUser, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), payout)

	vaultBal, err := mem.Balance(ctx, m.QuoteVault)
	require.NoError(t, err)
	require.Equal(t, uint64(0), vaultBal)

	shares, err := mem.Balance(ctx, e.shareAccount(m.ID, testUser))
	require.NoError(t, err)
	require.Equal(t, uint64(0), shares)
}

func TestRedeemNoBurnsForNothing(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, _, res := bondedMarket(t, ctx, e, mem, g)
	require.NoError(t, e.Resolve(ctx, m, res, testResolver, domain.OutcomeNo, 1000))

	payout, err := e.Redeem(ctx, m, res, testUser, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(0), payout)

	// the vault keeps its liquidity, the shares are gone
	vaultBal, err := mem.Balance(ctx, m.QuoteVault)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), vaultBal)

	supply, err := mem.MintSupply(m.MarketMint)
	require.NoError(t, err)
	require.Equal(t, uint64(0), supply)
}

func TestRedeemBeforeFinalization(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, _, res := bondedMarket(t, ctx, e, mem, g)

	_, err := e.Redeem(ctx, m, res, testUser, 10)
	require.ErrorIs(t, err, domain.ErrResolutionPending)
}

func TestHarvestSweepsAndRewards(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	m, c := newTestMarket(t, e, g)
	require.NoError(t, mem.Fund(testUser, 20_000))
	_, err := e.Trade(ctx, g, m, c, testUser, domain.TradeArgs{
		Direction: domain.TradeBuy, Quantity: 10, MaxSpend: 20_000,
	})
	require.NoError(t, err)

	keeper := domain.Address("keeper")
	swept, minted, err := e.Harvest(ctx, g, m, keeper)
	require.NoError(t, err)
	require.Equal(t, uint64(100), swept)
	require.Equal(t, uint64(1_000), minted)
	require.Equal(t, big.NewInt(100), m.HypeScore)

	globalBal, err := mem.Balance(ctx, g.AttentionVault)
	require.NoError(t, err)
	require.Equal(t, uint64(100), globalBal)

	rewardBal, err := mem.Balance(ctx, e.attnAccount(keeper))
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), rewardBal)

	attnSupply, err := mem.MintSupply(g.AttentionMint)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), attnSupply)

	// the vault is empty now, so a second harvest has nothing to sweep
	_, _, err = e.Harvest(ctx, g, m, keeper)
	require.ErrorIs(t, err, domain.ErrNothingToHarvest)
	require.Equal(t, big.NewInt(100), m.HypeScore)
}
