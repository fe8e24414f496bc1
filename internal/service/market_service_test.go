package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypelabs/hyperd/internal/crypto"
	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/engine"
	"github.com/hypelabs/hyperd/internal/ledger"
)

// Well-known development key, not a production secret.
const testResolverKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type marketFixture struct {
	svc      *MarketService
	mem      *ledger.Memory
	markets  *memMarketStore
	trades   *memTradeStore
	cache    *memCache
	bus      *memBus
	signer   *crypto.Signer
	resolver domain.Address
	global   domain.GlobalState
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	ctx := context.Background()

	mem := ledger.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(mem, logger)

	signer, err := crypto.NewSigner(testResolverKey)
	require.NoError(t, err)
	resolver := domain.Address(signer.Address().Hex())
	mem.RegisterSigner(resolver)

	markets := newMemMarketStore()
	trades := &memTradeStore{}
	cache := newMemCache()
	bus := &memBus{}

	svc := NewMarketService(
		eng, mem,
		&memGlobalStore{}, markets, newMemResolutionStore(), trades,
		cache, newMemLocks(), bus, logger,
	)

	g, err := svc.InitializeGlobal(ctx, "global-1", domain.GlobalParams{
		Authority:           "admin",
		QuoteMint:           "quote-mint",
		Treasury:            "treasury",
		AttentionFeeBps:     100,
		CreatorFeeBps:       200,
		TreasuryFeeBps:      300,
		BondVolumeTarget:    1_000,
		BondLiquidityTarget: 500,
	})
	require.NoError(t, err)

	return &marketFixture{
		svc: svc, mem: mem, markets: markets, trades: trades,
		cache: cache, bus: bus, signer: signer, resolver: resolver, global: g,
	}
}

func (f *marketFixture) createMarket(t *testing.T, ctx context.Context) domain.Market {
	t.Helper()
	m, err := f.svc.CreateMarket(ctx, "creator", domain.MarketCreationArgs{
		BasePrice: 1_000,
		SlopeBps:  100,
		MaxSupply: 1_000_000,
		Metadata:  []byte("will it rain tomorrow"),
	})
	require.NoError(t, err)
	return m
}

func TestInitializeGlobalIsSingleton(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()

	_, err := f.svc.InitializeGlobal(ctx, "global-2", domain.GlobalParams{
		Authority: "admin", QuoteMint: "quote-mint", Treasury: "treasury",
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreateMarketPersistsAndPublishes(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()

	m := f.createMarket(t, ctx)
	require.NotEmpty(t, m.ID)
	require.Equal(t, domain.MarketStateDiscovery, m.State)

	stored, curve, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, stored.ID)
	require.Equal(t, m.ID, curve.MarketID)

	cached, err := f.cache.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, cached.ID)

	require.Len(t, f.bus.published(ChannelEvents), 1)
}

func TestTradeAssignsReceiptAndRecordsHistory(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)
	require.NoError(t, f.mem.Fund("alice", 1_000_000))

	receipt, err := f.svc.Trade(ctx, m.ID, "alice", domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  20_000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.ID)
	require.Equal(t, uint64(10_000), receipt.Gross)
	require.Equal(t, uint64(10_600), receipt.Net)

	stored, curve, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), stored.Supply)
	require.Equal(t, uint64(10), curve.Supply)

	history, err := f.trades.ListByMarket(ctx, m.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, receipt.ID, history[0].ID)

	require.Len(t, f.bus.published(ChannelTrades), 1)
}

func TestTradeEngineFailureLeavesStoreUntouched(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)
	require.NoError(t, f.mem.Fund("alice", 1_000_000))

	_, err := f.svc.Trade(ctx, m.ID, "alice", domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  1, // below total cost
	})
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)

	stored, _, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Supply)

	history, err := f.trades.ListByMarket(ctx, m.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestBondThenResolveWithSignedAttestation(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)
	require.NoError(t, f.mem.Fund("alice", 1_000_000))

	// One buy of 10 shares turns over 10_000 quote, clearing both the
	// volume target (1_000) and the vault liquidity target (500).
	_, err := f.svc.Trade(ctx, m.ID, "alice", domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  20_000,
	})
	require.NoError(t, err)

	res, err := f.svc.Bond(ctx, m.ID, f.resolver)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionPending, res.State)

	stored, _, err := f.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStateBonded, stored.State)

	att := crypto.Attestation{
		MarketID:        m.ID,
		Outcome:         string(domain.OutcomeYes),
		SettlementPrice: 1_000,
		Timestamp:       f.mem.Now().Unix(),
	}
	sig, err := f.signer.SignAttestation(att)
	require.NoError(t, err)

	final, err := f.svc.Resolve(ctx, att, sig)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionFinalized, final.State)
	require.Equal(t, domain.OutcomeYes, final.Outcome)
	require.Equal(t, uint64(1_000), final.SettlementPrice)

	// Second finalization attempt fails.
	_, err = f.svc.Resolve(ctx, att, sig)
	require.ErrorIs(t, err, domain.ErrResolutionFinal)
}

func TestResolveRejectsUnknownSigner(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)

	// A valid signature from a key the ledger has never seen.
	stranger, err := crypto.NewSigner("59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	require.NoError(t, err)

	att := crypto.Attestation{MarketID: m.ID, Outcome: string(domain.OutcomeNo), Timestamp: 1}
	sig, err := stranger.SignAttestation(att)
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, att, sig)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestQuoteTradeMatchesExecution(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)
	require.NoError(t, f.mem.Fund("alice", 1_000_000))

	quote, err := f.svc.QuoteTrade(ctx, m.ID, domain.TradeBuy, 10)
	require.NoError(t, err)

	receipt, err := f.svc.Trade(ctx, m.ID, "alice", domain.TradeArgs{
		Direction: domain.TradeBuy,
		Quantity:  10,
		MaxSpend:  quote.Net,
	})
	require.NoError(t, err)
	require.Equal(t, quote.Gross, receipt.Gross)
	require.Equal(t, quote.Net, receipt.Net)
	require.Equal(t, quote.AttentionFee, receipt.AttentionFee)
}

func TestQuoteTradeBuyOverflowFailsClosed(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()

	// gross alone saturates u64, so gross plus fees cannot be represented.
	m, err := f.svc.CreateMarket(ctx, "creator", domain.MarketCreationArgs{
		BasePrice: math.MaxUint64,
		SlopeBps:  1,
		MaxSupply: 1,
	})
	require.NoError(t, err)

	_, err = f.svc.QuoteTrade(ctx, m.ID, domain.TradeBuy, 1)
	require.ErrorIs(t, err, domain.ErrMathOverflow)
}

func TestEnsureGlobalBootstrapsOnce(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewMarketService(
		engine.New(mem, logger), mem,
		&memGlobalStore{}, newMemMarketStore(), newMemResolutionStore(), &memTradeStore{},
		newMemCache(), newMemLocks(), &memBus{}, logger,
	)

	params := domain.GlobalParams{
		Authority:           "admin",
		QuoteMint:           "quote-mint",
		Treasury:            "treasury",
		AttentionFeeBps:     100,
		CreatorFeeBps:       200,
		TreasuryFeeBps:      300,
		BondVolumeTarget:    1_000,
		BondLiquidityTarget: 500,
	}
	g, err := svc.EnsureGlobal(ctx, "global-1", params)
	require.NoError(t, err)
	require.Equal(t, "global-1", g.ID)

	// A restart with different parameters must not touch the live protocol.
	changed := params
	changed.TreasuryFeeBps = 9_000
	again, err := svc.EnsureGlobal(ctx, "global-other", changed)
	require.NoError(t, err)
	require.Equal(t, g, again)
}

func TestGetMarketFallsBackToStore(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	m := f.createMarket(t, ctx)

	require.NoError(t, f.cache.Invalidate(ctx, m.ID))
	setsBefore := f.cache.sets

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)

	// The miss back-filled the cache.
	require.Equal(t, setsBefore+1, f.cache.sets)
}
