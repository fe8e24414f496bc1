package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/ledger"
)

const (
	testTreasury = domain.Address("treasury")
	testCreator  = domain.Address("creator")
	testResolver = domain.Address("resolver")
	testUser     = domain.Address("alice")
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Memory) {
	t.Helper()
	mem := ledger.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mem, logger), mem
}

// newTestGlobal initializes a singleton with 1% attention, 2% creator and 3%
// treasury fees and the given bond targets.
func newTestGlobal(t *testing.T, e *Engine, volumeTarget, liquidityTarget uint64) *domain.GlobalState {
	t.Helper()
	g, err := e.InitializeGlobal(context.Background(), "global-1", domain.GlobalParams{
		Authority:           "admin",
		QuoteMint:           "quote-mint",
		Treasury:            testTreasury,
		AttentionFeeBps:     100,
		CreatorFeeBps:       200,
		TreasuryFeeBps:      300,
		BondVolumeTarget:    volumeTarget,
		BondLiquidityTarget: liquidityTarget,
	})
	require.NoError(t, err)
	return g
}

func newTestMarket(t *testing.T, e *Engine, g *domain.GlobalState) (*domain.Market, *domain.BondingCurve) {
	t.Helper()
	m, c, err := e.CreateMarket(context.Background(), g, "mkt-1", testCreator, domain.MarketCreationArgs{
		BasePrice: 1000,
		SlopeBps:  100,
		MaxSupply: 1_000_000,
		Metadata:  []byte("will it rain tomorrow"),
	})
	require.NoError(t, err)
	return m, c
}

func TestInitializeGlobalRejectsBadFees(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.InitializeGlobal(context.Background(), "g", domain.GlobalParams{
		AttentionFeeBps: 5000,
		CreatorFeeBps:   5000,
		TreasuryFeeBps:  1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidFee)
}

func TestCreateMarketValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	g := newTestGlobal(t, e, 10_000, 10_000)
	ctx := context.Background()

	cases := []struct {
		name string
		args domain.MarketCreationArgs
		want error
	}{
		{"zero max supply", domain.MarketCreationArgs{BasePrice: 1, SlopeBps: 1}, domain.ErrInvalidSupply},
		{"zero base price", domain.MarketCreationArgs{SlopeBps: 1, MaxSupply: 10}, domain.ErrInvalidPrice},
		{"zero slope", domain.MarketCreationArgs{BasePrice: 1, MaxSupply: 10}, domain.ErrInvalidSlope},
		{"supply over protocol cap", domain.MarketCreationArgs{BasePrice: 1, SlopeBps: 1, MaxSupply: domain.MaxSupplyLimit + 1}, domain.ErrSupplyCapExceeded},
		{"oversized metadata", domain.MarketCreationArgs{BasePrice: 1, SlopeBps: 1, MaxSupply: 10, Metadata: make([]byte, domain.MaxMetadataLen+1)}, domain.ErrMetadataTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.CreateMarket(ctx, g, "bad", testCreator, tc.args)
			require.ErrorIs(t, err, tc.want)
		})
	}
}
