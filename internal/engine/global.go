package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hypelabs/hyperd/internal/domain"
)

// InitializeGlobal creates the protocol singleton: validates the fee
// configuration, registers the attention reward mint (controlled by the
// global's own signing identity), and creates the global attention vault
// that harvested fees sweep into. Callers are expected to create it exactly
// once; the store enforces singleton-ness.
func (e *Engine) InitializeGlobal(
	ctx context.Context,
	id string,
	params domain.GlobalParams,
) (*domain.GlobalState, error) {
	g := &domain.GlobalState{
		ID:                  id,
		Authority:           params.Authority,
		QuoteMint:           params.QuoteMint,
		Treasury:            params.Treasury,
		AttentionMint:       e.ledger.DeriveAddress([]byte("global"), []byte(id), []byte("attn_mint")),
		AttentionVault:      e.ledger.DeriveAddress([]byte("global"), []byte(id), []byte("attn")),
		AttentionFeeBps:     params.AttentionFeeBps,
		CreatorFeeBps:       params.CreatorFeeBps,
		TreasuryFeeBps:      params.TreasuryFeeBps,
		BondVolumeTarget:    params.BondVolumeTarget,
		BondLiquidityTarget: params.BondLiquidityTarget,
		CreatedAt:           e.ledger.Now(),
	}
	if err := g.ValidateFees(); err != nil {
		return nil, err
	}

	globalAuthority := domain.Address(g.ID)
	if err := e.ledger.CreateMint(ctx, g.AttentionMint, globalAuthority); err != nil {
		return nil, fmt.Errorf("engine: create attention mint: %w", err)
	}
	if err := e.ledger.CreateVault(ctx, g.AttentionVault, globalAuthority); err != nil {
		return nil, fmt.Errorf("engine: create global attention vault: %w", err)
	}

	e.logger.InfoContext(ctx, "global state initialized",
		slog.String("global_id", id),
		slog.Uint64("bond_volume_target", params.BondVolumeTarget),
		slog.Uint64("bond_liquidity_target", params.BondLiquidityTarget),
	)
	return g, nil
}
