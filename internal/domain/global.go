package domain

import "time"

// GlobalState holds the protocol-wide parameters. It is created exactly once
// and threaded read-only into every lifecycle operation; changing fee
// parameters after creation is a governance concern outside this core.
type GlobalState struct {
	ID             string
	Authority      Address
	QuoteMint      Address
	Treasury       Address
	AttentionMint  Address
	AttentionVault Address

	AttentionFeeBps uint16
	CreatorFeeBps   uint16
	TreasuryFeeBps  uint16

	BondVolumeTarget    uint64
	BondLiquidityTarget uint64

	CreatedAt time.Time
}

// GlobalParams are the creation parameters for the protocol singleton.
type GlobalParams struct {
	Authority Address
	QuoteMint Address
	Treasury  Address

	AttentionFeeBps uint16
	CreatorFeeBps   uint16
	TreasuryFeeBps  uint16

	BondVolumeTarget    uint64
	BondLiquidityTarget uint64
}

// ValidateFees checks the basis-point fee configuration: each bucket must be
// at most 10000 and the three together must not exceed 10000, so a split of
// any amount can never exceed the amount itself.
func (g *GlobalState) ValidateFees() error {
	if g.AttentionFeeBps > 10_000 || g.CreatorFeeBps > 10_000 || g.TreasuryFeeBps > 10_000 {
		return ErrInvalidFee
	}
	total := uint32(g.AttentionFeeBps) + uint32(g.CreatorFeeBps) + uint32(g.TreasuryFeeBps)
	if total > 10_000 {
		return ErrInvalidFee
	}
	return nil
}
