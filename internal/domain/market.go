package domain

import (
	"math/big"
	"time"
)

// MarketState is the bonding-curve market lifecycle phase. Markets move from
// Discovery to Bonded exactly once and never back.
type MarketState string

const (
	MarketStateDiscovery MarketState = "discovery"
	MarketStateBonded    MarketState = "bonded"
)

// MaxSupplyLimit caps the share supply any single market may be created with.
const MaxSupplyLimit uint64 = 100_000_000_000

// MaxMetadataLen bounds the opaque per-market metadata blob.
const MaxMetadataLen = 192

// Market is a bonding-curve outcome market. Supply and volume are mirrored
// onto the companion BondingCurve; outside an in-flight trade the two always
// agree.
type Market struct {
	ID             string
	GlobalID       string
	Creator        Address
	MarketMint     Address
	QuoteVault     Address
	AttentionVault Address

	State     MarketState
	Supply    uint64
	Volume    *big.Int // cumulative quote turned over, buys and sells alike
	Trades    uint64
	HypeScore *big.Int // cumulative attention harvested

	BasePrice    uint64
	SlopeBps     uint64
	CurvatureBps uint64
	MaxSupply    uint64

	BondVolumeTarget    uint64
	BondLiquidityTarget uint64

	Metadata []byte

	CreatedAt time.Time
	BondedAt  *time.Time
}

// BondingCurve is the 1:1 pricing companion of a Market. It duplicates the
// curve parameters and supply/volume so quote math is self-contained.
type BondingCurve struct {
	MarketID     string
	BasePrice    uint64
	SlopeBps     uint64
	CurvatureBps uint64
	Supply       uint64
	Volume       *big.Int
}

// MarketCreationArgs are the caller-supplied parameters for a new
// bonding-curve market. Bond target overrides fall back to the global
// defaults when nil.
type MarketCreationArgs struct {
	BasePrice             uint64
	SlopeBps              uint64
	CurvatureBps          uint64
	MaxSupply             uint64
	Metadata              []byte
	BondVolumeOverride    *uint64
	BondLiquidityOverride *uint64
}

// Validate checks the creation parameters without touching any state.
func (a MarketCreationArgs) Validate() error {
	if a.MaxSupply == 0 {
		return ErrInvalidSupply
	}
	if a.BasePrice == 0 {
		return ErrInvalidPrice
	}
	if a.SlopeBps == 0 {
		return ErrInvalidSlope
	}
	if a.MaxSupply > MaxSupplyLimit {
		return ErrSupplyCapExceeded
	}
	if len(a.Metadata) > MaxMetadataLen {
		return ErrMetadataTooLong
	}
	return nil
}

// TradeDirection selects the side of a curve trade.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "buy"
	TradeSell TradeDirection = "sell"
)

// TradeArgs are the caller-supplied parameters for a curve trade. MaxSpend
// bounds the total cost including fees on a buy; MinReceive bounds the net
// payout after fees on a sell.
type TradeArgs struct {
	Direction  TradeDirection
	Quantity   uint64
	MaxSpend   uint64
	MinReceive uint64
}

// TradeReceipt records the economic outcome of a completed curve trade.
type TradeReceipt struct {
	ID           string
	MarketID     string
	User         Address
	Direction    TradeDirection
	Quantity     uint64
	Gross        uint64 // curve cost (buy) or curve payout (sell), before fees
	AttentionFee uint64
	CreatorFee   uint64
	TreasuryFee  uint64
	Net          uint64 // total spent (buy) or received (sell)
	SupplyAfter  uint64
	ExecutedAt   time.Time
}
