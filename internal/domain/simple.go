package domain

import "time"

// Side is a binary market outcome side.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// SimpleMarketStatus is the lifecycle status of a constant-product binary
// market. Bonded is reserved for a future phase; no current operation sets it.
type SimpleMarketStatus string

const (
	SimpleMarketUnbonded SimpleMarketStatus = "unbonded"
	SimpleMarketBonded   SimpleMarketStatus = "bonded"
	SimpleMarketResolved SimpleMarketStatus = "resolved"
)

// SimpleSeedLiquidity is the creator-funded starting balance of each pool,
// in native base units (0.5 units at 9 decimals).
const SimpleSeedLiquidity uint64 = 500_000_000

// SimpleFeeDivisor implements the flat 2% trading fee (amount / 50).
const SimpleFeeDivisor uint64 = 50

// SimpleMarket is a two-pool constant-product binary market.
type SimpleMarket struct {
	ID       string
	Creator  Address
	Resolver Address

	YesPool uint64
	NoPool  uint64

	YesVault Address
	NoVault  Address

	Status      SimpleMarketStatus
	WinningSide *Side

	CreatedAt time.Time
}

// Pool returns the pool balance for the given side.
func (m *SimpleMarket) Pool(side Side) uint64 {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// Vault returns the vault address backing the given side's pool.
func (m *SimpleMarket) Vault(side Side) Address {
	if side == SideYes {
		return m.YesVault
	}
	return m.NoVault
}

// UserPosition tracks one user's share holdings in one simple market. It is
// created lazily on the user's first trade; HasClaimed flips false→true
// exactly once.
type UserPosition struct {
	MarketID   string
	User       Address
	YesShares  uint64
	NoShares   uint64
	HasClaimed bool
	UpdatedAt  time.Time
}

// Shares returns the holdings for the given side.
func (p *UserPosition) Shares(side Side) uint64 {
	if side == SideYes {
		return p.YesShares
	}
	return p.NoShares
}
