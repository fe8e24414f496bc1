package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// GlobalStore persists the protocol-wide singleton.
type GlobalStore interface {
	// Create stores the singleton; it fails with ErrAlreadyExists if a
	// global state has already been created.
	Create(ctx context.Context, g GlobalState) error
	Get(ctx context.Context) (GlobalState, error)
}

// MarketStore persists bonding-curve markets together with their curves.
// Save writes market and curve in one transaction so the mirror invariant
// holds at every observation point.
type MarketStore interface {
	Create(ctx context.Context, m Market, c BondingCurve) error
	Save(ctx context.Context, m Market, c BondingCurve) error
	GetByID(ctx context.Context, id string) (Market, BondingCurve, error)
	List(ctx context.Context, state MarketState, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// ResolutionStore persists resolutions keyed by market.
type ResolutionStore interface {
	Create(ctx context.Context, r Resolution) error
	Save(ctx context.Context, r Resolution) error
	GetByMarket(ctx context.Context, marketID string) (Resolution, error)
}

// SimpleMarketStore persists constant-product binary markets.
type SimpleMarketStore interface {
	Create(ctx context.Context, m SimpleMarket) error
	Save(ctx context.Context, m SimpleMarket) error
	GetByID(ctx context.Context, id string) (SimpleMarket, error)
	List(ctx context.Context, opts ListOpts) ([]SimpleMarket, error)
}

// PositionStore persists per-(market,user) simple-market positions.
type PositionStore interface {
	// Upsert creates the position on first touch and updates it afterwards.
	Upsert(ctx context.Context, p UserPosition) error
	Get(ctx context.Context, marketID string, user Address) (UserPosition, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]UserPosition, error)
}

// TradeStore persists executed curve-trade receipts.
type TradeStore interface {
	Insert(ctx context.Context, t TradeReceipt) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]TradeReceipt, error)
	DeleteByMarket(ctx context.Context, marketID string) (int64, error)
}
