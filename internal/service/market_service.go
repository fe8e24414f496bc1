package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/google/uuid"

	"github.com/hypelabs/hyperd/internal/crypto"
	"github.com/hypelabs/hyperd/internal/curve"
	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/engine"
	"github.com/hypelabs/hyperd/internal/fees"
)

// MarketService orchestrates the bonding-curve market lifecycle.
type MarketService struct {
	engine      *engine.Engine
	ledger      domain.Ledger
	globals     domain.GlobalStore
	markets     domain.MarketStore
	resolutions domain.ResolutionStore
	trades      domain.TradeStore
	cache       domain.MarketCache
	locks       domain.LockManager
	bus         domain.SignalBus
	logger      *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	eng *engine.Engine,
	ledger domain.Ledger,
	globals domain.GlobalStore,
	markets domain.MarketStore,
	resolutions domain.ResolutionStore,
	trades domain.TradeStore,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		engine:      eng,
		ledger:      ledger,
		globals:     globals,
		markets:     markets,
		resolutions: resolutions,
		trades:      trades,
		cache:       cache,
		locks:       locks,
		bus:         bus,
		logger:      logger.With(slog.String("component", "market_service")),
	}
}

// InitializeGlobal creates the protocol singleton. The store rejects a
// second creation with ErrAlreadyExists.
func (s *MarketService) InitializeGlobal(ctx context.Context, id string, params domain.GlobalParams) (domain.GlobalState, error) {
	unlock, err := s.locks.Acquire(ctx, "global:"+id, lockTTL)
	if err != nil {
		return domain.GlobalState{}, fmt.Errorf("market_service: lock global: %w", err)
	}
	defer unlock()

	g, err := s.engine.InitializeGlobal(ctx, id, params)
	if err != nil {
		return domain.GlobalState{}, err
	}
	if err := s.globals.Create(ctx, *g); err != nil {
		return domain.GlobalState{}, fmt.Errorf("market_service: persist global: %w", err)
	}

	s.logger.InfoContext(ctx, "global state initialized", slog.String("global_id", id))
	return *g, nil
}

// EnsureGlobal bootstraps the protocol singleton from configuration at
// startup. An existing singleton always wins: the params are only applied
// when no global state has been created yet, so restarting with different
// configuration never mutates a live protocol.
func (s *MarketService) EnsureGlobal(ctx context.Context, id string, params domain.GlobalParams) (domain.GlobalState, error) {
	g, err := s.globals.Get(ctx)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.GlobalState{}, fmt.Errorf("market_service: load global: %w", err)
	}

	g, err = s.InitializeGlobal(ctx, id, params)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Another replica won the race; read its result.
		return s.globals.Get(ctx)
	}
	return g, err
}

// GetGlobal returns the protocol singleton.
func (s *MarketService) GetGlobal(ctx context.Context) (domain.GlobalState, error) {
	return s.globals.Get(ctx)
}

// CreateMarket validates the creation args and opens a new discovery-phase
// market under a generated ID.
func (s *MarketService) CreateMarket(ctx context.Context, creator domain.Address, args domain.MarketCreationArgs) (domain.Market, error) {
	g, err := s.globals.Get(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: load global: %w", err)
	}

	id := uuid.New().String()
	m, c, err := s.engine.CreateMarket(ctx, &g, id, creator, args)
	if err != nil {
		return domain.Market{}, err
	}
	if err := s.markets.Create(ctx, *m, *c); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: persist market: %w", err)
	}

	if cacheErr := s.cache.Set(ctx, *m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":     EventMarketCreated,
		"market_id": id,
		"creator":   string(creator),
	})
	return *m, nil
}

// Trade executes a buy or sell against a discovery-phase market under the
// market's lock, then persists the mutated market/curve pair and the trade
// receipt.
func (s *MarketService) Trade(ctx context.Context, marketID string, user domain.Address, args domain.TradeArgs) (domain.TradeReceipt, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, lockTTL)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("market_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	g, err := s.globals.Get(ctx)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("market_service: load global: %w", err)
	}
	m, c, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("market_service: load market %s: %w", marketID, err)
	}

	receipt, err := s.engine.Trade(ctx, &g, &m, &c, user, args)
	if err != nil {
		return domain.TradeReceipt{}, err
	}
	receipt.ID = uuid.New().String()

	if err := s.markets.Save(ctx, m, c); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("market_service: save market %s: %w", marketID, err)
	}
	if err := s.trades.Insert(ctx, receipt); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("market_service: record trade: %w", err)
	}

	s.invalidate(ctx, marketID)
	publish(ctx, s.bus, s.logger, ChannelTrades, map[string]any{
		"event":     "trade_executed",
		"trade_id":  receipt.ID,
		"market_id": marketID,
		"user":      string(user),
		"direction": string(receipt.Direction),
		"quantity":  receipt.Quantity,
		"net":       receipt.Net,
	})
	return receipt, nil
}

// Bond promotes a discovery market that has met both bond targets and opens
// its pending resolution bound to the given resolver identity.
func (s *MarketService) Bond(ctx context.Context, marketID string, resolver domain.Address) (domain.Resolution, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, lockTTL)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	g, err := s.globals.Get(ctx)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: load global: %w", err)
	}
	m, c, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: load market %s: %w", marketID, err)
	}

	res, err := s.engine.Bond(ctx, &g, &m, resolver)
	if err != nil {
		return domain.Resolution{}, err
	}

	if err := s.markets.Save(ctx, m, c); err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: save market %s: %w", marketID, err)
	}
	if err := s.resolutions.Create(ctx, *res); err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: persist resolution: %w", err)
	}

	s.invalidate(ctx, marketID)
	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":     EventMarketBonded,
		"market_id": marketID,
		"resolver":  string(resolver),
	})
	return *res, nil
}

// Resolve finalizes a bonded market's resolution from a signed attestation.
// The attester is recovered from the signature and must both prove control
// of its key to the ledger and match the resolution's designated resolver.
func (s *MarketService) Resolve(ctx context.Context, att crypto.Attestation, sigHex string) (domain.Resolution, error) {
	attester, err := crypto.RecoverAttester(att, sigHex)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: recover attester: %w", err)
	}
	caller := domain.Address(attester.Hex())
	if !s.ledger.VerifySigner(ctx, caller) {
		return domain.Resolution{}, domain.ErrUnauthorized
	}

	unlock, err := s.locks.Acquire(ctx, "market:"+att.MarketID, lockTTL)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: lock market %s: %w", att.MarketID, err)
	}
	defer unlock()

	m, _, err := s.markets.GetByID(ctx, att.MarketID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: load market %s: %w", att.MarketID, err)
	}
	res, err := s.resolutions.GetByMarket(ctx, att.MarketID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: load resolution %s: %w", att.MarketID, err)
	}

	if err := s.engine.Resolve(ctx, &m, &res, caller, domain.Outcome(att.Outcome), att.SettlementPrice); err != nil {
		return domain.Resolution{}, err
	}
	if err := s.resolutions.Save(ctx, res); err != nil {
		return domain.Resolution{}, fmt.Errorf("market_service: save resolution %s: %w", att.MarketID, err)
	}

	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":            EventMarketResolved,
		"market_id":        att.MarketID,
		"outcome":          string(res.Outcome),
		"settlement_price": res.SettlementPrice,
	})
	return res, nil
}

// Redeem burns a holder's shares against a finalized resolution and pays the
// settlement value. No entity state changes, so nothing is persisted.
func (s *MarketService) Redeem(ctx context.Context, marketID string, user domain.Address, quantity uint64) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("market_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	m, _, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("market_service: load market %s: %w", marketID, err)
	}
	res, err := s.resolutions.GetByMarket(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("market_service: load resolution %s: %w", marketID, err)
	}

	return s.engine.Redeem(ctx, &m, &res, user, quantity)
}

// HarvestReceipt reports the outcome of a Harvest call.
type HarvestReceipt struct {
	Swept  uint64 `json:"swept"`
	Minted uint64 `json:"minted"`
}

// Harvest sweeps a market's accrued attention fees into the global attention
// vault and mints the reward to the caller.
func (s *MarketService) Harvest(ctx context.Context, marketID string, caller domain.Address) (HarvestReceipt, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, lockTTL)
	if err != nil {
		return HarvestReceipt{}, fmt.Errorf("market_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	g, err := s.globals.Get(ctx)
	if err != nil {
		return HarvestReceipt{}, fmt.Errorf("market_service: load global: %w", err)
	}
	m, c, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return HarvestReceipt{}, fmt.Errorf("market_service: load market %s: %w", marketID, err)
	}

	swept, minted, err := s.engine.Harvest(ctx, &g, &m, caller)
	if err != nil {
		return HarvestReceipt{}, err
	}
	if err := s.markets.Save(ctx, m, c); err != nil {
		return HarvestReceipt{}, fmt.Errorf("market_service: save market %s: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":     EventAttentionHarvest,
		"market_id": marketID,
		"caller":    string(caller),
		"swept":     swept,
		"minted":    minted,
	})
	return HarvestReceipt{Swept: swept, Minted: minted}, nil
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, _, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %s: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// ListMarkets returns markets in the given state, newest first.
func (s *MarketService) ListMarkets(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	return s.markets.List(ctx, state, opts)
}

// GetResolution returns the resolution bound to a market.
func (s *MarketService) GetResolution(ctx context.Context, marketID string) (domain.Resolution, error) {
	return s.resolutions.GetByMarket(ctx, marketID)
}

// ListTrades returns a market's trade history, newest first.
func (s *MarketService) ListTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeReceipt, error) {
	return s.trades.ListByMarket(ctx, marketID, opts)
}

// TradeQuote is a read-only preview of a trade's economics at the current
// supply point.
type TradeQuote struct {
	Direction    domain.TradeDirection `json:"direction"`
	Quantity     uint64                `json:"quantity"`
	Gross        uint64                `json:"gross"`
	AttentionFee uint64                `json:"attention_fee"`
	CreatorFee   uint64                `json:"creator_fee"`
	TreasuryFee  uint64                `json:"treasury_fee"`
	Net          uint64                `json:"net"`
	QuotedAt     time.Time             `json:"quoted_at"`
}

// QuoteTrade previews what a trade would cost (buy, fees added on top) or
// pay (sell, fees deducted) without executing anything.
func (s *MarketService) QuoteTrade(ctx context.Context, marketID string, direction domain.TradeDirection, quantity uint64) (TradeQuote, error) {
	if quantity == 0 {
		return TradeQuote{}, domain.ErrInvalidAmount
	}
	g, err := s.globals.Get(ctx)
	if err != nil {
		return TradeQuote{}, fmt.Errorf("market_service: load global: %w", err)
	}
	_, c, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return TradeQuote{}, fmt.Errorf("market_service: load market %s: %w", marketID, err)
	}

	var gross uint64
	switch direction {
	case domain.TradeBuy:
		gross, err = curve.QuoteForPurchase(c.BasePrice, c.SlopeBps, c.CurvatureBps, c.Supply, quantity)
	case domain.TradeSell:
		gross, err = curve.QuoteForSale(c.BasePrice, c.SlopeBps, c.CurvatureBps, c.Supply, quantity)
	default:
		return TradeQuote{}, domain.ErrInvalidAmount
	}
	if err != nil {
		return TradeQuote{}, err
	}

	split, err := fees.New(gross, g.AttentionFeeBps, g.CreatorFeeBps, g.TreasuryFeeBps)
	if err != nil {
		return TradeQuote{}, err
	}

	q := TradeQuote{
		Direction:    direction,
		Quantity:     quantity,
		Gross:        gross,
		AttentionFee: split.AttentionFee,
		CreatorFee:   split.CreatorFee,
		TreasuryFee:  split.TreasuryFee,
		QuotedAt:     s.ledger.Now(),
	}
	if direction == domain.TradeBuy {
		// Same overflow discipline as execution: a quote must fail where
		// the trade itself would.
		net, carry := bits.Add64(gross, split.Total(), 0)
		if carry != 0 {
			return TradeQuote{}, domain.ErrMathOverflow
		}
		q.Net = net
	} else {
		q.Net = gross - split.Total()
	}
	return q, nil
}

func (s *MarketService) invalidate(ctx context.Context, marketID string) {
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
