package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/engine"
)

// SimpleService orchestrates the constant-product binary market lifecycle.
type SimpleService struct {
	engine    *engine.Engine
	globals   domain.GlobalStore
	markets   domain.SimpleMarketStore
	positions domain.PositionStore
	locks     domain.LockManager
	bus       domain.SignalBus
	logger    *slog.Logger
}

// NewSimpleService creates a SimpleService with all required dependencies.
func NewSimpleService(
	eng *engine.Engine,
	globals domain.GlobalStore,
	markets domain.SimpleMarketStore,
	positions domain.PositionStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *SimpleService {
	return &SimpleService{
		engine:    eng,
		globals:   globals,
		markets:   markets,
		positions: positions,
		locks:     locks,
		bus:       bus,
		logger:    logger.With(slog.String("component", "simple_service")),
	}
}

// Create seeds a new binary market from the creator's funds under a
// generated ID.
func (s *SimpleService) Create(ctx context.Context, creator, resolver domain.Address) (domain.SimpleMarket, error) {
	id := uuid.New().String()
	m, err := s.engine.CreateSimpleMarket(ctx, id, creator, resolver)
	if err != nil {
		return domain.SimpleMarket{}, err
	}
	if err := s.markets.Create(ctx, *m); err != nil {
		return domain.SimpleMarket{}, fmt.Errorf("simple_service: persist market: %w", err)
	}

	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":     EventMarketCreated,
		"kind":      "simple",
		"market_id": id,
		"creator":   string(creator),
	})
	return *m, nil
}

// Buy purchases shares on one side of a market, creating the buyer's
// position on first touch.
func (s *SimpleService) Buy(ctx context.Context, marketID string, buyer domain.Address, side domain.Side, amount uint64) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, "simple:"+marketID, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("simple_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	g, err := s.globals.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load global: %w", err)
	}
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load market %s: %w", marketID, err)
	}
	pos, err := s.loadOrInitPosition(ctx, marketID, buyer)
	if err != nil {
		return 0, err
	}

	shares, err := s.engine.BuySide(ctx, &m, &pos, buyer, g.Treasury, side, amount)
	if err != nil {
		return 0, err
	}

	if err := s.persistTrade(ctx, m, pos); err != nil {
		return 0, err
	}
	publish(ctx, s.bus, s.logger, ChannelTrades, map[string]any{
		"event":     "simple_buy",
		"market_id": marketID,
		"user":      string(buyer),
		"side":      string(side),
		"amount":    amount,
		"shares":    shares,
	})
	return shares, nil
}

// Sell redeems shares back into one side of a market and pays the net
// proceeds.
func (s *SimpleService) Sell(ctx context.Context, marketID string, seller domain.Address, side domain.Side, shares uint64) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, "simple:"+marketID, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("simple_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	g, err := s.globals.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load global: %w", err)
	}
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load market %s: %w", marketID, err)
	}
	pos, err := s.positions.Get(ctx, marketID, seller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrInsufficientShares
		}
		return 0, fmt.Errorf("simple_service: load position: %w", err)
	}

	payout, err := s.engine.SellShares(ctx, &m, &pos, seller, g.Treasury, side, shares)
	if err != nil {
		return 0, err
	}

	if err := s.persistTrade(ctx, m, pos); err != nil {
		return 0, err
	}
	publish(ctx, s.bus, s.logger, ChannelTrades, map[string]any{
		"event":     "simple_sell",
		"market_id": marketID,
		"user":      string(seller),
		"side":      string(side),
		"shares":    shares,
		"payout":    payout,
	})
	return payout, nil
}

// Resolve records the winning side. Only the market's designated resolver
// may call it, and only once.
func (s *SimpleService) Resolve(ctx context.Context, marketID string, caller domain.Address, winning domain.Side) (domain.SimpleMarket, error) {
	unlock, err := s.locks.Acquire(ctx, "simple:"+marketID, lockTTL)
	if err != nil {
		return domain.SimpleMarket{}, fmt.Errorf("simple_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.SimpleMarket{}, fmt.Errorf("simple_service: load market %s: %w", marketID, err)
	}

	if err := s.engine.ResolveSimple(ctx, &m, caller, winning); err != nil {
		return domain.SimpleMarket{}, err
	}
	if err := s.markets.Save(ctx, m); err != nil {
		return domain.SimpleMarket{}, fmt.Errorf("simple_service: save market %s: %w", marketID, err)
	}

	publish(ctx, s.bus, s.logger, ChannelEvents, map[string]any{
		"event":        EventMarketResolved,
		"kind":         "simple",
		"market_id":    marketID,
		"winning_side": string(winning),
	})
	return m, nil
}

// Claim pays a winning position its pro-rata cut of the losing pool.
func (s *SimpleService) Claim(ctx context.Context, marketID string, claimer domain.Address) (uint64, error) {
	unlock, err := s.locks.Acquire(ctx, "simple:"+marketID, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("simple_service: lock market %s: %w", marketID, err)
	}
	defer unlock()

	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load market %s: %w", marketID, err)
	}
	pos, err := s.positions.Get(ctx, marketID, claimer)
	if err != nil {
		return 0, fmt.Errorf("simple_service: load position: %w", err)
	}

	payout, err := s.engine.Claim(ctx, &m, &pos, claimer)
	if err != nil {
		return 0, err
	}

	if err := s.persistTrade(ctx, m, pos); err != nil {
		return 0, err
	}
	return payout, nil
}

// GetMarket returns a simple market by ID.
func (s *SimpleService) GetMarket(ctx context.Context, id string) (domain.SimpleMarket, error) {
	return s.markets.GetByID(ctx, id)
}

// ListMarkets returns simple markets, newest first.
func (s *SimpleService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.SimpleMarket, error) {
	return s.markets.List(ctx, opts)
}

// GetPosition returns one user's position in one market.
func (s *SimpleService) GetPosition(ctx context.Context, marketID string, user domain.Address) (domain.UserPosition, error) {
	return s.positions.Get(ctx, marketID, user)
}

// loadOrInitPosition fetches the caller's position, starting a fresh one on
// first touch.
func (s *SimpleService) loadOrInitPosition(ctx context.Context, marketID string, user domain.Address) (domain.UserPosition, error) {
	pos, err := s.positions.Get(ctx, marketID, user)
	if err == nil {
		return pos, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserPosition{MarketID: marketID, User: user}, nil
	}
	return domain.UserPosition{}, fmt.Errorf("simple_service: load position: %w", err)
}

func (s *SimpleService) persistTrade(ctx context.Context, m domain.SimpleMarket, pos domain.UserPosition) error {
	if err := s.markets.Save(ctx, m); err != nil {
		return fmt.Errorf("simple_service: save market %s: %w", m.ID, err)
	}
	if err := s.positions.Upsert(ctx, pos); err != nil {
		return fmt.Errorf("simple_service: save position: %w", err)
	}
	return nil
}
