package service

import (
	"context"
	"sync"
	"time"

	"github.com/hypelabs/hyperd/internal/domain"
)

// In-memory store fakes backing the service tests. They mirror the Postgres
// stores' error contract: ErrNotFound on misses, ErrAlreadyExists on
// duplicate creates.

type memGlobalStore struct {
	mu sync.Mutex
	g  *domain.GlobalState
}

func (s *memGlobalStore) Create(_ context.Context, g domain.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g != nil {
		return domain.ErrAlreadyExists
	}
	s.g = &g
	return nil
}

func (s *memGlobalStore) Get(_ context.Context) (domain.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g == nil {
		return domain.GlobalState{}, domain.ErrNotFound
	}
	return *s.g, nil
}

type marketRecord struct {
	m domain.Market
	c domain.BondingCurve
}

type memMarketStore struct {
	mu      sync.Mutex
	records map[string]marketRecord
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{records: make(map[string]marketRecord)}
}

func (s *memMarketStore) Create(_ context.Context, m domain.Market, c domain.BondingCurve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[m.ID] = marketRecord{m: m, c: c}
	return nil
}

func (s *memMarketStore) Save(_ context.Context, m domain.Market, c domain.BondingCurve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.records[m.ID] = marketRecord{m: m, c: c}
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, domain.BondingCurve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Market{}, domain.BondingCurve{}, domain.ErrNotFound
	}
	return rec.m, rec.c, nil
}

func (s *memMarketStore) List(_ context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, rec := range s.records {
		if rec.m.State == state {
			out = append(out, rec.m)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

type memResolutionStore struct {
	mu      sync.Mutex
	records map[string]domain.Resolution
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{records: make(map[string]domain.Resolution)}
}

func (s *memResolutionStore) Create(_ context.Context, r domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.MarketID]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[r.MarketID] = r
	return nil
}

func (s *memResolutionStore) Save(_ context.Context, r domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.MarketID]; !ok {
		return domain.ErrNotFound
	}
	s.records[r.MarketID] = r
	return nil
}

func (s *memResolutionStore) GetByMarket(_ context.Context, marketID string) (domain.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[marketID]
	if !ok {
		return domain.Resolution{}, domain.ErrNotFound
	}
	return r, nil
}

type memTradeStore struct {
	mu     sync.Mutex
	trades []domain.TradeReceipt
}

func (s *memTradeStore) Insert(_ context.Context, t domain.TradeReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *memTradeStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.TradeReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeReceipt
	for _, t := range s.trades {
		if t.MarketID == marketID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTradeStore) DeleteByMarket(_ context.Context, marketID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.TradeReceipt
	var deleted int64
	for _, t := range s.trades {
		if t.MarketID == marketID {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.trades = kept
	return deleted, nil
}

type memSimpleStore struct {
	mu      sync.Mutex
	records map[string]domain.SimpleMarket
}

func newMemSimpleStore() *memSimpleStore {
	return &memSimpleStore{records: make(map[string]domain.SimpleMarket)}
}

func (s *memSimpleStore) Create(_ context.Context, m domain.SimpleMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[m.ID] = m
	return nil
}

func (s *memSimpleStore) Save(_ context.Context, m domain.SimpleMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.records[m.ID] = m
	return nil
}

func (s *memSimpleStore) GetByID(_ context.Context, id string) (domain.SimpleMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok {
		return domain.SimpleMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memSimpleStore) List(_ context.Context, _ domain.ListOpts) ([]domain.SimpleMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SimpleMarket
	for _, m := range s.records {
		out = append(out, m)
	}
	return out, nil
}

type posKey struct {
	marketID string
	user     domain.Address
}

type memPositionStore struct {
	mu      sync.Mutex
	records map[posKey]domain.UserPosition
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{records: make(map[posKey]domain.UserPosition)}
}

func (s *memPositionStore) Upsert(_ context.Context, p domain.UserPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[posKey{p.MarketID, p.User}] = p
	return nil
}

func (s *memPositionStore) Get(_ context.Context, marketID string, user domain.Address) (domain.UserPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[posKey{marketID, user}]
	if !ok {
		return domain.UserPosition{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memPositionStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.UserPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserPosition
	for k, p := range s.records {
		if k.marketID == marketID {
			out = append(out, p)
		}
	}
	return out, nil
}

// memCache is a store-backed MarketCache fake that counts hits so the
// cache-aside path can be asserted.
type memCache struct {
	mu      sync.Mutex
	markets map[string]domain.Market
	sets    int
}

func newMemCache() *memCache {
	return &memCache{markets: make(map[string]domain.Market)}
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[m.ID] = m
	c.sets++
	return nil
}

func (c *memCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	return nil
}

// memLocks hands out process-local locks with the same held/free semantics
// as the Redis implementation.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	released := false
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !released {
			released = true
			delete(l.held, key)
		}
	}, nil
}

// memBus records published events for assertion.
type busEvent struct {
	channel string
	payload []byte
}

type memBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{channel: channel, payload: payload})
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) published(channel string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.channel == channel {
			out = append(out, e)
		}
	}
	return out
}

var (
	_ domain.GlobalStore       = (*memGlobalStore)(nil)
	_ domain.MarketStore       = (*memMarketStore)(nil)
	_ domain.ResolutionStore   = (*memResolutionStore)(nil)
	_ domain.TradeStore        = (*memTradeStore)(nil)
	_ domain.SimpleMarketStore = (*memSimpleStore)(nil)
	_ domain.PositionStore     = (*memPositionStore)(nil)
	_ domain.MarketCache       = (*memCache)(nil)
	_ domain.LockManager       = (*memLocks)(nil)
	_ domain.SignalBus         = (*memBus)(nil)
)
