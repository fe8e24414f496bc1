package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

func (s *ResolutionStore) Create(ctx context.Context, r domain.Resolution) error {
	const query = `
		INSERT INTO resolutions (market_id, resolver, state, outcome, settlement_price, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		r.MarketID, r.Resolver, r.State, r.Outcome, r.SettlementPrice, r.CreatedAt, r.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create resolution: %w", err)
	}
	return nil
}

func (s *ResolutionStore) Save(ctx context.Context, r domain.Resolution) error {
	const query = `
		UPDATE resolutions SET state = $2, outcome = $3, settlement_price = $4, resolved_at = $5
		WHERE market_id = $1`
	tag, err := s.pool.Exec(ctx, query,
		r.MarketID, r.State, r.Outcome, r.SettlementPrice, r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save resolution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ResolutionStore) GetByMarket(ctx context.Context, marketID string) (domain.Resolution, error) {
	const query = `
		SELECT market_id, resolver, state, outcome, settlement_price, created_at, resolved_at
		FROM resolutions WHERE market_id = $1`

	var r domain.Resolution
	err := s.pool.QueryRow(ctx, query, marketID).Scan(
		&r.MarketID, &r.Resolver, &r.State, &r.Outcome, &r.SettlementPrice, &r.CreatedAt, &r.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Resolution{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution: %w", err)
	}
	return r, nil
}

var _ domain.ResolutionStore = (*ResolutionStore)(nil)
