package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `market_id, user_addr, yes_shares, no_shares, has_claimed, updated_at`

func scanPosition(row pgx.Row) (domain.UserPosition, error) {
	var p domain.UserPosition
	err := row.Scan(&p.MarketID, &p.User, &p.YesShares, &p.NoShares, &p.HasClaimed, &p.UpdatedAt)
	return p, err
}

func (s *PositionStore) Upsert(ctx context.Context, p domain.UserPosition) error {
	const query = `
		INSERT INTO user_positions (market_id, user_addr, yes_shares, no_shares, has_claimed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id, user_addr) DO UPDATE SET
			yes_shares = EXCLUDED.yes_shares,
			no_shares = EXCLUDED.no_shares,
			has_claimed = EXCLUDED.has_claimed,
			updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, query,
		p.MarketID, p.User, p.YesShares, p.NoShares, p.HasClaimed, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert position: %w", err)
	}
	return nil
}

func (s *PositionStore) Get(ctx context.Context, marketID string, user domain.Address) (domain.UserPosition, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM user_positions WHERE market_id = $1 AND user_addr = $2`,
		marketID, user))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserPosition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("postgres: get position: %w", err)
	}
	return p, nil
}

func (s *PositionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserPosition, error) {
	query := `SELECT ` + positionSelectCols + ` FROM user_positions WHERE market_id = $1 ORDER BY updated_at DESC`
	args := []any{marketID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.UserPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

var _ domain.PositionStore = (*PositionStore)(nil)
