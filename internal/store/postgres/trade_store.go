package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, market_id, user_addr, direction, quantity, gross,
	attention_fee, creator_fee, treasury_fee, net, supply_after, executed_at`

func scanTrade(row pgx.Row) (domain.TradeReceipt, error) {
	var t domain.TradeReceipt
	err := row.Scan(
		&t.ID, &t.MarketID, &t.User, &t.Direction, &t.Quantity, &t.Gross,
		&t.AttentionFee, &t.CreatorFee, &t.TreasuryFee, &t.Net, &t.SupplyAfter, &t.ExecutedAt,
	)
	return t, err
}

func (s *TradeStore) Insert(ctx context.Context, t domain.TradeReceipt) error {
	const query = `
		INSERT INTO trades (id, market_id, user_addr, direction, quantity, gross,
			attention_fee, creator_fee, treasury_fee, net, supply_after, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.MarketID, t.User, t.Direction, t.Quantity, t.Gross,
		t.AttentionFee, t.CreatorFee, t.TreasuryFee, t.Net, t.SupplyAfter, t.ExecutedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeReceipt, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND executed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY executed_at DESC"

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
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeReceipt
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DeleteByMarket removes all trades for a market and reports how many rows
// were deleted. The archiver calls this after a settlement snapshot lands.
func (s *TradeStore) DeleteByMarket(ctx context.Context, marketID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE market_id = $1`, marketID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
