package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Market and
// curve rows are written inside one transaction so readers never observe a
// market whose curve mirror disagrees with it.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, global_id, creator, market_mint, quote_vault, attention_vault,
	state, supply, volume, trades, hype_score,
	base_price, slope_bps, curvature_bps, max_supply,
	bond_volume_target, bond_liquidity_target, metadata, created_at, bonded_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m            domain.Market
		volume, hype pgtype.Numeric
	)
	err := row.Scan(
		&m.ID, &m.GlobalID, &m.Creator, &m.MarketMint, &m.QuoteVault, &m.AttentionVault,
		&m.State, &m.Supply, &volume, &m.Trades, &hype,
		&m.BasePrice, &m.SlopeBps, &m.CurvatureBps, &m.MaxSupply,
		&m.BondVolumeTarget, &m.BondLiquidityTarget, &m.Metadata, &m.CreatedAt, &m.BondedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Volume = bigFromNumeric(volume)
	m.HypeScore = bigFromNumeric(hype)
	return m, nil
}

func (s *MarketStore) Create(ctx context.Context, m domain.Market, c domain.BondingCurve) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create market: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertMarket = `
		INSERT INTO markets (
			id, global_id, creator, market_mint, quote_vault, attention_vault,
			state, supply, volume, trades, hype_score,
			base_price, slope_bps, curvature_bps, max_supply,
			bond_volume_target, bond_liquidity_target, metadata, created_at, bonded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err = tx.Exec(ctx, insertMarket,
		m.ID, m.GlobalID, m.Creator, m.MarketMint, m.QuoteVault, m.AttentionVault,
		m.State, m.Supply, numericFromBig(m.Volume), m.Trades, numericFromBig(m.HypeScore),
		m.BasePrice, m.SlopeBps, m.CurvatureBps, m.MaxSupply,
		m.BondVolumeTarget, m.BondLiquidityTarget, m.Metadata, m.CreatedAt, m.BondedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert market: %w", err)
	}

	const insertCurve = `
		INSERT INTO bonding_curves (market_id, base_price, slope_bps, curvature_bps, supply, volume)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertCurve,
		c.MarketID, c.BasePrice, c.SlopeBps, c.CurvatureBps, c.Supply, numericFromBig(c.Volume),
	); err != nil {
		return fmt.Errorf("postgres: insert curve: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create market: %w", err)
	}
	return nil
}

func (s *MarketStore) Save(ctx context.Context, m domain.Market, c domain.BondingCurve) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save market: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateMarket = `
		UPDATE markets SET
			state = $2, supply = $3, volume = $4, trades = $5, hype_score = $6,
			bonded_at = $7
		WHERE id = $1`
	tag, err := tx.Exec(ctx, updateMarket,
		m.ID, m.State, m.Supply, numericFromBig(m.Volume), m.Trades,
		numericFromBig(m.HypeScore), m.BondedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	const updateCurve = `
		UPDATE bonding_curves SET supply = $2, volume = $3 WHERE market_id = $1`
	if _, err := tx.Exec(ctx, updateCurve, c.MarketID, c.Supply, numericFromBig(c.Volume)); err != nil {
		return fmt.Errorf("postgres: update curve: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save market: %w", err)
	}
	return nil
}

func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, domain.BondingCurve, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.BondingCurve{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, domain.BondingCurve{}, fmt.Errorf("postgres: get market: %w", err)
	}

	var (
		c      domain.BondingCurve
		volume pgtype.Numeric
	)
	err = s.pool.QueryRow(ctx,
		`SELECT market_id, base_price, slope_bps, curvature_bps, supply, volume
		 FROM bonding_curves WHERE market_id = $1`, id,
	).Scan(&c.MarketID, &c.BasePrice, &c.SlopeBps, &c.CurvatureBps, &c.Supply, &volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, domain.BondingCurve{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, domain.BondingCurve{}, fmt.Errorf("postgres: get curve: %w", err)
	}
	c.Volume = bigFromNumeric(volume)
	return m, c, nil
}

func (s *MarketStore) List(ctx context.Context, state domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE state = $1 ORDER BY created_at DESC`
	args := []any{state}
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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
