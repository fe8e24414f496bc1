package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// GlobalStore implements domain.GlobalStore using PostgreSQL. The singleton
// column's unique constraint makes a second Create fail regardless of ID.
type GlobalStore struct {
	pool *pgxpool.Pool
}

// NewGlobalStore creates a GlobalStore backed by the given connection pool.
func NewGlobalStore(pool *pgxpool.Pool) *GlobalStore {
	return &GlobalStore{pool: pool}
}

func (s *GlobalStore) Create(ctx context.Context, g domain.GlobalState) error {
	const query = `
		INSERT INTO global_state (
			id, authority, quote_mint, treasury, attention_mint, attention_vault,
			attention_fee_bps, creator_fee_bps, treasury_fee_bps,
			bond_volume_target, bond_liquidity_target, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		g.ID, g.Authority, g.QuoteMint, g.Treasury, g.AttentionMint, g.AttentionVault,
		int32(g.AttentionFeeBps), int32(g.CreatorFeeBps), int32(g.TreasuryFeeBps),
		g.BondVolumeTarget, g.BondLiquidityTarget, g.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create global state: %w", err)
	}
	return nil
}

func (s *GlobalStore) Get(ctx context.Context) (domain.GlobalState, error) {
	const query = `
		SELECT id, authority, quote_mint, treasury, attention_mint, attention_vault,
			attention_fee_bps, creator_fee_bps, treasury_fee_bps,
			bond_volume_target, bond_liquidity_target, created_at
		FROM global_state LIMIT 1`

	var (
		g                domain.GlobalState
		attn, crea, trea int32
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&g.ID, &g.Authority, &g.QuoteMint, &g.Treasury, &g.AttentionMint, &g.AttentionVault,
		&attn, &crea, &trea,
		&g.BondVolumeTarget, &g.BondLiquidityTarget, &g.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GlobalState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.GlobalState{}, fmt.Errorf("postgres: get global state: %w", err)
	}
	g.AttentionFeeBps = uint16(attn)
	g.CreatorFeeBps = uint16(crea)
	g.TreasuryFeeBps = uint16(trea)
	return g, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.GlobalStore = (*GlobalStore)(nil)
