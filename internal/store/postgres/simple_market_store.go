package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypelabs/hyperd/internal/domain"
)

// SimpleMarketStore implements domain.SimpleMarketStore using PostgreSQL.
type SimpleMarketStore struct {
	pool *pgxpool.Pool
}

// NewSimpleMarketStore creates a SimpleMarketStore backed by the given pool.
func NewSimpleMarketStore(pool *pgxpool.Pool) *SimpleMarketStore {
	return &SimpleMarketStore{pool: pool}
}

const simpleSelectCols = `id, creator, resolver, yes_pool, no_pool, yes_vault, no_vault,
	status, winning_side, created_at`

func scanSimpleMarket(row pgx.Row) (domain.SimpleMarket, error) {
	var (
		m       domain.SimpleMarket
		winning *string
	)
	err := row.Scan(
		&m.ID, &m.Creator, &m.Resolver, &m.YesPool, &m.NoPool, &m.YesVault, &m.NoVault,
		&m.Status, &winning, &m.CreatedAt,
	)
	if err != nil {
		return domain.SimpleMarket{}, err
	}
	if winning != nil {
		side := domain.Side(*winning)
		m.WinningSide = &side
	}
	return m, nil
}

func (s *SimpleMarketStore) Create(ctx context.Context, m domain.SimpleMarket) error {
	const query = `
		INSERT INTO simple_markets (id, creator, resolver, yes_pool, no_pool, yes_vault, no_vault, status, winning_side, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Creator, m.Resolver, m.YesPool, m.NoPool, m.YesVault, m.NoVault,
		m.Status, winningSideArg(m), m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create simple market: %w", err)
	}
	return nil
}

func (s *SimpleMarketStore) Save(ctx context.Context, m domain.SimpleMarket) error {
	const query = `
		UPDATE simple_markets SET yes_pool = $2, no_pool = $3, status = $4, winning_side = $5
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, m.ID, m.YesPool, m.NoPool, m.Status, winningSideArg(m))
	if err != nil {
		return fmt.Errorf("postgres: save simple market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SimpleMarketStore) GetByID(ctx context.Context, id string) (domain.SimpleMarket, error) {
	m, err := scanSimpleMarket(s.pool.QueryRow(ctx,
		`SELECT `+simpleSelectCols+` FROM simple_markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SimpleMarket{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SimpleMarket{}, fmt.Errorf("postgres: get simple market: %w", err)
	}
	return m, nil
}

func (s *SimpleMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SimpleMarket, error) {
	query := `SELECT ` + simpleSelectCols + ` FROM simple_markets ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list simple markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.SimpleMarket
	for rows.Next() {
		m, err := scanSimpleMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan simple market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// winningSideArg converts the optional winning side into a nullable text arg.
func winningSideArg(m domain.SimpleMarket) *string {
	if m.WinningSide == nil {
		return nil
	}
	s := string(*m.WinningSide)
	return &s
}

var _ domain.SimpleMarketStore = (*SimpleMarketStore)(nil)
