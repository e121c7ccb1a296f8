package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, title, description, category, outcomes, status,
	resolution_date, creator_address, total_volume, participant_count,
	winning_outcome_id, image_url, chain_market_id, transaction_id, created_at`

const insertMarket = `
	INSERT INTO markets (` + marketCols + `, resolves_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// CreateMarket inserts a new market.
func (s *MarketStore) CreateMarket(ctx context.Context, m domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertMarket, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// SeedMarkets inserts markets that are not present yet, in one batch.
func (s *MarketStore) SeedMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		args, err := marketArgs(m)
		if err != nil {
			return err
		}
		batch.Queue(insertMarket+` ON CONFLICT (id) DO NOTHING`, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: seed market batch item %d: %w", i, err)
		}
	}
	return nil
}

func marketArgs(m domain.Market) ([]any, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal outcomes for %s: %w", m.ID, err)
	}
	return []any{
		m.ID, m.Title, m.Description, string(m.Category), outcomes, string(m.Status),
		m.ResolutionDate, m.CreatorAddress, m.TotalVolume, m.ParticipantCount,
		m.WinningOutcomeID, m.ImageURL, m.ChainMarketID, m.TransactionID, m.CreatedAt,
		resolvesAt(m),
	}, nil
}

// resolvesAt is the parsed resolution date, or nil (NULL) when unparseable.
func resolvesAt(m domain.Market) *time.Time {
	t := m.ResolvesAt()
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var category, status string
	var outcomes []byte
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &category, &outcomes, &status,
		&m.ResolutionDate, &m.CreatorAddress, &m.TotalVolume, &m.ParticipantCount,
		&m.WinningOutcomeID, &m.ImageURL, &m.ChainMarketID, &m.TransactionID, &m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	if err := json.Unmarshal(outcomes, &m.Outcomes); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: unmarshal outcomes for %s: %w", m.ID, err)
	}
	m.Category = domain.Category(category)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetMarket retrieves a market by its primary key.
func (s *MarketStore) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns markets matching the filter in the requested order.
func (s *MarketStore) ListMarkets(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, string(f.Category))
		argIdx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+escapeLike(q)+"%")
		argIdx++
	}

	query += " ORDER BY " + orderClause(f.SortBy)

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	markets := []domain.Market{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

func orderClause(by domain.MarketSort) string {
	switch by {
	case domain.SortByNewest:
		return "created_at DESC, id"
	case domain.SortByEndingSoon:
		return "resolves_at ASC NULLS LAST, id"
	default:
		return "total_volume DESC, id"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateMarket applies a partial update and returns the stored row.
func (s *MarketStore) UpdateMarket(ctx context.Context, id string, u domain.MarketUpdate) (domain.Market, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	argIdx := 1

	if u.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*u.Status))
		argIdx++
	}
	if u.WinningOutcomeID != nil {
		sets = append(sets, fmt.Sprintf("winning_outcome_id = $%d", argIdx))
		args = append(args, *u.WinningOutcomeID)
		argIdx++
	}
	if u.TotalVolume != nil {
		sets = append(sets, fmt.Sprintf("total_volume = $%d", argIdx))
		args = append(args, *u.TotalVolume)
		argIdx++
	}
	if u.ParticipantCount != nil {
		sets = append(sets, fmt.Sprintf("participant_count = $%d", argIdx))
		args = append(args, *u.ParticipantCount)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE markets SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argIdx, marketCols)
	args = append(args, id)

	m, err := scanMarket(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: update market %s: %w", id, err)
	}
	return m, nil
}

// CountMarkets returns the total number of markets in the database.
func (s *MarketStore) CountMarkets(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
