package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betCols = `id, market_id, outcome_id, amount, owner_address, is_settled,
	winnings, record_nonce, transaction_id, created_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	err := row.Scan(
		&b.ID, &b.MarketID, &b.OutcomeID, &b.Amount, &b.OwnerAddress, &b.IsSettled,
		&b.Winnings, &b.RecordNonce, &b.TransactionID, &b.CreatedAt,
	)
	return b, err
}

// CreateBet inserts the bet and updates the parent market in one transaction.
// The market row is locked first so concurrent bets on the same market see
// each other when deciding whether the owner is a new participant, and so a
// concurrent resolution cannot slip in between the status check and the
// insert.
func (s *BetStore) CreateBet(ctx context.Context, b domain.Bet) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin create bet: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM markets WHERE id = $1 FOR UPDATE`, b.MarketID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock market %s: %w", b.MarketID, err)
	}
	if domain.MarketStatus(status) != domain.MarketStatusActive {
		return domain.Market{}, domain.ErrMarketInactive
	}

	var returning bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE market_id = $1 AND owner_address = $2)`,
		b.MarketID, b.OwnerAddress,
	).Scan(&returning); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: check participant: %w", err)
	}

	const insert = `INSERT INTO bets (` + betCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.Exec(ctx, insert,
		b.ID, b.MarketID, b.OutcomeID, b.Amount, b.OwnerAddress, b.IsSettled,
		b.Winnings, b.RecordNonce, b.TransactionID, b.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.Market{}, domain.ErrAlreadyExists
		}
		if isCheckViolation(err) || isNumericOverflow(err) {
			return domain.Market{}, amountRejected("amount")
		}
		return domain.Market{}, fmt.Errorf("postgres: insert bet %s: %w", b.ID, err)
	}

	newParticipant := 1
	if returning {
		newParticipant = 0
	}
	m, err := scanMarket(tx.QueryRow(ctx, `
		UPDATE markets
		SET total_volume = total_volume + $2,
		    participant_count = participant_count + $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+marketCols,
		b.MarketID, b.Amount, newParticipant,
	))
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: update market aggregates %s: %w", b.MarketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit create bet: %w", err)
	}
	return m, nil
}

// GetBet retrieves a bet by id.
func (s *BetStore) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	b, err := scanBet(s.pool.QueryRow(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// ListBetsByOwner returns the owner's bets, newest first.
func (s *BetStore) ListBetsByOwner(ctx context.Context, owner string) ([]domain.Bet, error) {
	return s.list(ctx, `SELECT `+betCols+` FROM bets WHERE owner_address = $1
		ORDER BY created_at DESC, id`, owner)
}

// ListBetsByMarket returns all bets on a market, newest first.
func (s *BetStore) ListBetsByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	return s.list(ctx, `SELECT `+betCols+` FROM bets WHERE market_id = $1
		ORDER BY created_at DESC, id`, marketID)
}

// ListBets pages through every bet, newest first.
func (s *BetStore) ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betCols + ` FROM bets ORDER BY created_at DESC, id`
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
	return s.list(ctx, query, args...)
}

func (s *BetStore) list(ctx context.Context, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	bets := []domain.Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// SettleBet marks an unsettled bet as settled. The conditional update makes
// a second settlement fail with ErrAlreadySettled.
func (s *BetStore) SettleBet(ctx context.Context, id string, winnings float64) (domain.Bet, error) {
	b, err := scanBet(s.pool.QueryRow(ctx, `
		UPDATE bets SET is_settled = TRUE, winnings = $2
		WHERE id = $1 AND NOT is_settled
		RETURNING `+betCols, id, winnings))
	if err == nil {
		return b, nil
	}
	if isCheckViolation(err) || isNumericOverflow(err) {
		return domain.Bet{}, amountRejected("winnings")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Bet{}, fmt.Errorf("postgres: settle bet %s: %w", id, err)
	}

	// Nothing updated: either the bet is missing or already settled.
	if _, getErr := s.GetBet(ctx, id); getErr != nil {
		return domain.Bet{}, getErr
	}
	return domain.Bet{}, domain.ErrAlreadySettled
}

func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

func isCheckViolation(err error) bool {
	return hasCode(err, "23514")
}

func isNumericOverflow(err error) bool {
	return hasCode(err, "22003")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// amountRejected reports a value the NUMERIC columns refused as a field
// error, so callers answer 400 rather than 500.
func amountRejected(field string) error {
	return &domain.ValidationError{Fields: []domain.FieldError{{
		Field:   field,
		Message: field + " is out of range for storage",
	}}}
}

var _ domain.BetStore = (*BetStore)(nil)
