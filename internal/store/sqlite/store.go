// Package sqlite implements the domain store interfaces on an embedded SQLite
// database (pure Go, no cgo). It suits single-node deployments that want
// persistence without running Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL,
	outcomes           TEXT NOT NULL,
	status             TEXT NOT NULL,
	resolution_date    TEXT NOT NULL,
	creator_address    TEXT NOT NULL,
	total_volume       REAL NOT NULL DEFAULT 0,
	participant_count  INTEGER NOT NULL DEFAULT 0,
	winning_outcome_id TEXT NOT NULL DEFAULT '',
	image_url          TEXT NOT NULL DEFAULT '',
	chain_market_id    TEXT NOT NULL DEFAULT '',
	transaction_id     TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	resolves_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_markets_category ON markets (category);

CREATE TABLE IF NOT EXISTS bets (
	id             TEXT PRIMARY KEY,
	market_id      TEXT NOT NULL REFERENCES markets (id),
	outcome_id     TEXT NOT NULL,
	amount         REAL NOT NULL,
	owner_address  TEXT NOT NULL,
	is_settled     INTEGER NOT NULL DEFAULT 0,
	winnings       REAL,
	record_nonce   TEXT NOT NULL DEFAULT '',
	transaction_id TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bets_owner ON bets (owner_address, created_at);
CREATE INDEX IF NOT EXISTS idx_bets_market_owner ON bets (market_id, owner_address);
`

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements domain.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// SQLite is single-writer; one connection also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if err := addResolvesAt(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// addResolvesAt upgrades database files created before markets carried the
// parsed resolves_at column, backfilling it from resolution_date.
func addResolvesAt(db *sql.DB) error {
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('markets') WHERE name = 'resolves_at'`,
	).Scan(&n); err != nil {
		return fmt.Errorf("sqlite: inspect markets columns: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE markets ADD COLUMN resolves_at TEXT`); err != nil {
		return fmt.Errorf("sqlite: add resolves_at: %w", err)
	}

	rows, err := db.Query(`SELECT id, resolution_date FROM markets`)
	if err != nil {
		return fmt.Errorf("sqlite: read resolution dates: %w", err)
	}
	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		if err := rows.Scan(&m.ID, &m.ResolutionDate); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scan resolution date: %w", err)
		}
		markets = append(markets, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: read resolution dates: %w", err)
	}

	for _, m := range markets {
		if _, err := db.Exec(`UPDATE markets SET resolves_at = ? WHERE id = ?`, resolvesAt(m), m.ID); err != nil {
			return fmt.Errorf("sqlite: backfill resolves_at for %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database file is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

const marketCols = `id, title, description, category, outcomes, status,
	resolution_date, creator_address, total_volume, participant_count,
	winning_outcome_id, image_url, chain_market_id, transaction_id, created_at`

const insertMarket = `INSERT INTO markets (` + marketCols + `, resolves_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func marketArgs(m domain.Market) ([]any, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal outcomes for %s: %w", m.ID, err)
	}
	return []any{
		m.ID, m.Title, m.Description, string(m.Category), string(outcomes), string(m.Status),
		m.ResolutionDate, m.CreatorAddress, m.TotalVolume, m.ParticipantCount,
		m.WinningOutcomeID, m.ImageURL, m.ChainMarketID, m.TransactionID,
		m.CreatedAt.UTC().Format(timeLayout), resolvesAt(m),
	}, nil
}

// resolvesAt is the parsed resolution date in timeLayout, or NULL when the
// text is not a date.
func resolvesAt(m domain.Market) sql.NullString {
	t := m.ResolvesAt()
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMarket(row scanner) (domain.Market, error) {
	var m domain.Market
	var category, status, outcomes, created string
	if err := row.Scan(
		&m.ID, &m.Title, &m.Description, &category, &outcomes, &status,
		&m.ResolutionDate, &m.CreatorAddress, &m.TotalVolume, &m.ParticipantCount,
		&m.WinningOutcomeID, &m.ImageURL, &m.ChainMarketID, &m.TransactionID, &created,
	); err != nil {
		return domain.Market{}, err
	}
	if err := json.Unmarshal([]byte(outcomes), &m.Outcomes); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: unmarshal outcomes for %s: %w", m.ID, err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: parse created_at for %s: %w", m.ID, err)
	}
	m.CreatedAt = t
	m.Category = domain.Category(category)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// CreateMarket inserts a new market.
func (s *Store) CreateMarket(ctx context.Context, m domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertMarket, args...); err != nil {
		if isConstraint(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("sqlite: create market %s: %w", m.ID, err)
	}
	return nil
}

// SeedMarkets inserts markets that are not present yet.
func (s *Store) SeedMarkets(ctx context.Context, markets []domain.Market) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin seed: %w", err)
	}
	defer tx.Rollback()

	seed := strings.Replace(insertMarket, "INSERT INTO", "INSERT OR IGNORE INTO", 1)
	for _, m := range markets {
		args, err := marketArgs(m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, seed, args...); err != nil {
			return fmt.Errorf("sqlite: seed market %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return getMarket(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMarket(ctx context.Context, q querier, id string) (domain.Market, error) {
	m, err := scanMarket(q.QueryRowContext(ctx, `SELECT `+marketCols+` FROM markets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("sqlite: get market %s: %w", id, err)
	}
	return m, nil
}

func (s *Store) ListMarkets(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}

	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, string(f.Category))
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		query += " AND (instr(lower(title), ?) > 0 OR instr(lower(description), ?) > 0)"
		args = append(args, q, q)
	}

	switch f.SortBy {
	case domain.SortByNewest:
		query += " ORDER BY created_at DESC, id"
	case domain.SortByEndingSoon:
		query += " ORDER BY resolves_at IS NULL, resolves_at, id"
	default:
		query += " ORDER BY total_volume DESC, id"
	}

	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list markets: %w", err)
	}
	defer rows.Close()

	markets := []domain.Market{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *Store) UpdateMarket(ctx context.Context, id string, u domain.MarketUpdate) (domain.Market, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: begin update market: %w", err)
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, id)
	if err != nil {
		return domain.Market{}, err
	}
	m = u.Apply(m)

	if _, err := tx.ExecContext(ctx, `
		UPDATE markets SET status = ?, winning_outcome_id = ?, total_volume = ?, participant_count = ?
		WHERE id = ?`,
		string(m.Status), m.WinningOutcomeID, m.TotalVolume, m.ParticipantCount, id,
	); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: update market %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: commit update market: %w", err)
	}
	return m, nil
}

func (s *Store) CountMarkets(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count markets: %w", err)
	}
	return n, nil
}

const betCols = `id, market_id, outcome_id, amount, owner_address, is_settled,
	winnings, record_nonce, transaction_id, created_at`

func scanBet(row scanner) (domain.Bet, error) {
	var b domain.Bet
	var winnings sql.NullFloat64
	var created string
	if err := row.Scan(
		&b.ID, &b.MarketID, &b.OutcomeID, &b.Amount, &b.OwnerAddress, &b.IsSettled,
		&winnings, &b.RecordNonce, &b.TransactionID, &created,
	); err != nil {
		return domain.Bet{}, err
	}
	if winnings.Valid {
		w := winnings.Float64
		b.Winnings = &w
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("sqlite: parse bet created_at: %w", err)
	}
	b.CreatedAt = t
	return b, nil
}

// CreateBet inserts the bet and updates the market aggregates in one
// transaction. Inactive markets reject the bet with ErrMarketInactive.
func (s *Store) CreateBet(ctx context.Context, b domain.Bet) (domain.Market, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: begin create bet: %w", err)
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, b.MarketID)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Market{}, domain.ErrMarketInactive
	}

	var seen bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE market_id = ? AND owner_address = ?)`,
		b.MarketID, b.OwnerAddress,
	).Scan(&seen); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: check participant: %w", err)
	}

	var winnings sql.NullFloat64
	if b.Winnings != nil {
		winnings = sql.NullFloat64{Float64: *b.Winnings, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO bets (`+betCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.MarketID, b.OutcomeID, b.Amount, b.OwnerAddress, b.IsSettled,
		winnings, b.RecordNonce, b.TransactionID, b.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		if isConstraint(err) {
			return domain.Market{}, domain.ErrAlreadyExists
		}
		return domain.Market{}, fmt.Errorf("sqlite: insert bet %s: %w", b.ID, err)
	}

	m.TotalVolume = domain.AddAmount(m.TotalVolume, b.Amount)
	if !seen {
		m.ParticipantCount++
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET total_volume = ?, participant_count = ? WHERE id = ?`,
		m.TotalVolume, m.ParticipantCount, m.ID,
	); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: update market aggregates %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: commit create bet: %w", err)
	}
	return m, nil
}

func (s *Store) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	b, err := scanBet(s.db.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("sqlite: get bet %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) ListBetsByOwner(ctx context.Context, owner string) ([]domain.Bet, error) {
	return s.listBets(ctx, `SELECT `+betCols+` FROM bets WHERE owner_address = ? ORDER BY created_at DESC, id`, owner)
}

func (s *Store) ListBetsByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	return s.listBets(ctx, `SELECT `+betCols+` FROM bets WHERE market_id = ? ORDER BY created_at DESC, id`, marketID)
}

func (s *Store) ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	return s.listBets(ctx, `SELECT `+betCols+` FROM bets ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, opts.Offset)
}

func (s *Store) listBets(ctx context.Context, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bets: %w", err)
	}
	defer rows.Close()

	bets := []domain.Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (s *Store) SettleBet(ctx context.Context, id string, winnings float64) (domain.Bet, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bets SET is_settled = 1, winnings = ? WHERE id = ? AND is_settled = 0`, winnings, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("sqlite: settle bet %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Bet{}, fmt.Errorf("sqlite: settle bet %s: %w", id, err)
	}

	b, err := s.GetBet(ctx, id)
	if err != nil {
		return domain.Bet{}, err
	}
	if n == 0 {
		return domain.Bet{}, domain.ErrAlreadySettled
	}
	return b, nil
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

var _ domain.Store = (*Store)(nil)
