// Package store provides SQLite persistence for simulation sessions and
// their rounds.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// Session is one simulation run.
type Session struct {
	ID               string              `json:"id"`
	ServerSeedHash   string              `json:"server_seed_hash"`
	ClientSeed       string              `json:"client_seed"`
	StartNonce       uint64              `json:"start_nonce"`
	StartingBalance  decimal.Decimal     `json:"starting_balance"`
	BaseWager        decimal.Decimal     `json:"base_wager"`
	LossMultiplier   decimal.Decimal     `json:"loss_multiplier"`
	MaxRounds        int                 `json:"max_rounds"`
	StopRule         string              `json:"stop_rule,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	EndedAt          *time.Time          `json:"ended_at,omitempty"`
	Reason           string              `json:"reason"`
	Rounds           int                 `json:"rounds"`
	Wins             int                 `json:"wins"`
	Pushes           int                 `json:"pushes"`
	Losses           int                 `json:"losses"`
	FinalBalance     decimal.NullDecimal `json:"final_balance"`
	Profit           decimal.NullDecimal `json:"profit"`
	TotalWagered     decimal.NullDecimal `json:"total_wagered"`
	LargestWager     decimal.NullDecimal `json:"largest_wager"`
	LowestBalance    decimal.NullDecimal `json:"lowest_balance"`
	WorstStreak      int                 `json:"worst_streak"`
	WorstStreakNonce uint64              `json:"worst_streak_nonce"`
	BestStreak       int                 `json:"best_streak"`
	BestStreakNonce  uint64              `json:"best_streak_nonce"`
	BustNonce        uint64              `json:"bust_nonce,omitempty"`
	LastNonce        uint64              `json:"last_nonce"`
}

// NewSession fills a session from a run configuration.
func NewSession(cfg simulation.Config, stopRule string) *Session {
	return &Session{
		ServerSeedHash:  cfg.Seeds.ServerHash(),
		ClientSeed:      cfg.Seeds.Client,
		StartNonce:      cfg.StartNonce,
		StartingBalance: cfg.Betting.StartingBalance,
		BaseWager:       cfg.Betting.BaseWager,
		LossMultiplier:  cfg.Betting.LossMultiplier,
		MaxRounds:       cfg.MaxRounds,
		StopRule:        stopRule,
	}
}

// RoundsPage is a paginated rounds response.
type RoundsPage struct {
	Rounds     []betting.RoundRecord `json:"rounds"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	TotalPages int                   `json:"total_pages"`
}

// Store provides SQLite persistence for sessions.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at path. The pragmas
// go in the DSN so every pooled connection gets them.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing sql.DB.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new running session and returns its id.
func (s *Store) CreateSession(ctx context.Context, sess *Session) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.Reason = "running"
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, server_seed_hash, client_seed, start_nonce, starting_balance,
		                       base_wager, loss_multiplier, max_rounds, stop_rule, created_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ServerSeedHash, sess.ClientSeed, int64(sess.StartNonce), sess.StartingBalance,
		sess.BaseWager, sess.LossMultiplier, sess.MaxRounds, sess.StopRule, sess.CreatedAt, sess.Reason,
	)
	if err != nil {
		return "", fmt.Errorf("store: create session: %w", err)
	}
	return sess.ID, nil
}

// EndSession stores the final summary of a run.
func (s *Store) EndSession(ctx context.Context, id string, sum simulation.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET
			ended_at = ?, reason = ?, rounds = ?, wins = ?, pushes = ?, losses = ?,
			final_balance = ?, profit = ?, total_wagered = ?, largest_wager = ?, lowest_balance = ?,
			worst_streak = ?, worst_streak_nonce = ?, best_streak = ?, best_streak_nonce = ?,
			bust_nonce = ?, last_nonce = ?
		 WHERE id = ?`,
		time.Now().UTC(), string(sum.Reason), sum.Rounds, sum.Wins, sum.Pushes, sum.Losses,
		sum.FinalBalance, sum.Profit, sum.TotalWagered, sum.LargestWager, sum.LowestBalance,
		sum.WorstStreak.Value, int64(sum.WorstStreak.Nonce), sum.BestStreak.Value, int64(sum.BestStreak.Nonce),
		int64(sum.BustNonce), int64(sum.LastNonce),
		id,
	)
	if err != nil {
		return fmt.Errorf("store: end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: end session %q: %w", id, ErrSessionNotFound)
	}
	return nil
}

const sessionColumns = `id, server_seed_hash, client_seed, start_nonce, starting_balance, base_wager,
	loss_multiplier, max_rounds, stop_rule, created_at, ended_at, reason, rounds, wins, pushes, losses,
	final_balance, profit, total_wagered, largest_wager, lowest_balance,
	worst_streak, worst_streak_nonce, best_streak, best_streak_nonce, bust_nonce, last_nonce`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var endedAt sql.NullTime
	err := row.Scan(
		&sess.ID, &sess.ServerSeedHash, &sess.ClientSeed, &sess.StartNonce, &sess.StartingBalance,
		&sess.BaseWager, &sess.LossMultiplier, &sess.MaxRounds, &sess.StopRule, &sess.CreatedAt,
		&endedAt, &sess.Reason, &sess.Rounds, &sess.Wins, &sess.Pushes, &sess.Losses,
		&sess.FinalBalance, &sess.Profit, &sess.TotalWagered, &sess.LargestWager, &sess.LowestBalance,
		&sess.WorstStreak, &sess.WorstStreakNonce, &sess.BestStreak, &sess.BestStreakNonce,
		&sess.BustNonce, &sess.LastNonce,
	)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest first and the total count.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]Session, int, error) {
	if limit <= 0 {
		limit = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, total, nil
}

// DeleteSession removes a session and its rounds.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: delete session %q: %w", id, ErrSessionNotFound)
	}
	return nil
}

// InsertRoundsBatch stores records in a single transaction. The whole
// transaction is retried with exponential backoff while SQLite reports
// the database as busy.
func (s *Store) InsertRoundsBatch(ctx context.Context, sessionID string, recs []betting.RoundRecord) error {
	if len(recs) == 0 {
		return nil
	}
	backoff := retry.WithMaxRetries(busyRetries, retry.NewExponential(busyBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.insertRounds(ctx, sessionID, recs)
		if isBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Store) insertRounds(ctx context.Context, sessionID string, recs []betting.RoundRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rounds (session_id, round, nonce, pocket, color, parity, outcome, payout,
		                     wager, round_profit, cumulative_profit, balance, streak)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			sessionID, r.Round, int64(r.Nonce), r.Pocket, r.Color, r.Parity, string(r.Outcome), r.Payout,
			r.Wager, r.RoundProfit, r.CumulativeProfit, r.Balance, r.Streak,
		)
		if err != nil {
			return fmt.Errorf("store: insert round %d: %w", r.Round, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// GetRounds returns a page of rounds in play order.
func (s *Store) GetRounds(ctx context.Context, sessionID string, page, perPage int) (*RoundsPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rounds WHERE session_id = ?", sessionID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("store: count rounds: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT round, nonce, pocket, color, parity, outcome, payout,
		        wager, round_profit, cumulative_profit, balance, streak
		 FROM rounds WHERE session_id = ? ORDER BY round LIMIT ? OFFSET ?`,
		sessionID, perPage, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get rounds: %w", err)
	}
	defer rows.Close()

	recs := make([]betting.RoundRecord, 0, perPage)
	for rows.Next() {
		var r betting.RoundRecord
		var outcome string
		if err := rows.Scan(&r.Round, &r.Nonce, &r.Pocket, &r.Color, &r.Parity, &outcome, &r.Payout,
			&r.Wager, &r.RoundProfit, &r.CumulativeProfit, &r.Balance, &r.Streak); err != nil {
			return nil, fmt.Errorf("store: scan round: %w", err)
		}
		r.Outcome = betting.OutcomeClass(outcome)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get rounds: %w", err)
	}

	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	return &RoundsPage{
		Rounds:     recs,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
