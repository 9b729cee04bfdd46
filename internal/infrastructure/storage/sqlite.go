package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vitos/gridpool/internal/domain"
)

// SQLiteStore persists grid config, levels, custody state and execution
// history. Decimal values are stored as TEXT to keep full precision.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS grid_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token_a TEXT NOT NULL,
			token_b TEXT NOT NULL,
			lower_price TEXT NOT NULL,
			upper_price TEXT NOT NULL,
			level_count INTEGER NOT NULL,
			order_size_a TEXT NOT NULL,
			order_size_b TEXT NOT NULL,
			fee_tier INTEGER NOT NULL,
			max_slippage_bps INTEGER NOT NULL,
			cooldown_seconds INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS levels (
			idx INTEGER PRIMARY KEY,
			price TEXT NOT NULL,
			side TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			last_executed_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS engine_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			owner TEXT NOT NULL,
			paused BOOLEAN NOT NULL DEFAULT 0,
			balance_a TEXT NOT NULL,
			balance_b TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL,
			level_idx INTEGER NOT NULL,
			side TEXT NOT NULL,
			price TEXT NOT NULL,
			amount_in TEXT NOT NULL,
			amount_out TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_level ON executions(level_idx);`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			at DATETIME NOT NULL,
			price TEXT NOT NULL,
			executed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			outcomes TEXT NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func parseDec(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

// GridRepository implementation

func (s *SQLiteStore) SaveConfig(ctx context.Context, cfg *domain.GridConfig) error {
	query := `INSERT INTO grid_config (id, token_a, token_b, lower_price, upper_price, level_count, order_size_a, order_size_b, fee_tier, max_slippage_bps, cooldown_seconds)
			  VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  token_a=excluded.token_a,
			  token_b=excluded.token_b,
			  lower_price=excluded.lower_price,
			  upper_price=excluded.upper_price,
			  level_count=excluded.level_count,
			  order_size_a=excluded.order_size_a,
			  order_size_b=excluded.order_size_b,
			  fee_tier=excluded.fee_tier,
			  max_slippage_bps=excluded.max_slippage_bps,
			  cooldown_seconds=excluded.cooldown_seconds`
	_, err := s.db.ExecContext(ctx, query,
		cfg.TokenA, cfg.TokenB, cfg.LowerPrice.String(), cfg.UpperPrice.String(),
		cfg.LevelCount, cfg.OrderSizeA.String(), cfg.OrderSizeB.String(),
		int64(cfg.FeeTier), cfg.MaxSlippageBps, cfg.CooldownSeconds)
	return err
}

func (s *SQLiteStore) LoadConfig(ctx context.Context) (*domain.GridConfig, error) {
	query := `SELECT token_a, token_b, lower_price, upper_price, level_count, order_size_a, order_size_b, fee_tier, max_slippage_bps, cooldown_seconds FROM grid_config WHERE id = 1`
	row := s.db.QueryRowContext(ctx, query)

	var (
		cfg                        domain.GridConfig
		lower, upper, sizeA, sizeB string
		feeTier                    int64
	)
	err := row.Scan(&cfg.TokenA, &cfg.TokenB, &lower, &upper, &cfg.LevelCount,
		&sizeA, &sizeB, &feeTier, &cfg.MaxSlippageBps, &cfg.CooldownSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cfg.LowerPrice, err = parseDec("lower_price", lower); err != nil {
		return nil, err
	}
	if cfg.UpperPrice, err = parseDec("upper_price", upper); err != nil {
		return nil, err
	}
	if cfg.OrderSizeA, err = parseDec("order_size_a", sizeA); err != nil {
		return nil, err
	}
	if cfg.OrderSizeB, err = parseDec("order_size_b", sizeB); err != nil {
		return nil, err
	}
	cfg.FeeTier = domain.FeeTier(feeTier)
	return &cfg, nil
}

func (s *SQLiteStore) SaveLevels(ctx context.Context, levels []*domain.GridLevel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM levels`); err != nil {
		return err
	}
	for _, l := range levels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO levels (idx, price, side, active, last_executed_at) VALUES (?, ?, ?, ?, ?)`,
			l.Index, l.Price.String(), string(l.Side), l.Active, nullTime(l.LastExecutedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateLevel(ctx context.Context, level *domain.GridLevel) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE levels SET side = ?, active = ?, last_executed_at = ? WHERE idx = ?`,
		string(level.Side), level.Active, nullTime(level.LastExecutedAt), level.Index)
	return err
}

func (s *SQLiteStore) ListLevels(ctx context.Context) ([]*domain.GridLevel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, price, side, active, last_executed_at FROM levels ORDER BY idx ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []*domain.GridLevel
	for rows.Next() {
		var (
			l        domain.GridLevel
			price    string
			side     string
			executed sql.NullTime
		)
		if err := rows.Scan(&l.Index, &price, &side, &l.Active, &executed); err != nil {
			return nil, err
		}
		if l.Price, err = parseDec("price", price); err != nil {
			return nil, err
		}
		l.Side = domain.Side(side)
		if executed.Valid {
			l.LastExecutedAt = executed.Time
		}
		levels = append(levels, &l)
	}
	return levels, rows.Err()
}

func (s *SQLiteStore) SaveEngineState(ctx context.Context, state *domain.EngineState) error {
	query := `INSERT INTO engine_state (id, owner, paused, balance_a, balance_b)
			  VALUES (1, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  owner=excluded.owner,
			  paused=excluded.paused,
			  balance_a=excluded.balance_a,
			  balance_b=excluded.balance_b`
	_, err := s.db.ExecContext(ctx, query,
		state.Owner, state.Paused, state.Balances.BalanceA.String(), state.Balances.BalanceB.String())
	return err
}

func (s *SQLiteStore) LoadEngineState(ctx context.Context) (*domain.EngineState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner, paused, balance_a, balance_b FROM engine_state WHERE id = 1`)

	var (
		state domain.EngineState
		a, b  string
	)
	err := row.Scan(&state.Owner, &state.Paused, &a, &b)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if state.Balances.BalanceA, err = parseDec("balance_a", a); err != nil {
		return nil, err
	}
	if state.Balances.BalanceB, err = parseDec("balance_b", b); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SQLiteStore) SaveExecution(ctx context.Context, rec *domain.ExecutionRecord) error {
	query := `INSERT INTO executions (id, report_id, level_idx, side, price, amount_in, amount_out, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ReportID, rec.LevelIndex, string(rec.Side),
		rec.Price.String(), rec.AmountIn.String(), rec.AmountOut.String(), rec.CreatedAt)
	return err
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, level_idx, side, price, amount_in, amount_out, created_at FROM executions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.ExecutionRecord
	for rows.Next() {
		var (
			r                    domain.ExecutionRecord
			side                 string
			price, amtIn, amtOut string
		)
		if err := rows.Scan(&r.ID, &r.ReportID, &r.LevelIndex, &side, &price, &amtIn, &amtOut, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Side = domain.Side(side)
		if r.Price, err = parseDec("price", price); err != nil {
			return nil, err
		}
		if r.AmountIn, err = parseDec("amount_in", amtIn); err != nil {
			return nil, err
		}
		if r.AmountOut, err = parseDec("amount_out", amtOut); err != nil {
			return nil, err
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *domain.ExecutionReport) error {
	outcomes, err := json.Marshal(report.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, at, price, executed, failed, outcomes) VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.At, report.Price.String(), report.Executed, report.Failed, string(outcomes))
	return err
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*domain.ExecutionReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, price, executed, failed, outcomes FROM reports ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.ExecutionReport
	for rows.Next() {
		var (
			r               domain.ExecutionReport
			price, outcomes string
		)
		if err := rows.Scan(&r.ID, &r.At, &price, &r.Executed, &r.Failed, &outcomes); err != nil {
			return nil, err
		}
		if r.Price, err = parseDec("price", price); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes: %w", err)
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
