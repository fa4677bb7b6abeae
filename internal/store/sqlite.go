package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ghost-coach/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	candleCap int
}

// NewSQLiteStore creates a new SQLite-based data store. candleCap bounds
// how many candles are kept per symbol and timeframe.
func NewSQLiteStore(dbPath string, candleCap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if candleCap <= 0 {
		candleCap = 200
	}

	store := &SQLiteStore{
		db:        db,
		candleCap: candleCap,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Trades table for the journal
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		intent_timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		intent_price REAL NOT NULL,
		entry_price REAL NOT NULL,
		slippage REAL NOT NULL,
		exit_price REAL,
		exit_timestamp DATETIME,
		pnl REAL,
		reasoning TEXT NOT NULL,
		condition TEXT NOT NULL DEFAULT 'UNKNOWN',
		bias_detected TEXT,
		was_intervened INTEGER DEFAULT 0,
		capital_saved REAL,
		narrative TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Single-row psychological profile
	CREATE TABLE IF NOT EXISTS profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		top_bias TEXT NOT NULL,
		risk_tolerance TEXT NOT NULL,
		streak_count INTEGER NOT NULL DEFAULT 0,
		fomo_score REAL NOT NULL DEFAULT 0,
		revenge_likelihood REAL NOT NULL DEFAULT 0,
		capital_preserved REAL NOT NULL DEFAULT 0,
		summary TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Single-row synthesized playbook
	CREATE TABLE IF NOT EXISTS playbook (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		playbook_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		generated_at DATETIME NOT NULL,
		trade_count INTEGER NOT NULL,
		modules TEXT NOT NULL
	);

	-- Generated lessons
	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		relevant_trade_ids TEXT,
		created_at DATETIME NOT NULL
	);

	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Trades Methods
// ============================================================================

// SaveTrade inserts or updates a trade.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	biases, _ := json.Marshal(trade.BiasDetected)
	wasIntervened := 0
	if trade.WasIntervened {
		wasIntervened = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades (id, timestamp, intent_timestamp, symbol, side, size, intent_price, entry_price, slippage, exit_price, exit_timestamp, pnl, reasoning, condition, bias_detected, was_intervened, capital_saved, narrative)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Timestamp, trade.IntentTimestamp, trade.Symbol, trade.Side, trade.Size, trade.IntentPrice, trade.EntryPrice, trade.Slippage, trade.ExitPrice, trade.ExitTimestamp, trade.PnL, trade.Reasoning, trade.Condition, string(biases), wasIntervened, trade.CapitalSaved, trade.Narrative)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

const tradeColumns = "id, timestamp, intent_timestamp, symbol, side, size, intent_price, entry_price, slippage, exit_price, exit_timestamp, pnl, reasoning, condition, bias_detected, was_intervened, capital_saved, narrative"

func scanTrade(rows interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	var t models.Trade
	var biasesJSON sql.NullString
	var wasIntervened int
	var exitPrice, pnl, capitalSaved sql.NullFloat64
	var exitTS sql.NullTime
	var narrative sql.NullString

	if err := rows.Scan(&t.ID, &t.Timestamp, &t.IntentTimestamp, &t.Symbol, &t.Side, &t.Size, &t.IntentPrice, &t.EntryPrice, &t.Slippage, &exitPrice, &exitTS, &pnl, &t.Reasoning, &t.Condition, &biasesJSON, &wasIntervened, &capitalSaved, &narrative); err != nil {
		return nil, err
	}

	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if exitTS.Valid {
		t.ExitTimestamp = &exitTS.Time
	}
	if pnl.Valid {
		t.PnL = &pnl.Float64
	}
	if capitalSaved.Valid {
		t.CapitalSaved = &capitalSaved.Float64
	}
	t.Narrative = narrative.String
	t.WasIntervened = wasIntervened == 1
	if biasesJSON.Valid && biasesJSON.String != "" {
		// Corrupted bias data reads back as no detected biases.
		json.Unmarshal([]byte(biasesJSON.String), &t.BiasDetected)
	}
	return &t, nil
}

// GetTrades retrieves trades, most recent first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Side != "" {
		query += " AND side = ?"
		args = append(args, filter.Side)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate)
	}
	if filter.OpenOnly {
		query += " AND exit_price IS NULL"
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}

	return trades, rows.Err()
}

// GetTradeByID retrieves a single trade by ID. Returns nil if not found.
func (s *SQLiteStore) GetTradeByID(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// ============================================================================
// Profile Methods
// ============================================================================

// SaveProfile saves the psychological profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *models.PsychologicalProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profile (id, top_bias, risk_tolerance, streak_count, fomo_score, revenge_likelihood, capital_preserved, summary, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`, profile.TopBias, profile.RiskTolerance, profile.StreakCount, profile.FOMOScore, profile.RevengeLikelihood, profile.CapitalPreserved, profile.Summary, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the psychological profile. Returns nil if none saved.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*models.PsychologicalProfile, error) {
	var p models.PsychologicalProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT top_bias, risk_tolerance, streak_count, fomo_score, revenge_likelihood, capital_preserved, summary, updated_at FROM profile WHERE id = 1
	`).Scan(&p.TopBias, &p.RiskTolerance, &p.StreakCount, &p.FOMOScore, &p.RevengeLikelihood, &p.CapitalPreserved, &p.Summary, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// ============================================================================
// Playbook Methods
// ============================================================================

// SavePlaybook saves the synthesized playbook, replacing any previous one.
func (s *SQLiteStore) SavePlaybook(ctx context.Context, playbook *models.Playbook) error {
	modules, err := json.Marshal(playbook.Modules)
	if err != nil {
		return fmt.Errorf("failed to encode playbook modules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO playbook (id, playbook_id, title, summary, generated_at, trade_count, modules)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`, playbook.ID, playbook.Title, playbook.Summary, playbook.GeneratedAt, playbook.TradeCount, string(modules))
	if err != nil {
		return fmt.Errorf("failed to save playbook: %w", err)
	}
	return nil
}

// GetPlaybook retrieves the playbook. Returns nil if none saved or if the
// stored modules cannot be decoded.
func (s *SQLiteStore) GetPlaybook(ctx context.Context) (*models.Playbook, error) {
	var p models.Playbook
	var modulesJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT playbook_id, title, summary, generated_at, trade_count, modules FROM playbook WHERE id = 1
	`).Scan(&p.ID, &p.Title, &p.Summary, &p.GeneratedAt, &p.TradeCount, &modulesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playbook: %w", err)
	}

	if err := json.Unmarshal([]byte(modulesJSON), &p.Modules); err != nil {
		return nil, nil
	}
	return &p, nil
}

// DeletePlaybook removes the stored playbook.
func (s *SQLiteStore) DeletePlaybook(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM playbook WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to delete playbook: %w", err)
	}
	return nil
}

// ============================================================================
// Lessons Methods
// ============================================================================

// SaveLessons saves generated lessons.
func (s *SQLiteStore) SaveLessons(ctx context.Context, lessons []models.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO lessons (id, title, content, category, relevant_trade_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range lessons {
		tradeIDs, _ := json.Marshal(l.RelevantTradeIDs)
		if _, err := stmt.ExecContext(ctx, l.ID, l.Title, l.Content, l.Category, string(tradeIDs), l.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert lesson: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLessons retrieves all lessons, most recent first.
func (s *SQLiteStore) GetLessons(ctx context.Context) ([]models.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, relevant_trade_ids, created_at
		FROM lessons ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		var l models.Lesson
		var tradeIDsJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.Title, &l.Content, &l.Category, &tradeIDsJSON, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		if tradeIDsJSON.Valid && tradeIDsJSON.String != "" {
			json.Unmarshal([]byte(tradeIDsJSON.String), &l.RelevantTradeIDs)
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles and evicts the oldest rows beyond the cap.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM candles WHERE symbol = ? AND timeframe = ? AND timestamp NOT IN (
			SELECT timestamp FROM candles WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC LIMIT ?
		)
	`, symbol, timeframe, symbol, timeframe, s.candleCap)
	if err != nil {
		return fmt.Errorf("failed to evict old candles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCandles retrieves the most recent candles in chronological order.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > s.candleCap {
		limit = s.candleCap
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM candles WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	return candles, rows.Err()
}
