package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"GoldPulse/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists trades and cycle history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL mode so report queries can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("component", "recorder").Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			direction  TEXT NOT NULL,
			entry      REAL,
			sl         REAL,
			tp1        REAL,
			tp2        REAL,
			tp3        REAL,
			tp4        REAL,
			score      REAL,
			timeframe  INTEGER,
			size       REAL,
			status     TEXT NOT NULL,
			exit_level TEXT,
			exit_price REAL,
			pnl        REAL,
			closed_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(symbol, status)`,

		`CREATE TABLE IF NOT EXISTS trade_opinions (
			trade_id  TEXT NOT NULL,
			strategy  TEXT NOT NULL,
			direction TEXT NOT NULL,
			score     REAL,
			reason    TEXT,
			PRIMARY KEY (trade_id, strategy)
		)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT,
			timeframe  INTEGER,
			bars       INTEGER,
			buy_score  REAL,
			sell_score REAL,
			direction  TEXT,
			emitted    INTEGER,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS optimizations (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			kind           TEXT,
			trades         INTEGER,
			weights_before TEXT,
			weights_after  TEXT,
			changed        TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordTrade inserts a trade and its opinion snapshot. A missing ID is
// generated and written back to t.
func (r *SQLiteRecorder) RecordTrade(t *model.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TradeOpen
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO trades
		(id, timestamp, symbol, direction, entry, sl, tp1, tp2, tp3, tp4,
		 score, timeframe, size, status, exit_level, exit_price, pnl, closed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Timestamp.Unix(), t.Symbol, string(t.Direction), t.Entry, t.SL,
		t.TP[0], t.TP[1], t.TP[2], t.TP[3],
		t.Score, t.Timeframe, t.Size, string(t.Status),
		t.ExitLevel, t.ExitPrice, t.PnL, unixOrZero(t.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	for name, op := range t.Opinions {
		if _, err := tx.Exec(`INSERT INTO trade_opinions (trade_id, strategy, direction, score, reason)
			VALUES (?,?,?,?,?)`, t.ID, name, string(op.Direction), op.Score, op.Reason); err != nil {
			return fmt.Errorf("insert opinion %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// CloseTrade marks an open trade closed. It returns ErrNotFound when the trade
// is unknown or already closed.
func (r *SQLiteRecorder) CloseTrade(id string, c Closure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`UPDATE trades SET status = ?, exit_level = ?, exit_price = ?, pnl = ?, closed_at = ?
		WHERE id = ? AND status = ?`,
		string(model.TradeClosed), c.Level, c.Price, c.PnL, c.At.Unix(), id, string(model.TradeOpen))
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteRecorder) OpenTrades(symbol string) ([]*model.TradeRecord, error) {
	return r.query(`WHERE status = ? AND (? = '' OR symbol = ?) ORDER BY timestamp ASC`,
		string(model.TradeOpen), symbol, symbol)
}

func (r *SQLiteRecorder) Trades(symbol string, limit int) ([]*model.TradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(`WHERE status = ? AND (? = '' OR symbol = ?) ORDER BY closed_at DESC, timestamp DESC LIMIT ?`,
		string(model.TradeClosed), symbol, symbol, limit)
}

func (r *SQLiteRecorder) TradesSince(since time.Time) ([]*model.TradeRecord, error) {
	return r.query(`WHERE timestamp >= ? ORDER BY timestamp ASC`, since.Unix())
}

func (r *SQLiteRecorder) query(where string, args ...any) ([]*model.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, symbol, direction, entry, sl, tp1, tp2, tp3, tp4,
		score, timeframe, size, status, exit_level, exit_price, pnl, closed_at
		FROM trades `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*model.TradeRecord
	byID := make(map[string]*model.TradeRecord)
	for rows.Next() {
		var (
			t                 model.TradeRecord
			ts, closedAt      int64
			direction, status string
			exitLevel         sql.NullString
		)
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &direction, &t.Entry, &t.SL,
			&t.TP[0], &t.TP[1], &t.TP[2], &t.TP[3],
			&t.Score, &t.Timeframe, &t.Size, &status, &exitLevel, &t.ExitPrice, &t.PnL, &closedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0).UTC()
		if closedAt > 0 {
			t.ClosedAt = time.Unix(closedAt, 0).UTC()
		}
		t.Direction = model.Direction(direction)
		t.Status = model.TradeStatus(status)
		t.ExitLevel = exitLevel.String
		t.Opinions = make(map[string]model.Opinion)
		out = append(out, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before the opinion query.
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}
	return out, r.loadOpinions(byID)
}

func (r *SQLiteRecorder) loadOpinions(byID map[string]*model.TradeRecord) error {
	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.db.Query(`SELECT trade_id, strategy, direction, score, reason
		FROM trade_opinions WHERE trade_id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return fmt.Errorf("query opinions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name, dir string
		var op model.Opinion
		if err := rows.Scan(&id, &name, &dir, &op.Score, &op.Reason); err != nil {
			return fmt.Errorf("scan opinion: %w", err)
		}
		op.Direction = model.Direction(dir)
		if t, ok := byID[id]; ok {
			t.Opinions[name] = op
		}
	}
	return rows.Err()
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emitted := 0
	if evt.Emitted {
		emitted = 1
	}
	_, err := r.db.Exec(`INSERT INTO cycles
		(timestamp, symbol, timeframe, bars, buy_score, sell_score, direction, emitted, note)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Symbol, evt.Timeframe, evt.Bars,
		evt.BuyScore, evt.SellScore, string(evt.Direction), emitted, evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordOptimization(evt *OptimizationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, err := json.Marshal(evt.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(evt.After)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO optimizations (timestamp, kind, trades, weights_before, weights_after, changed)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Kind, evt.Trades, string(before), string(after), strings.Join(evt.Changed, ","),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Str("component", "recorder").Msg("closing sqlite recorder")
	return r.db.Close()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
