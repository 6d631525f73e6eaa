package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kstrade/internal/application/port"
)

// Journal is the durable audit trail of orders, fills and cycle summaries.
type Journal struct {
	db *sql.DB
}

func NewJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  limit_price INTEGER NOT NULL,
  strategy TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(ts_ms);

CREATE TABLE IF NOT EXISTS fills (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price REAL NOT NULL,
  reason TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
CREATE INDEX IF NOT EXISTS idx_fills_ts ON fills(ts_ms);

CREATE TABLE IF NOT EXISTS cycles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  holdings INTEGER NOT NULL,
  candidates INTEGER NOT NULL,
  buys INTEGER NOT NULL,
  sells INTEGER NOT NULL,
  errors INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(started_at);
`)
	return err
}

func (j *Journal) RecordOrder(ctx context.Context, o port.JournalOrder) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders(order_id, symbol, side, quantity, limit_price, strategy, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, o.OrderID, o.Symbol, string(o.Side), o.Quantity, o.LimitPrice, o.Strategy,
		o.At.UnixMilli(), time.Now().UnixMilli())
	return err
}

func (j *Journal) RecordFill(ctx context.Context, f port.JournalFill) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO fills(order_id, symbol, side, quantity, price, reason, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, f.OrderID, f.Symbol, string(f.Side), f.Quantity, f.Price, f.Reason,
		f.At.UnixMilli(), time.Now().UnixMilli())
	return err
}

func (j *Journal) RecordCycle(ctx context.Context, c port.CycleSummary) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles(started_at, duration_ms, holdings, candidates, buys, sells, errors, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, c.StartedAt.UnixMilli(), c.Duration.Milliseconds(), c.Holdings, c.Candidates,
		c.Buys, c.Sells, c.Errors, time.Now().UnixMilli())
	return err
}

// DailyReport aggregates fills per day over the trailing window.
func (j *Journal) DailyReport(ctx context.Context, days int) ([]port.DayReport, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	rows, err := j.db.QueryContext(ctx, `
		SELECT date(ts_ms/1000, 'unixepoch') AS day,
		       SUM(CASE WHEN side='BUY' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN side='SELL' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN side='BUY' THEN quantity*price ELSE 0 END),
		       SUM(CASE WHEN side='SELL' THEN quantity*price ELSE 0 END)
		FROM fills
		WHERE ts_ms >= ?
		GROUP BY day
		ORDER BY day DESC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.DayReport
	for rows.Next() {
		var r port.DayReport
		if err := rows.Scan(&r.Day, &r.Buys, &r.Sells, &r.BuyVolume, &r.SellVolume); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ port.Journal = (*Journal)(nil)
