package signals

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository persists signals in sqlite.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InitSchema creates the signals table if it does not exist.
func (r *Repository) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			strength REAL NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create signals schema: %w", err)
	}
	return nil
}

// Save inserts a signal.
func (r *Repository) Save(s *Signal) error {
	_, err := r.db.Exec(
		`INSERT INTO signals (id, symbol, direction, strength, reason, price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Symbol, string(s.Direction), s.Strength, s.Reason, s.Price, s.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", s.ID, err)
	}
	return nil
}

// Recent returns the newest signals, most recent first.
func (r *Repository) Recent(limit int) ([]Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, symbol, direction, strength, reason, price, created_at
		 FROM signals ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// BySymbol returns the newest signals for one symbol.
func (r *Repository) BySymbol(symbol string, limit int) ([]Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, symbol, direction, strength, reason, price, created_at
		 FROM signals WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for %s: %w", symbol, err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// DeleteOlderThan removes signals created before the cutoff and reports how
// many were removed.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM signals WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old signals: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSignals(rows *sql.Rows) ([]Signal, error) {
	var out []Signal
	for rows.Next() {
		var s Signal
		var dir string
		var created int64
		if err := rows.Scan(&s.ID, &s.Symbol, &dir, &s.Strength, &s.Reason, &s.Price, &created); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Direction = Direction(dir)
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}
