// Package cyclelog archives the replayed agent log lines per trading cycle
// so past cycles stay inspectable after the replay buffer is gone.
package cyclelog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Line is one archived agent log line.
type Line struct {
	CycleID string `json:"cycle_id"`
	Seq     int    `json:"seq"`
	Text    string `json:"text"`
	TS      int64  `json:"ts"`
}

// CycleSummary is one cycle as seen by the archive.
type CycleSummary struct {
	CycleID   string `json:"cycle_id"`
	LineCount int    `json:"line_count"`
	FirstTS   int64  `json:"first_ts"`
	LastTS    int64  `json:"last_ts"`
}

// Store writes and reads the archive over database/sql.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// New opens (or creates) the archive at path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cycle log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB reuses an externally initialized SQLite connection so both
// stores share one lock domain.
func (s *Store) UseExternalDB(db *sql.DB) error {
	if s == nil {
		return fmt.Errorf("cycle log store not initialized")
	}
	if db == nil {
		return fmt.Errorf("external db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

// Close closes the underlying DB when this store owns it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycle_log_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			ts INTEGER NOT NULL,
			UNIQUE(cycle_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_log_cycle ON cycle_log_lines(cycle_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("cycle log schema: %w", err)
		}
	}
	return nil
}

// AppendLine records one replayed line. Replays of the same (cycle, seq)
// are ignored.
func (s *Store) AppendLine(ctx context.Context, cycleID string, seq int, text string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("cycle log store closed")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO cycle_log_lines (cycle_id, seq, text, ts)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cycle_id, seq) DO NOTHING`,
		cycleID, seq, text, time.Now().Unix())
	return err
}

// LinesForCycle returns the archived lines of one cycle in replay order.
func (s *Store) LinesForCycle(ctx context.Context, cycleID string) ([]Line, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("cycle log store closed")
	}
	rows, err := db.QueryContext(ctx,
		`SELECT cycle_id, seq, text, ts FROM cycle_log_lines
		 WHERE cycle_id = ? ORDER BY seq ASC`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.CycleID, &l.Seq, &l.Text, &l.TS); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// RecentCycles lists the most recently archived cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("cycle log store closed")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT cycle_id, COUNT(*), MIN(ts), MAX(ts) FROM cycle_log_lines
		 GROUP BY cycle_id ORDER BY MAX(ts) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []CycleSummary
	for rows.Next() {
		var c CycleSummary
		if err := rows.Scan(&c.CycleID, &c.LineCount, &c.FirstTS, &c.LastTS); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
