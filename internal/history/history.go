// Package history keeps an append-only audit log of resolved queries in a
// local SQLite file. It records outcomes only; conversations are never
// reconstructed from it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Log struct {
	db *sql.DB
}

type Entry struct {
	AskedAt     time.Time
	Question    string
	OK          bool
	SourceCount int
	Elapsed     time.Duration
}

func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	l := &Log{db: db}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asked_at INTEGER NOT NULL,
			question TEXT NOT NULL,
			ok INTEGER NOT NULL,
			source_count INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_queries_asked_at ON queries(asked_at);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

func (l *Log) Record(e Entry) error {
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := l.db.Exec(
		`INSERT INTO queries (asked_at, question, ok, source_count, elapsed_ms) VALUES (?, ?, ?, ?, ?)`,
		e.AskedAt.Unix(), e.Question, ok, e.SourceCount, e.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT asked_at, question, ok, source_count, elapsed_ms FROM queries ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			askedAt   int64
			ok        int
			elapsedMS int64
			e         Entry
		)
		if err := rows.Scan(&askedAt, &e.Question, &ok, &e.SourceCount, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.AskedAt = time.Unix(askedAt, 0)
		e.OK = ok != 0
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
