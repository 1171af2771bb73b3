package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the RecordRepository interface
type SQLiteStore struct {
	sqlStore
}

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS triage_records (
		message_id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		original_body TEXT NOT NULL DEFAULT '',
		clean_reply TEXT NOT NULL DEFAULT '',
		classification TEXT,
		needs_response BOOLEAN,
		processed_at INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL DEFAULT 0
	)
`, `
	CREATE INDEX IF NOT EXISTS idx_triage_expires_at ON triage_records(expires_at)
`}

const sqliteUpsertQuery = `
	INSERT OR REPLACE INTO triage_records (message_id, thread_id, sender, subject,
		original_body, clean_reply, classification, needs_response, processed_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// NewSQLiteStore opens or creates a SQLite record store
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{sqlStore{
		db:          db,
		logger:      logger,
		name:        "sqlite",
		upsertQuery: sqliteUpsertQuery,
		cleanupFreq: cleanupFreq,
	}}
	if err := s.init(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}
