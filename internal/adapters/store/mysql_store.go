package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the RecordRepository interface
type MySQLStore struct {
	sqlStore
}

var mysqlSchema = []string{`
	CREATE TABLE IF NOT EXISTS triage_records (
		message_id VARCHAR(255) PRIMARY KEY,
		thread_id VARCHAR(255) NOT NULL DEFAULT '',
		sender VARCHAR(512) NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		original_body MEDIUMTEXT NOT NULL,
		clean_reply MEDIUMTEXT NOT NULL,
		classification TEXT,
		needs_response BOOLEAN NULL,
		processed_at BIGINT NOT NULL DEFAULT 0,
		expires_at BIGINT NOT NULL DEFAULT 0,
		INDEX idx_triage_expires_at (expires_at)
	)
`}

const mysqlUpsertQuery = `
	INSERT INTO triage_records (message_id, thread_id, sender, subject,
		original_body, clean_reply, classification, needs_response, processed_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		thread_id = VALUES(thread_id),
		sender = VALUES(sender),
		subject = VALUES(subject),
		original_body = VALUES(original_body),
		clean_reply = VALUES(clean_reply),
		classification = VALUES(classification),
		needs_response = VALUES(needs_response),
		processed_at = VALUES(processed_at),
		expires_at = VALUES(expires_at)
`

// NewMySQLStore connects to a MySQL record store and creates its table
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	s := &MySQLStore{sqlStore{
		db:          db,
		logger:      logger,
		name:        "mysql",
		upsertQuery: mysqlUpsertQuery,
		cleanupFreq: cleanupFreq,
	}}
	if err := s.init(mysqlSchema); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}
