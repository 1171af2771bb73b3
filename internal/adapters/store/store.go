// Package store provides RecordRepository implementations for triage records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no live record exists for an ID
var ErrNotFound = core.ErrRecordNotFound

// sqlStore holds the queries shared by the SQL-backed stores. Timestamps are
// stored as Unix seconds; an expiry of 0 never expires.
type sqlStore struct {
	db          *sql.DB
	logger      *zap.Logger
	name        string
	upsertQuery string
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

const selectRecordQuery = `
	SELECT message_id, thread_id, sender, subject, original_body, clean_reply,
		classification, needs_response, processed_at, expires_at
	FROM triage_records
	WHERE message_id = ? AND (expires_at = 0 OR expires_at > ?)
`

func (s *sqlStore) init(schema []string) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.name, err)
		}
	}
	s.stopCh = make(chan struct{})
	if s.cleanupFreq > 0 {
		go s.startCleanupTask()
	}
	return nil
}

// Get retrieves a live record
func (s *sqlStore) Get(ctx context.Context, id string) (*core.TriageRecord, error) {
	var (
		rec            core.TriageRecord
		classification sql.NullString
		decision       sql.NullBool
		processedAt    int64
		expiresAt      int64
	)

	err := s.db.QueryRowContext(ctx, selectRecordQuery, id, time.Now().Unix()).Scan(
		&rec.ID, &rec.ThreadID, &rec.From, &rec.Subject, &rec.OriginalBody, &rec.CleanReply,
		&classification, &decision, &processedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query triage record: %w", err)
	}

	if classification.Valid && classification.String != "" {
		rec.Classification = &core.ClassificationResult{}
		if err := json.Unmarshal([]byte(classification.String), rec.Classification); err != nil {
			return nil, fmt.Errorf("failed to decode classification for %s: %w", id, err)
		}
	}
	if decision.Valid {
		d := decision.Bool
		rec.Decision = &d
	}
	rec.ProcessedAt = fromUnix(processedAt)
	rec.ExpiresAt = fromUnix(expiresAt)

	return &rec, nil
}

// Save inserts or replaces a record
func (s *sqlStore) Save(ctx context.Context, rec *core.TriageRecord) error {
	classification, err := encodeClassification(rec.Classification)
	if err != nil {
		return err
	}

	var decision sql.NullBool
	if rec.Decision != nil {
		decision = sql.NullBool{Bool: *rec.Decision, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.upsertQuery,
		rec.ID, rec.ThreadID, rec.From, rec.Subject, rec.OriginalBody, rec.CleanReply,
		classification, decision, toUnix(rec.ProcessedAt), toUnix(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to save triage record: %w", err)
	}
	return nil
}

// UpdateDecision stores the human reply decision for a live record
func (s *sqlStore) UpdateDecision(ctx context.Context, id string, needsReply bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE triage_records
		SET needs_response = ?
		WHERE message_id = ? AND (expires_at = 0 OR expires_at > ?)
	`, needsReply, id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update decision: %w", err)
	}

	// MySQL reports zero affected rows when the value is unchanged, so a
	// lookup settles whether the record exists.
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return nil
}

// Delete removes a record
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM triage_records
		WHERE message_id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete triage record: %w", err)
	}
	return nil
}

// Cleanup removes expired records
func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM triage_records
		WHERE expires_at > 0 AND expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired triage records",
			zap.String("store", s.name),
			zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

func (s *sqlStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("Failed to clean up triage records", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	close(s.stopCh)
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.String("store", s.name), zap.Error(err))
	}
}

func encodeClassification(c *core.ClassificationResult) (string, error) {
	if c == nil {
		return "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode classification: %w", err)
	}
	return string(data), nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
