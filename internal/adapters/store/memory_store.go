package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the RecordRepository interface
type MemoryStore struct {
	records     map[string]*core.TriageRecord
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory record store
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:     make(map[string]*core.TriageRecord),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go s.startCleanupTask()
	}

	return s
}

// Get retrieves a live record
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.TriageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || s.expired(rec) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// Save inserts or replaces a record
func (s *MemoryStore) Save(ctx context.Context, rec *core.TriageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// UpdateDecision stores the human reply decision for a live record
func (s *MemoryStore) UpdateDecision(ctx context.Context, id string, needsReply bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || s.expired(rec) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	rec.Decision = &needsReply
	return nil
}

// Delete removes a record
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Cleanup removes expired records
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiredCount := 0
	for id, rec := range s.records {
		if s.expired(rec) {
			delete(s.records, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired triage records", zap.Int("expired_count", expiredCount))
	return nil
}

func (s *MemoryStore) expired(rec *core.TriageRecord) bool {
	return !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt)
}

func (s *MemoryStore) startCleanupTask() {
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

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func cloneRecord(rec *core.TriageRecord) *core.TriageRecord {
	c := *rec
	if rec.Decision != nil {
		d := *rec.Decision
		c.Decision = &d
	}
	if rec.Classification != nil {
		cls := *rec.Classification
		cls.Evidence = cloneStrings(rec.Classification.Evidence)
		cls.Identifiers = cloneStrings(rec.Classification.Identifiers)
		c.Classification = &cls
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
