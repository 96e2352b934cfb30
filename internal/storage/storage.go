// Package storage provides the embedded sqlite store. It holds the Telegram
// session tables (managed by the client library) and the forward log written
// by the pipeline.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ForwardRecord is one forward outcome. Sent records double as a durable
// dedup marker across runs.
type ForwardRecord struct {
	ID        uint   `gorm:"primaryKey"`
	ChannelID int64  `gorm:"index:idx_forward_msg"`
	MessageID int    `gorm:"index:idx_forward_msg"`
	Keywords  string // comma-separated matched keywords
	Outcome   string `gorm:"index"` // sent | rate-limited | error
	Reason    string
	CreatedAt time.Time
}

// Totals aggregates the forward log for the dashboard.
type Totals struct {
	Sent        int64 `json:"sent"`
	RateLimited int64 `json:"rate_limited"`
	Errors      int64 `json:"errors"`
	Channels    int64 `json:"channels"`
}

// Store wraps the sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the
// forward log schema. Session tables are migrated by the Telegram client
// library against the same database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&ForwardRecord{}); err != nil {
		return nil, fmt.Errorf("migrate forward log: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying gorm handle for the session store.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// RecordOutcome appends one outcome to the forward log.
func (s *Store) RecordOutcome(ctx context.Context, rec *ForwardRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// SentRecords returns up to limit most recent sent records, newest first.
// Used to seed the pipeline's dedup set on startup.
func (s *Store) SentRecords(ctx context.Context, limit int) ([]ForwardRecord, error) {
	var recs []ForwardRecord
	err := s.db.WithContext(ctx).
		Where("outcome = ?", "sent").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load sent records: %w", err)
	}
	return recs, nil
}

// WasForwarded reports whether a message was already sent in any run.
func (s *Store) WasForwarded(ctx context.Context, channelID int64, messageID int) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ForwardRecord{}).
		Where("channel_id = ? AND message_id = ? AND outcome = ?", channelID, messageID, "sent").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check forwarded: %w", err)
	}
	return count > 0, nil
}

// Stats aggregates outcome counts over the whole forward log.
func (s *Store) Stats(ctx context.Context) (*Totals, error) {
	t := &Totals{}
	db := s.db.WithContext(ctx).Model(&ForwardRecord{})

	type row struct {
		Outcome string
		N       int64
	}
	var rows []row
	if err := db.Select("outcome, COUNT(*) as n").Group("outcome").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate outcomes: %w", err)
	}
	for _, r := range rows {
		switch r.Outcome {
		case "sent":
			t.Sent = r.N
		case "rate-limited":
			t.RateLimited = r.N
		case "error":
			t.Errors = r.N
		}
	}

	err := s.db.WithContext(ctx).
		Model(&ForwardRecord{}).
		Distinct("channel_id").
		Count(&t.Channels).Error
	if err != nil {
		return nil, fmt.Errorf("count channels: %w", err)
	}

	return t, nil
}
