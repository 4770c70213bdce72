// Package gormstore persists settlement cycles and the chat transcript
// with Gorm over SQLite.
package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conflux/internal/store"
	storemodel "conflux/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type settlementCycleModel = storemodel.SettlementCycleModel
type chatMessageModel = storemodel.ChatMessageModel

// GormStore implements settlement and chat transcript storage using Gorm + SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (or creates) the database at path and migrates the schema.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&settlementCycleModel{}, &chatMessageModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

var (
	_ store.SettlementStore = (*GormStore)(nil)
	_ store.ChatStore       = (*GormStore)(nil)
)

// --------------------- Settlement cycles -------------------------

func (s *GormStore) UpsertSettlement(ctx context.Context, rec store.SettlementRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.CycleID) == "" {
		return fmt.Errorf("cycle_id is required")
	}
	m, err := newSettlementModel(rec)
	if err != nil {
		return err
	}
	updates := clause.Assignments(map[string]interface{}{
		"state":          gorm.Expr("excluded.state"),
		"total_profit":   gorm.Expr("excluded.total_profit"),
		"distribution":   gorm.Expr("COALESCE(excluded.distribution, settlement_cycles.distribution)"),
		"caller_share":   gorm.Expr("excluded.caller_share"),
		"failure_reason": gorm.Expr("excluded.failure_reason"),
		"settled_at":     gorm.Expr("excluded.settled_at"),
		"updated_at":     gorm.Expr("excluded.updated_at"),
	})
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cycle_id"}},
			DoUpdates: updates,
		}).
		Create(&m).Error
}

func (s *GormStore) SettlementByCycle(ctx context.Context, cycleID string) (store.SettlementRecord, bool, error) {
	if s == nil || s.db == nil {
		return store.SettlementRecord{}, false, fmt.Errorf("gorm store not initialized")
	}
	var m settlementCycleModel
	err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.SettlementRecord{}, false, nil
	}
	if err != nil {
		return store.SettlementRecord{}, false, err
	}
	rec, err := settlementFromModel(m)
	return rec, err == nil, err
}

func (s *GormStore) ListSettlements(ctx context.Context, limit int) ([]store.SettlementRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []settlementCycleModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	recs := make([]store.SettlementRecord, 0, len(models))
	for _, m := range models {
		rec, err := settlementFromModel(m)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// --------------------- Chat transcript -------------------------

func (s *GormStore) SaveChatMessage(ctx context.Context, rec store.ChatRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.MessageID) == "" {
		return fmt.Errorf("message_id is required")
	}
	m := chatMessageModel{
		MessageID: rec.MessageID,
		CycleID:   rec.CycleID,
		Sender:    rec.Sender,
		Content:   rec.Content,
		TSUnix:    rec.Timestamp.Unix(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&m).Error
}

func (s *GormStore) RecentChatMessages(ctx context.Context, limit int) ([]store.ChatRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	var models []chatMessageModel
	if err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	// Reverse to oldest-first for transcript display.
	recs := make([]store.ChatRecord, len(models))
	for i, m := range models {
		recs[len(models)-1-i] = store.ChatRecord{
			MessageID: m.MessageID,
			CycleID:   m.CycleID,
			Sender:    m.Sender,
			Content:   m.Content,
			Timestamp: time.Unix(m.TSUnix, 0).UTC(),
		}
	}
	return recs, nil
}

// --------------------- helpers -------------------------

func newSettlementModel(rec store.SettlementRecord) (settlementCycleModel, error) {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	m := settlementCycleModel{
		CycleID:       rec.CycleID,
		State:         rec.State,
		TotalProfit:   rec.TotalProfit,
		CallerShare:   rec.CallerShare,
		FailureReason: rec.FailureReason,
		CreatedAtUnix: rec.CreatedAt.Unix(),
		UpdatedAtUnix: rec.UpdatedAt.Unix(),
	}
	if !rec.SettledAt.IsZero() {
		m.SettledAtUnix = rec.SettledAt.Unix()
	}
	if len(rec.Distribution) > 0 {
		raw, err := json.Marshal(rec.Distribution)
		if err != nil {
			return settlementCycleModel{}, fmt.Errorf("marshal distribution: %w", err)
		}
		m.Distribution = datatypes.JSON(raw)
	}
	return m, nil
}

func settlementFromModel(m settlementCycleModel) (store.SettlementRecord, error) {
	rec := store.SettlementRecord{
		CycleID:       m.CycleID,
		State:         m.State,
		TotalProfit:   m.TotalProfit,
		CallerShare:   m.CallerShare,
		FailureReason: m.FailureReason,
		CreatedAt:     time.Unix(m.CreatedAtUnix, 0).UTC(),
		UpdatedAt:     time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
	if m.SettledAtUnix > 0 {
		rec.SettledAt = time.Unix(m.SettledAtUnix, 0).UTC()
	}
	if len(m.Distribution) > 0 {
		if err := json.Unmarshal(m.Distribution, &rec.Distribution); err != nil {
			return store.SettlementRecord{}, fmt.Errorf("decode distribution: %w", err)
		}
	}
	return rec, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
