// Package store defines the persistence records and interfaces for
// settlement cycles, chat transcripts, and replayed agent log lines.
package store

import (
	"context"
	"time"
)

// SettlementRecord is one settlement cycle as persisted, smallest-unit
// amounts kept as decimal strings.
type SettlementRecord struct {
	CycleID       string    `json:"cycle_id"`
	State         string    `json:"state"`
	TotalProfit   string    `json:"total_profit"`
	Distribution  []string  `json:"distribution,omitempty"`
	CallerShare   string    `json:"caller_share,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	SettledAt     time.Time `json:"settled_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatRecord is one persisted chat transcript line.
type ChatRecord struct {
	MessageID string    `json:"message_id"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SettlementStore persists settlement cycle outcomes.
type SettlementStore interface {
	UpsertSettlement(ctx context.Context, rec SettlementRecord) error
	SettlementByCycle(ctx context.Context, cycleID string) (SettlementRecord, bool, error)
	ListSettlements(ctx context.Context, limit int) ([]SettlementRecord, error)
}

// ChatStore persists the chat transcript.
type ChatStore interface {
	SaveChatMessage(ctx context.Context, rec ChatRecord) error
	RecentChatMessages(ctx context.Context, limit int) ([]ChatRecord, error)
}
