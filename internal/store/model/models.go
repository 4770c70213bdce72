package model

import (
	"gorm.io/datatypes"
)

type SettlementCycleModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	CycleID       string         `gorm:"column:cycle_id;uniqueIndex"`
	State         string         `gorm:"column:state"`
	TotalProfit   string         `gorm:"column:total_profit"`
	Distribution  datatypes.JSON `gorm:"column:distribution;type:TEXT"`
	CallerShare   string         `gorm:"column:caller_share"`
	FailureReason string         `gorm:"column:failure_reason"`
	SettledAtUnix int64          `gorm:"column:settled_at"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (SettlementCycleModel) TableName() string { return "settlement_cycles" }

type ChatMessageModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	MessageID string `gorm:"column:message_id;uniqueIndex"`
	CycleID   string `gorm:"column:cycle_id;index"`
	Sender    string `gorm:"column:sender"`
	Content   string `gorm:"column:content"`
	TSUnix    int64  `gorm:"column:ts"`
}

func (ChatMessageModel) TableName() string { return "chat_messages" }
