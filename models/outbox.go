package models

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxEvent is written inside the economic transaction and delivered after commit.
type OutboxEvent struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Kind        OutboxKind     `gorm:"type:varchar(32);not null" json:"kind"`
	UserID      string         `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status      OutboxStatus   `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Attempts    int            `gorm:"default:0" json:"attempts"`
	LastError   string         `gorm:"type:text" json:"last_error,omitempty"`
	ClaimedAt   *time.Time     `json:"claimed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}
