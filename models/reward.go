package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardGrant is one immutable ledger line. A user's XP is the sum of their xp grants;
// level is derived from it and never stored.
type RewardGrant struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"type:uuid;not null;index:idx_grant_user_currency,priority:1" json:"user_id"`
	Currency    Currency        `gorm:"type:varchar(8);not null;index:idx_grant_user_currency,priority:2" json:"currency"`
	BaseAmount  int64           `json:"base_amount"`
	BonusAmount int64           `json:"bonus_amount"`
	TotalAmount int64           `json:"total_amount"`
	Multiplier  decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"multiplier"`
	SourceType  SourceType      `gorm:"type:varchar(32);not null;index" json:"source_type"`
	SourceID    string          `gorm:"index" json:"source_id,omitempty"`
	IssuedBy    string          `gorm:"type:varchar(64)" json:"issued_by,omitempty"`
	Reason      string          `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"created_at"`
}
